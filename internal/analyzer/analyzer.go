package analyzer

import (
	"github.com/dagucloud/pipelinex/internal/graphalg"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// Pass is the uniform analyzer interface: a pure function from DAG to a
// list of findings. Passes never fail (spec.md §7): a pass that finds
// nothing returns an empty slice. Adding a pass is a single registry entry
// (spec.md §9 Design Notes).
type Pass func(dag *pipedag.PipelineDag, ctx *passContext) []Finding

// passContext carries pre-computed graph facts so passes don't each
// recompute topo order / critical path / max parallelism.
type passContext struct {
	criticalPath   graphalg.CriticalPath
	totalDuration  float64
	maxParallelism int
}

// registry lists passes in the fixed execution order required by
// spec.md §4.3.
var registry = []Pass{
	passCriticalPathConcentration,
	passParallelismEfficiency,
	passCacheGaps,
	passSerialBottleneck,
	passTestSharding,
	passMissingPathFilter,
	passFullClone,
	passRedundantInstalls,
	passMissingConcurrencyControl,
	passMatrixBloat,
}

// Analyze runs every registered pass over dag and returns the aggregated
// report (spec.md §4.3's single entry point: "given a DAG, return a
// report").
func Analyze(dag *pipedag.PipelineDag) (Report, error) {
	cp, err := graphalg.FindCriticalPath(dag)
	if err != nil {
		return Report{}, err
	}
	maxP, err := graphalg.MaxParallelism(dag)
	if err != nil {
		return Report{}, err
	}

	ctx := &passContext{
		criticalPath:   cp,
		totalDuration:  graphalg.TotalDuration(dag),
		maxParallelism: maxP,
	}

	var findings []Finding
	for _, pass := range registry {
		findings = append(findings, pass(dag, ctx)...)
	}
	sortFindings(findings)

	optimized := projectOptimizedDuration(cp.DurationSecs, findings)

	return Report{
		PipelineName:               dag.Name,
		SourceFile:                 dag.SourceFile,
		Provider:                   dag.Provider,
		JobCount:                   dag.JobCount(),
		StepCount:                  dag.StepCount(),
		MaxParallelism:             maxP,
		CriticalPath:               cp.JobIDs,
		CriticalPathDurationSecs:   cp.DurationSecs,
		TotalEstimatedDurationSecs: ctx.totalDuration,
		OptimizedDurationSecs:      optimized,
		Findings:                   findings,
	}, nil
}

// projectOptimizedDuration starts from the critical-path duration and
// subtracts every finding's estimated savings, floored at 10% of the
// original critical-path duration (spec.md §4.3 "Optimized-duration
// projection").
func projectOptimizedDuration(criticalPathDuration float64, findings []Finding) float64 {
	floor := criticalPathDuration * 0.1
	remaining := criticalPathDuration
	for _, f := range findings {
		if f.EstimatedSavingsSecs != nil {
			remaining -= *f.EstimatedSavingsSecs
		}
	}
	if remaining < floor {
		return floor
	}
	return remaining
}
