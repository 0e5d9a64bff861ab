// Package buildkite parses Buildkite pipeline files into the canonical
// pipeline DAG (spec.md §4.1, grounded on parser/buildkite.rs).
package buildkite

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "buildkite"

// Parse parses Buildkite pipeline YAML bytes into a DAG.
//
// Buildkite steps are a flat ordered list. A `wait`/`block` entry is a
// barrier: every subsequent step gains an edge from every step emitted
// before the barrier (spec.md §4.1 "Barrier semantics"). Explicit
// `depends_on` references (by id/key/label alias) override barrier
// inference for that step.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	dag := pipedag.New("Buildkite Pipeline", sourceFile, ProviderName)

	stepsRaw, ok := yamlutil.GetSlice(root, "steps")
	if !ok {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "steps"}
	}

	alias := map[string]string{} // label/key -> synthesized job id
	used := map[string]bool{}

	var emittedSoFar []string // all job ids emitted before the current point
	var barrierPreds []string // ids emitted before the most recently crossed barrier

	isBarrierEntry := func(raw any) bool {
		if s, ok := yamlutil.Str(raw); ok && (s == "wait" || s == "block") {
			return true
		}
		if _, ok := yamlutil.Get(raw, "wait"); ok {
			return true
		}
		if _, ok := yamlutil.Get(raw, "block"); ok {
			return true
		}
		return false
	}

	for i, raw := range stepsRaw {
		if isBarrierEntry(raw) {
			barrierPreds = append([]string(nil), emittedSoFar...)
			continue
		}

		label, _ := yamlutil.GetStr(raw, "label")
		if label == "" {
			label = fmt.Sprintf("step-%d", i+1)
		}
		id, _ := yamlutil.GetStr(raw, "id")
		if id == "" {
			id, _ = yamlutil.GetStr(raw, "key")
		}
		if id == "" {
			id = pipedag.SynthesizeID("buildkite", label, used)
		}
		used[id] = true
		if key, ok := yamlutil.GetStr(raw, "key"); ok {
			alias[key] = id
		}
		alias[label] = id

		commands := yamlutil.GetStrSlice(raw, "command")
		if len(commands) == 0 {
			if c, ok := yamlutil.GetStr(raw, "command"); ok {
				commands = []string{c}
			}
		}
		var steps []pipedag.Step
		for _, cmd := range commands {
			steps = append(steps, pipedag.Step{Name: cmd, Run: cmd, EstimatedDurationSecs: duration.EstimateCommand(cmd)})
		}
		total := 0.0
		for _, s := range steps {
			total += s.EstimatedDurationSecs
		}
		if total <= 0 {
			total = pipedag.DurationFloorSecs
		}

		matrix := parseParallelism(raw)

		job := pipedag.JobNode{
			ID:                    id,
			DisplayName:           label,
			RunsOn:                "buildkite-agent",
			Steps:                 steps,
			Matrix:                matrix,
			EstimatedDurationSecs: total,
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
		emittedSoFar = append(emittedSoFar, id)

		dependsOn := yamlutil.GetStrSlice(raw, "depends_on")
		if len(dependsOn) > 0 {
			for _, dep := range dependsOn {
				resolved, ok := alias[dep]
				if !ok {
					resolved = dep
				}
				if _, ok := dag.GetJob(resolved); !ok {
					return nil, &pipedag.ParseError{Kind: pipedag.UnresolvedDependency, From: resolved, To: id}
				}
				if err := dag.AddDependency(resolved, id); err != nil {
					return nil, err
				}
			}
			continue
		}
		for _, pred := range barrierPreds {
			if err := dag.AddDependency(pred, id); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func parseParallelism(raw any) *pipedag.MatrixStrategy {
	n, ok := yamlutil.Get(raw, "parallelism")
	if !ok {
		return nil
	}
	count, ok := n.(int)
	if !ok || count <= 0 {
		return nil
	}
	values := make([]string, count)
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	vars := map[string][]string{"job": values}
	m := pipedag.NewMatrixStrategy([]string{"job"}, vars)
	return &m
}
