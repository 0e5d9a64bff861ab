// Package whatif applies hypothetical modifications to a cloned pipeline
// DAG and reports the before/after delta from re-running the analyzer
// (SPEC_FULL.md §4.16, grounded on whatif.rs).
package whatif

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// ModKind tags the variant of a Modification.
type ModKind string

const (
	ModRemoveDependency ModKind = "remove_dependency"
	ModAddDependency    ModKind = "add_dependency"
	ModAddCache         ModKind = "add_cache"
	ModRemoveCache      ModKind = "remove_cache"
	ModEnablePathFilter ModKind = "enable_path_filter"
	ModChangeRunner     ModKind = "change_runner"
	ModRemoveJob        ModKind = "remove_job"
	ModSetDuration      ModKind = "set_duration"
)

// Modification is one hypothetical change to apply to a cloned DAG
// (grounded on whatif.rs's Modification enum).
type Modification struct {
	Kind       ModKind
	JobID      string
	From, To   string  // for dependency edits
	Runner     string  // for ModChangeRunner
	DurationSecs float64 // for ModSetDuration, ModAddCache (estimated savings)
}

// runnerSpeedFactor approximates the duration effect of resizing a
// runner, mirroring whatif.rs's tier-based speed factors.
var runnerSpeedFactor = map[string]float64{
	"small": 1.3, "medium": 1.0, "large": 0.75, "xlarge": 0.55,
}

// ParseModification parses the original's simple `command arg` string
// grammar (grounded on whatif.rs::parse_modification).
func ParseModification(s string) (Modification, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Modification{}, fmt.Errorf("whatif: malformed modification %q", s)
	}
	switch fields[0] {
	case "remove-dep":
		from, to, ok := strings.Cut(fields[1], "->")
		if !ok {
			return Modification{}, fmt.Errorf("whatif: remove-dep needs a->b, got %q", fields[1])
		}
		return Modification{Kind: ModRemoveDependency, From: from, To: to}, nil
	case "add-dep":
		from, to, ok := strings.Cut(fields[1], "->")
		if !ok {
			return Modification{}, fmt.Errorf("whatif: add-dep needs a->b, got %q", fields[1])
		}
		return Modification{Kind: ModAddDependency, From: from, To: to}, nil
	case "add-cache":
		if len(fields) < 3 {
			return Modification{}, fmt.Errorf("whatif: add-cache needs job and savings secs")
		}
		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Modification{}, fmt.Errorf("whatif: add-cache savings: %w", err)
		}
		return Modification{Kind: ModAddCache, JobID: fields[1], DurationSecs: secs}, nil
	case "remove-cache":
		return Modification{Kind: ModRemoveCache, JobID: fields[1]}, nil
	case "enable-path-filter":
		return Modification{Kind: ModEnablePathFilter, JobID: fields[1]}, nil
	case "remove-job":
		return Modification{Kind: ModRemoveJob, JobID: fields[1]}, nil
	case "change-runner":
		if len(fields) < 3 {
			return Modification{}, fmt.Errorf("whatif: change-runner needs job and label")
		}
		return Modification{Kind: ModChangeRunner, JobID: fields[1], Runner: fields[2]}, nil
	case "set-duration":
		if len(fields) < 3 {
			return Modification{}, fmt.Errorf("whatif: set-duration needs job and seconds")
		}
		secs, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return Modification{}, fmt.Errorf("whatif: set-duration seconds: %w", err)
		}
		return Modification{Kind: ModSetDuration, JobID: fields[1], DurationSecs: secs}, nil
	default:
		return Modification{}, fmt.Errorf("whatif: unknown modification command %q", fields[0])
	}
}

// Result is the before/after delta of applying a set of modifications.
type Result struct {
	Before analyzer.Report
	After  analyzer.Report
	DurationDeltaSecs float64
	FindingCountDelta int
	JobCountDelta     int
	Applied           []Modification
	Errors            []string
}

// Simulate clones dag, applies every modification in order, and
// re-analyzes both the original and the modified DAG (grounded on
// whatif.rs::simulate). A modification that fails to apply (e.g. an
// unknown job id) is recorded in Errors and skipped; the rest still run.
func Simulate(dag *pipedag.PipelineDag, mods []Modification) (Result, error) {
	before, err := analyzer.Analyze(dag)
	if err != nil {
		return Result{}, fmt.Errorf("whatif: analyze original: %w", err)
	}

	modified := dag.Clone()
	var errs []string
	var applied []Modification
	for _, m := range mods {
		if err := apply(modified, m); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		applied = append(applied, m)
	}

	after, err := analyzer.Analyze(modified)
	if err != nil {
		return Result{}, fmt.Errorf("whatif: analyze modified: %w", err)
	}

	return Result{
		Before:            before,
		After:             after,
		DurationDeltaSecs: after.CriticalPathDurationSecs - before.CriticalPathDurationSecs,
		FindingCountDelta: len(after.Findings) - len(before.Findings),
		JobCountDelta:     after.JobCount - before.JobCount,
		Applied:           applied,
		Errors:            errs,
	}, nil
}

func apply(dag *pipedag.PipelineDag, m Modification) error {
	switch m.Kind {
	case ModRemoveDependency:
		dag.RemoveDependency(m.From, m.To)
		return nil
	case ModAddDependency:
		return dag.AddDependency(m.From, m.To)
	case ModAddCache:
		job, ok := dag.GetJob(m.JobID)
		if !ok {
			return fmt.Errorf("whatif: unknown job %q", m.JobID)
		}
		job.Caches = append(job.Caches, pipedag.CacheConfig{Path: "whatif-added", KeyPattern: "synthetic"})
		if m.DurationSecs > 0 && job.EstimatedDurationSecs > m.DurationSecs {
			job.EstimatedDurationSecs -= m.DurationSecs
		}
		return nil
	case ModRemoveCache:
		job, ok := dag.GetJob(m.JobID)
		if !ok {
			return fmt.Errorf("whatif: unknown job %q", m.JobID)
		}
		job.Caches = nil
		return nil
	case ModEnablePathFilter:
		job, ok := dag.GetJob(m.JobID)
		if !ok {
			return fmt.Errorf("whatif: unknown job %q", m.JobID)
		}
		job.PathsFilter = []string{"**"}
		return nil
	case ModChangeRunner:
		job, ok := dag.GetJob(m.JobID)
		if !ok {
			return fmt.Errorf("whatif: unknown job %q", m.JobID)
		}
		factor, known := runnerSpeedFactor[m.Runner]
		if !known {
			factor = 1.0
		}
		job.RunsOn = m.Runner
		job.EstimatedDurationSecs *= factor
		return nil
	case ModRemoveJob:
		return dag.RemoveJob(m.JobID)
	case ModSetDuration:
		job, ok := dag.GetJob(m.JobID)
		if !ok {
			return fmt.Errorf("whatif: unknown job %q", m.JobID)
		}
		job.EstimatedDurationSecs = m.DurationSecs
		return nil
	default:
		return fmt.Errorf("whatif: unsupported modification kind %q", m.Kind)
	}
}
