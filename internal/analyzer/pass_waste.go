package analyzer

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// docOnlyPaths is a sample of paths that a well-scoped trigger should
// exclude (or never include); used by passMissingPathFilter's inverse
// check below.
var docOnlyPaths = []string{"docs/guide.md", "README.md", "CHANGELOG.md", "LICENSE"}

// passMissingPathFilter flags multi-job pipelines whose triggers carry no
// include/exclude path pattern (spec.md §4.3 pass 6), and, as an inverse
// check, triggers that do carry a path filter but one that still matches
// pure documentation changes.
func passMissingPathFilter(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	if dag.JobCount() <= 1 {
		return nil
	}

	anyFilter := false
	for _, t := range dag.Triggers {
		if !t.HasPathFilter() {
			continue
		}
		anyFilter = true
		if !excludesDocsOnly(t) {
			return []Finding{{
				Severity:       SeverityLow,
				Category:       CategoryMissingPathFilter,
				Title:          "Path filter does not exclude documentation changes",
				Description:    "This trigger has a path filter, but it still runs the pipeline for docs-only changes.",
				Recommendation: "Add docs/**, *.md, and LICENSE to paths-ignore.",
				Confidence:     0.5,
				AutoFixable:    true,
			}}
		}
	}
	if anyFilter {
		return nil
	}

	return []Finding{{
		Severity:       SeverityMedium,
		Category:       CategoryMissingPathFilter,
		Title:          "No path filter on triggers",
		Description:    "This pipeline runs on every change, including docs-only commits.",
		Recommendation: "Add a paths-ignore list for documentation and metadata files.",
		Confidence:     0.6,
		AutoFixable:    true,
	}}
}

// excludesDocsOnly reports whether every sample doc-only path is excluded
// by t's path filter: either present in PathsIgnore, or absent from Paths
// when Paths is an include allowlist.
func excludesDocsOnly(t pipedag.Trigger) bool {
	for _, sample := range docOnlyPaths {
		if matchesAny(t.PathsIgnore, sample) {
			continue
		}
		if len(t.Paths) > 0 && !matchesAny(t.Paths, sample) {
			continue
		}
		return false
	}
	return true
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// passFullClone flags checkout steps with no shallow-clone hint
// (spec.md §4.3 pass 7).
func passFullClone(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var affected []string
	for _, job := range dag.Jobs() {
		for _, s := range job.Steps {
			if s.IsCheckout() && !s.FetchDepthSet {
				affected = append(affected, job.ID)
				break
			}
		}
	}
	if len(affected) == 0 {
		return nil
	}
	return []Finding{{
		Severity:       SeverityMedium,
		Category:       CategoryShallowClone,
		Title:          "Checkout steps clone full history",
		Description:    fmt.Sprintf("%d job(s) check out without a shallow-clone depth hint: %v.", len(affected), affected),
		AffectedJobs:   affected,
		Recommendation: "Set fetch-depth: 1 unless full history is required.",
		EstimatedSavingsSecs: savings(30 * float64(len(affected))),
		Confidence:     0.7,
		AutoFixable:    true,
	}}
}

// passMissingConcurrencyControl flags push triggers with no
// cancel-in-progress concurrency group (spec.md §4.3 pass 9). This is a
// GitHub-Actions-specific construct: it gates on provider explicitly and
// no-ops for others, per spec.md §9 Design Notes.
func passMissingConcurrencyControl(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	if dag.Provider != "github_actions" {
		return nil
	}
	if dag.HasConcurrencyControl {
		return nil
	}
	hasPush := false
	for _, t := range dag.Triggers {
		if t.Event == "push" {
			hasPush = true
			break
		}
	}
	if !hasPush {
		return nil
	}
	return []Finding{{
		Severity:       SeverityLow,
		Category:       CategoryConcurrencyControl,
		Title:          "No concurrency cancellation on push",
		Description:    "Superseded pushes keep running to completion instead of being cancelled.",
		Recommendation: "Add a top-level concurrency group with cancel-in-progress: true.",
		Confidence:     0.6,
		AutoFixable:    true,
	}}
}

// passMatrixBloat flags matrices with more than six combinations
// (spec.md §4.3 pass 10).
func passMatrixBloat(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var findings []Finding
	for _, job := range dag.Jobs() {
		if job.Matrix == nil || job.Matrix.TotalCombinations <= 6 {
			continue
		}
		excess := job.Matrix.TotalCombinations - 6
		savingsSecs := job.EstimatedDurationSecs * float64(excess) * 0.5
		findings = append(findings, Finding{
			Severity:       SeverityMedium,
			Category:       CategoryMatrixBloat,
			Title:          fmt.Sprintf("Job %q has a bloated matrix", job.ID),
			Description:    fmt.Sprintf("%q expands to %d combinations.", job.ID, job.Matrix.TotalCombinations),
			AffectedJobs:   []string{job.ID},
			Recommendation: "Reduce matrix dimensions or use include/exclude to prune low-value combinations.",
			EstimatedSavingsSecs: savings(savingsSecs),
			Confidence:     0.5,
			AutoFixable:    false,
		})
	}
	return findings
}
