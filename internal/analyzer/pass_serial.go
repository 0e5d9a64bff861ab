package analyzer

import (
	"fmt"
	"math"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// passSerialBottleneck flags direct dependency edges that are likely
// false serialization: lint -> test|build, test -> build (spec.md §4.3
// pass 4). AffectedJobs is [dependent, dependency] matching the rewrite
// engine's expected ordering.
func passSerialBottleneck(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var findings []Finding
	kinds := map[string]jobKind{}
	for _, j := range dag.Jobs() {
		kinds[j.ID] = classifyJob(j)
	}

	for _, job := range dag.Jobs() {
		for _, parentID := range job.Needs {
			parent, ok := dag.GetJob(parentID)
			if !ok {
				continue
			}
			if isLikelyFalseDependency(kinds[parentID], kinds[job.ID]) {
				minDur := math.Min(job.EstimatedDurationSecs, parent.EstimatedDurationSecs)
				findings = append(findings, Finding{
					Severity:       SeverityHigh,
					Category:       CategorySerialBottleneck,
					Title:          fmt.Sprintf("%q unnecessarily depends on %q", job.ID, parentID),
					Description:    fmt.Sprintf("%q (%s) is serialized after %q (%s), but these job kinds don't require ordering.", job.ID, kinds[job.ID], parentID, kinds[parentID]),
					AffectedJobs:   []string{job.ID, parentID},
					Recommendation: fmt.Sprintf("Remove %q from %q's dependency list so both can run in parallel.", parentID, job.ID),
					EstimatedSavingsSecs: savings(minDur),
					Confidence:     0.55,
					AutoFixable:    true,
				})
			}
		}
	}
	return findings
}

// passTestSharding recommends splitting long-running, non-matrix test
// jobs into shards (spec.md §4.3 pass 5).
func passTestSharding(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var findings []Finding
	for _, job := range dag.Jobs() {
		if classifyJob(job) != jobTest {
			continue
		}
		if job.EstimatedDurationSecs <= 300 {
			continue
		}
		if job.Matrix != nil {
			continue
		}
		shards := clamp(int(math.Ceil(job.EstimatedDurationSecs/120)), 2, 8)
		savingsSecs := job.EstimatedDurationSecs * (1 - 1/float64(shards))
		findings = append(findings, Finding{
			Severity:       SeverityMedium,
			Category:       CategoryTestSharding,
			Title:          fmt.Sprintf("Job %q is a sharding candidate", job.ID),
			Description:    fmt.Sprintf("%q runs for %.0fs with no matrix. Splitting into %d shards would run them in parallel.", job.ID, job.EstimatedDurationSecs, shards),
			AffectedJobs:   []string{job.ID},
			Recommendation: fmt.Sprintf("Add a %d-way shard matrix to this job's test runner invocation.", shards),
			EstimatedSavingsSecs: savings(savingsSecs),
			Confidence:     0.65,
			AutoFixable:    true,
		})
	}
	return findings
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
