package analyzer

import (
	"fmt"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// passCriticalPathConcentration finds the single critical-path job with the
// largest share of the critical-path duration, provided that share exceeds
// 30% (spec.md §4.3 pass 1: "Find the single job..."; grounded on
// critical_path.rs's `critical_path.iter().max_by(...)`).
func passCriticalPathConcentration(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	if len(ctx.criticalPath.JobIDs) == 0 || ctx.criticalPath.DurationSecs <= 0 {
		return nil
	}
	threshold := ctx.criticalPath.DurationSecs * 0.30

	var worstID string
	var worstJob *pipedag.JobNode
	for _, id := range ctx.criticalPath.JobIDs {
		job, ok := dag.GetJob(id)
		if !ok {
			continue
		}
		if worstJob == nil || job.EstimatedDurationSecs > worstJob.EstimatedDurationSecs {
			worstID = id
			worstJob = job
		}
	}
	if worstJob == nil || worstJob.EstimatedDurationSecs <= threshold {
		return nil
	}

	pct := worstJob.EstimatedDurationSecs / ctx.criticalPath.DurationSecs * 100
	return []Finding{{
		Severity:             SeverityHigh,
		Category:             CategoryCriticalPath,
		Title:                fmt.Sprintf("Job %q dominates the critical path", worstID),
		Description:          fmt.Sprintf("%q takes %.0fs, %.0f%% of the %.0fs critical path. Consider splitting or sharding it.", worstID, worstJob.EstimatedDurationSecs, pct, ctx.criticalPath.DurationSecs),
		AffectedJobs:         []string{worstID},
		Recommendation:       "Split this job into smaller parallelizable units or shard its test suite.",
		EstimatedSavingsSecs: savings(worstJob.EstimatedDurationSecs * 0.5),
		Confidence:           0.8,
		AutoFixable:          false,
	}}
}

// passParallelismEfficiency flags pipelines whose critical path is far
// longer than an ideal work-balanced schedule would require (spec.md §4.3
// pass 2).
func passParallelismEfficiency(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	if ctx.maxParallelism <= 1 {
		return nil
	}
	idealBalanced := ctx.totalDuration / float64(ctx.maxParallelism)
	if ctx.criticalPath.DurationSecs <= 1.5*idealBalanced {
		return nil
	}

	savingsSecs := (ctx.criticalPath.DurationSecs - idealBalanced) * 0.3
	return []Finding{{
		Severity:    SeverityMedium,
		Category:    CategoryParallelism,
		Title:       "Pipeline under-utilizes available parallelism",
		Description: fmt.Sprintf("Critical path is %.0fs, but %.0fs would be achievable with %d-way parallel balance.", ctx.criticalPath.DurationSecs, idealBalanced, ctx.maxParallelism),
		AffectedJobs: ctx.criticalPath.JobIDs,
		Recommendation: "Re-balance job dependencies so more work can run concurrently.",
		EstimatedSavingsSecs: savings(savingsSecs),
		Confidence:  0.6,
		AutoFixable: false,
	}}
}
