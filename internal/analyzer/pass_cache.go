package analyzer

import (
	"fmt"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
)

// passCacheGaps flags jobs that install dependencies without a
// cache-providing step, and Docker builds without a cache source
// (spec.md §4.3 pass 3).
func passCacheGaps(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var findings []Finding

	for _, job := range dag.Jobs() {
		if len(job.Caches) > 0 {
			continue
		}
		hasCacheStep := false
		for _, s := range job.Steps {
			if s.HasCacheHint {
				hasCacheStep = true
				break
			}
		}
		if hasCacheStep {
			continue
		}

		var ecosystem duration.Ecosystem
		for _, s := range job.Steps {
			if s.Run == "" {
				continue
			}
			if duration.IsDependencyInstaller(s.Run) {
				ecosystem = duration.ClassifyEcosystem(s.Run)
				break
			}
		}

		if ecosystem != duration.EcosystemUnknown {
			sev := SeverityCritical
			if ecosystem == duration.EcosystemGradleMaven {
				sev = SeverityHigh
			}
			findings = append(findings, Finding{
				Severity:       sev,
				Category:       CategoryCacheGap,
				Title:          fmt.Sprintf("Job %q installs dependencies without caching", job.ID),
				Description:    fmt.Sprintf("%q runs a %s dependency install with no cache step. Every run pays the full install cost.", job.ID, ecosystem),
				AffectedJobs:   []string{job.ID},
				Recommendation: "Add a cache step keyed on the lockfile hash before the install step.",
				EstimatedSavingsSecs: savings(job.EstimatedDurationSecs * 0.4),
				Confidence:     0.85,
				AutoFixable:    true,
			})
		}

		for _, s := range job.Steps {
			if s.IsDockerBuild() && !s.HasDockerCacheFrom {
				findings = append(findings, Finding{
					Severity:       SeverityHigh,
					Category:       CategoryCacheGap,
					Title:          fmt.Sprintf("Job %q builds a Docker image without layer caching", job.ID),
					Description:    fmt.Sprintf("%q runs docker build with no --cache-from and no cache action.", job.ID),
					AffectedJobs:   []string{job.ID},
					Recommendation: "Add --cache-from or use a cache-enabled build action.",
					EstimatedSavingsSecs: savings(job.EstimatedDurationSecs * 0.3),
					Confidence:     0.7,
					AutoFixable:    false,
				})
				break
			}
		}
	}

	return findings
}

// passRedundantInstalls flags pipelines where more than two jobs each run
// their own dependency install independently (spec.md §4.3 pass 8).
func passRedundantInstalls(dag *pipedag.PipelineDag, ctx *passContext) []Finding {
	var installers []string
	for _, job := range dag.Jobs() {
		for _, s := range job.Steps {
			if s.Run != "" && duration.IsDependencyInstaller(s.Run) {
				installers = append(installers, job.ID)
				break
			}
		}
	}
	if len(installers) <= 2 {
		return nil
	}
	return []Finding{{
		Severity:       SeverityMedium,
		Category:       CategoryRedundantInstalls,
		Title:          "Multiple jobs install dependencies independently",
		Description:    fmt.Sprintf("%d jobs each run their own dependency install: %v.", len(installers), installers),
		AffectedJobs:   installers,
		Recommendation: "Share a single setup job and pass the installed dependencies as an artifact.",
		Confidence:     0.5,
		AutoFixable:    false,
	}}
}
