package analyzer

import (
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// jobKind is the coarse classification used by the serial-bottleneck and
// test-sharding passes (grounded on parallel_finder.rs::JobType).
type jobKind string

const (
	jobLint   jobKind = "lint"
	jobTest   jobKind = "test"
	jobBuild  jobKind = "build"
	jobDeploy jobKind = "deploy"
	jobOther  jobKind = "other"
)

// classifyJob inspects a job's id, display name, and step text to bucket
// it into a coarse kind.
func classifyJob(job *pipedag.JobNode) jobKind {
	text := strings.ToLower(job.ID + " " + job.DisplayName)
	for _, s := range job.Steps {
		text += " " + strings.ToLower(s.Name+" "+s.Run)
	}

	switch {
	case containsAny(text, "lint", "eslint", "flake8", "rubocop", "format-check", "fmt-check"):
		return jobLint
	case containsAny(text, "deploy", "release", "publish", "rollout"):
		return jobDeploy
	case containsAny(text, "test", "pytest", "jest", "rspec", "unittest"):
		return jobTest
	case containsAny(text, "build", "compile", "package"):
		return jobBuild
	default:
		return jobOther
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// isLikelyFalseDependency reports whether a dependency edge from ancestor
// to descendant is one the serial-bottleneck pass deems unnecessary
// (spec.md §4.3 pass 4: lint -> test|build, test -> build).
func isLikelyFalseDependency(ancestorKind, descendantKind jobKind) bool {
	if ancestorKind == jobLint && (descendantKind == jobTest || descendantKind == jobBuild) {
		return true
	}
	if ancestorKind == jobTest && descendantKind == jobBuild {
		return true
	}
	return false
}
