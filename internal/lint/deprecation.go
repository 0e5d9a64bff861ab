package lint

import (
	"fmt"
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// deprecationRule matches a step's Uses reference by prefix.
type deprecationRule struct {
	prefix     string
	message    string
	suggestion string
	severity   Severity
}

// githubDeprecations mirrors deprecation.rs's GITHUB_DEPRECATIONS table:
// well-known actions whose major version has been superseded.
var githubDeprecations = []deprecationRule{
	{"actions/checkout@v1", "actions/checkout@v1 is deprecated", "Upgrade to actions/checkout@v4", SeverityMedium},
	{"actions/checkout@v2", "actions/checkout@v2 is deprecated", "Upgrade to actions/checkout@v4", SeverityMedium},
	{"actions/checkout@v3", "actions/checkout@v3 is deprecated", "Upgrade to actions/checkout@v4", SeverityLow},
	{"actions/setup-node@v1", "actions/setup-node@v1 is deprecated", "Upgrade to actions/setup-node@v4", SeverityMedium},
	{"actions/setup-node@v2", "actions/setup-node@v2 is deprecated", "Upgrade to actions/setup-node@v4", SeverityLow},
	{"actions/setup-python@v1", "actions/setup-python@v1 is deprecated", "Upgrade to actions/setup-python@v5", SeverityMedium},
	{"actions/setup-python@v2", "actions/setup-python@v2 is deprecated", "Upgrade to actions/setup-python@v5", SeverityLow},
	{"actions/cache@v1", "actions/cache@v1 is deprecated", "Upgrade to actions/cache@v4", SeverityMedium},
	{"actions/cache@v2", "actions/cache@v2 is deprecated", "Upgrade to actions/cache@v4", SeverityLow},
	{"actions/upload-artifact@v1", "actions/upload-artifact@v1 is deprecated", "Upgrade to actions/upload-artifact@v4", SeverityMedium},
	{"actions/upload-artifact@v2", "actions/upload-artifact@v2 is deprecated", "Upgrade to actions/upload-artifact@v4", SeverityMedium},
	{"actions/upload-artifact@v3", "actions/upload-artifact@v3 is deprecated", "Upgrade to actions/upload-artifact@v4", SeverityHigh},
	{"actions/download-artifact@v1", "actions/download-artifact@v1 is deprecated", "Upgrade to actions/download-artifact@v4", SeverityMedium},
	{"actions/download-artifact@v2", "actions/download-artifact@v2 is deprecated", "Upgrade to actions/download-artifact@v4", SeverityMedium},
	{"actions/download-artifact@v3", "actions/download-artifact@v3 is deprecated", "Upgrade to actions/download-artifact@v4", SeverityHigh},
}

// gitlabDeprecations mirrors GITLAB_DEPRECATIONS: keywords removed or
// superseded in recent GitLab CI releases.
var gitlabDeprecations = []deprecationRule{
	{"only:", "`only:`/`except:` job keys are deprecated", "Use `rules:` instead", SeverityLow},
	{"except:", "`only:`/`except:` job keys are deprecated", "Use `rules:` instead", SeverityLow},
}

// CheckDeprecations matches every step's Uses reference (GitHub Actions)
// or raw rule-keyword usage (GitLab) against the provider's deprecation
// table, plus a `-latest` runner info finding (grounded on
// linter/deprecation.rs::check_deprecations).
func CheckDeprecations(dag *pipedag.PipelineDag) []Finding {
	var findings []Finding
	var rules []deprecationRule
	switch dag.Provider {
	case "github_actions":
		rules = githubDeprecations
	case "gitlab":
		rules = gitlabDeprecations
	default:
		return nil
	}

	for _, job := range dag.Jobs() {
		for _, s := range job.Steps {
			for _, rule := range rules {
				if strings.HasPrefix(s.Uses, rule.prefix) || strings.Contains(s.Run, rule.prefix) {
					findings = append(findings, Finding{
						Severity:   rule.severity,
						RuleID:     "deprecation/" + rule.prefix,
						Message:    fmt.Sprintf("%s (job %q)", rule.message, job.ID),
						Suggestion: rule.suggestion,
						Location:   job.ID,
					})
				}
			}
		}
		if dag.Provider == "github_actions" && strings.HasSuffix(job.RunsOn, "-latest") {
			findings = append(findings, Finding{
				Severity:   SeverityInfo,
				RuleID:     "deprecation/runner-latest",
				Message:    fmt.Sprintf("Job %q pins runner to %q, which auto-updates on GitHub's schedule", job.ID, job.RunsOn),
				Suggestion: "Pin to a specific runner image version for reproducible builds.",
				Location:   job.ID,
			})
		}
	}
	return findings
}
