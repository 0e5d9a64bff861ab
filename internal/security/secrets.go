package security

import (
	"fmt"
	"regexp"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// secretPattern is one entry of the hardcoded-secret signature table,
// mirroring secrets.rs's SECRET_PATTERNS.
type secretPattern struct {
	ruleID   string
	label    string
	re       *regexp.Regexp
	severity analyzer.Severity
}

var secretPatterns = []secretPattern{
	{"secrets/aws-access-key", "AWS access key ID", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), analyzer.SeverityCritical},
	{"secrets/github-pat", "GitHub personal access token", regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`), analyzer.SeverityCritical},
	{"secrets/generic-api-key", "hardcoded API key assignment", regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"][A-Za-z0-9_\-]{16,}['"]`), analyzer.SeverityHigh},
	{"secrets/password-assignment", "hardcoded password assignment", regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"$]{4,}['"]`), analyzer.SeverityHigh},
	{"secrets/docker-login-password", "inline docker login password", regexp.MustCompile(`docker\s+login\s+.*--password[=\s]+\S+`), analyzer.SeverityHigh},
	{"secrets/base64-piped-secret", "secret piped through base64", regexp.MustCompile(`echo\s+['"][A-Za-z0-9+/=]{20,}['"]\s*\|\s*base64\s+-d`), analyzer.SeverityMedium},
	{"secrets/private-key-block", "embedded private key material", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----`), analyzer.SeverityCritical},
	{"secrets/slack-webhook", "Slack incoming webhook URL", regexp.MustCompile(`https://hooks\.slack\.com/services/\S+`), analyzer.SeverityMedium},
}

// DetectSecrets scans every step's Run body and every job's Env values
// against the secret pattern table, redacting the matched text in the
// finding description (grounded on security/secrets.rs::detect_secrets).
func DetectSecrets(dag *pipedag.PipelineDag) []analyzer.Finding {
	var findings []analyzer.Finding
	for _, job := range dag.Jobs() {
		for k, v := range job.Env {
			findings = append(findings, scanText(job.ID, fmt.Sprintf("env.%s", k), v)...)
		}
		for _, s := range job.Steps {
			findings = append(findings, scanText(job.ID, s.Name, s.Run)...)
		}
	}
	return findings
}

func scanText(jobID, location, text string) []analyzer.Finding {
	if text == "" {
		return nil
	}
	var findings []analyzer.Finding
	for _, p := range secretPatterns {
		if m := p.re.FindString(text); m != "" {
			findings = append(findings, analyzer.Finding{
				Severity:       p.severity,
				Category:       analyzer.CategorySecrets,
				Title:          fmt.Sprintf("Possible %s in job %q", p.label, jobID),
				Description:    fmt.Sprintf("%s (%s): %s", p.label, location, redactValue(m)),
				AffectedJobs:   []string{jobID},
				Recommendation: "Move this value into a repository or organization secret and reference it via the provider's secret syntax.",
				Confidence:     0.6,
				AutoFixable:    false,
			})
		}
	}
	return findings
}

// redactValue keeps a short prefix/suffix and masks the middle, matching
// secrets.rs::redact_value's fixed-width masking.
func redactValue(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "****" + v[len(v)-4:]
}
