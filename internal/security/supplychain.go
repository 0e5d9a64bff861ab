package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// PinningRisk classifies how an action reference is version-pinned
// (grounded on supply_chain.rs::PinningRisk).
type PinningRisk string

const (
	PinSha     PinningRisk = "sha"
	PinTag     PinningRisk = "tag"
	PinBranch  PinningRisk = "branch"
	PinLatest  PinningRisk = "latest"
	PinUnknown PinningRisk = "unknown"
)

var (
	shaRefRe    = regexp.MustCompile(`@[0-9a-f]{40}$`)
	tagRefRe    = regexp.MustCompile(`@v?\d+(\.\d+)*$`)
	branchRefRe = regexp.MustCompile(`@(main|master|develop)$`)
)

// ClassifyPin reports the pinning risk level of a `uses:` reference.
func ClassifyPin(uses string) PinningRisk {
	switch {
	case shaRefRe.MatchString(uses):
		return PinSha
	case tagRefRe.MatchString(uses):
		return PinTag
	case branchRefRe.MatchString(uses):
		return PinBranch
	case strings.HasSuffix(uses, "@latest") || !strings.Contains(uses, "@"):
		return PinLatest
	default:
		return PinUnknown
	}
}

// knownRiskyActions is a small table of actions with a documented
// supply-chain compromise history, mirroring supply_chain.rs's
// KNOWN_RISKY_ACTIONS (e.g. the March 2025 tj-actions/changed-files CVE).
var knownRiskyActions = map[string]string{
	"tj-actions/changed-files": "Compromised in a March 2025 supply-chain attack (CVE-2025-30066); require a pinned, audited SHA or replace it.",
}

// AssessSupplyChain flags any third-party action reference that isn't
// pinned to a full commit SHA, plus a dedicated Critical finding for
// actions with known compromise history (grounded on
// security/supply_chain.rs::assess_supply_chain).
func AssessSupplyChain(dag *pipedag.PipelineDag) []analyzer.Finding {
	var findings []analyzer.Finding
	for _, job := range dag.Jobs() {
		for _, s := range job.Steps {
			if s.Uses == "" || isFirstParty(s.Uses) {
				continue
			}
			repo := actionRepo(s.Uses)
			if reason, risky := knownRiskyActions[repo]; risky {
				findings = append(findings, analyzer.Finding{
					Severity:       analyzer.SeverityCritical,
					Category:       analyzer.CategorySupplyChain,
					Title:          fmt.Sprintf("Known-risky action %q in use", repo),
					Description:    reason,
					AffectedJobs:   []string{job.ID},
					Recommendation: "Replace or pin to an audited commit SHA predating the disclosed compromise.",
					Confidence:     0.9,
					AutoFixable:    false,
				})
				continue
			}

			risk := ClassifyPin(s.Uses)
			if risk == PinSha {
				continue
			}
			findings = append(findings, analyzer.Finding{
				Severity:       severityForRisk(risk),
				Category:       analyzer.CategorySupplyChain,
				Title:          fmt.Sprintf("Third-party action %q is not SHA-pinned", repo),
				Description:    fmt.Sprintf("%q is pinned by %s, which can be repointed by the publisher.", s.Uses, risk),
				AffectedJobs:   []string{job.ID},
				Recommendation: "Pin to a full 40-character commit SHA.",
				Confidence:     0.7,
				AutoFixable:    false,
			})
		}
	}
	return findings
}

func severityForRisk(risk PinningRisk) analyzer.Severity {
	switch risk {
	case PinLatest, PinUnknown:
		return analyzer.SeverityHigh
	case PinBranch:
		return analyzer.SeverityHigh
	default:
		return analyzer.SeverityMedium
	}
}

func actionRepo(uses string) string {
	if i := strings.Index(uses, "@"); i >= 0 {
		return uses[:i]
	}
	return uses
}
