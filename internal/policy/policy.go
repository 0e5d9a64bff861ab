// Package policy checks a pipeline DAG against an organization-defined
// set of rules loaded from a TOML file (SPEC_FULL.md §4.10, grounded on
// policy/mod.rs).
package policy

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/security"
)

// Severity mirrors analyzer.Severity without importing it, since a
// policy violation can be Error (build-breaking) independent of the
// analyzer's finding-severity scale.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Config is the policy document loaded from `.pipelinex-policy.toml`
// (grounded on policy/mod.rs's PolicyConfig/PolicyRules).
type Config struct {
	Rules Rules `toml:"rules"`
}

// Rules is the set of individually-togglable checks.
type Rules struct {
	RequireShaPinning       bool     `toml:"require_sha_pinning"`
	BannedRunners           []string `toml:"banned_runners"`
	MaxDurationSecs         float64  `toml:"max_duration_secs"`
	RequireCacheFor         []string `toml:"require_cache_for"`
	RequireConcurrencyGroup bool     `toml:"require_concurrency_group"`
}

// DefaultConfig returns a conservative starter policy, matching
// policy/mod.rs::generate_default_policy.
func DefaultConfig() Config {
	return Config{Rules: Rules{
		RequireShaPinning:       true,
		BannedRunners:           []string{"self-hosted"},
		MaxDurationSecs:         3600,
		RequireCacheFor:         []string{"npm", "pip", "maven", "gradle"},
		RequireConcurrencyGroup: true,
	}}
}

// DefaultConfigTOML renders DefaultConfig as commented starter TOML.
func DefaultConfigTOML() (string, error) {
	b, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("policy: marshal default config: %w", err)
	}
	return "# pipelinex policy — generated default; tune to your organization.\n" + string(b), nil
}

// LoadConfig reads and parses a policy TOML file from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Violation is one broken policy rule.
type Violation struct {
	Rule         string
	Message      string
	AffectedJobs []string
	Severity     Severity
}

// Report is the outcome of checking a DAG against a Config.
type Report struct {
	Violations []Violation
}

// Passed reports whether the pipeline has no Error-severity violation.
func (r Report) Passed() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Check evaluates every enabled rule in cfg against dag (grounded on
// policy/mod.rs::check_policy).
func Check(dag *pipedag.PipelineDag, cfg Config) Report {
	var violations []Violation
	violations = append(violations, checkShaPinning(dag, cfg.Rules)...)
	violations = append(violations, checkBannedRunners(dag, cfg.Rules)...)
	violations = append(violations, checkMaxDuration(dag, cfg.Rules)...)
	violations = append(violations, checkRequireCache(dag, cfg.Rules)...)
	violations = append(violations, checkRequireConcurrency(dag, cfg.Rules)...)
	return Report{Violations: violations}
}

func checkShaPinning(dag *pipedag.PipelineDag, rules Rules) []Violation {
	if !rules.RequireShaPinning || dag.Provider != "github_actions" {
		return nil
	}
	var jobs []string
	for _, job := range dag.Jobs() {
		for _, s := range job.Steps {
			if s.Uses == "" {
				continue
			}
			if security.ClassifyPin(s.Uses) != security.PinSha {
				jobs = append(jobs, job.ID)
				break
			}
		}
	}
	if len(jobs) == 0 {
		return nil
	}
	return []Violation{{
		Rule:         "require_sha_pinning",
		Message:      fmt.Sprintf("%d job(s) use an action not pinned to a full commit SHA", len(jobs)),
		AffectedJobs: jobs,
		Severity:     SeverityError,
	}}
}

func checkBannedRunners(dag *pipedag.PipelineDag, rules Rules) []Violation {
	var violations []Violation
	for _, job := range dag.Jobs() {
		for _, banned := range rules.BannedRunners {
			if banned != "" && strings.Contains(job.RunsOn, banned) {
				violations = append(violations, Violation{
					Rule:         "banned_runners",
					Message:      fmt.Sprintf("job %q uses banned runner label %q", job.ID, job.RunsOn),
					AffectedJobs: []string{job.ID},
					Severity:     SeverityError,
				})
			}
		}
	}
	return violations
}

func checkMaxDuration(dag *pipedag.PipelineDag, rules Rules) []Violation {
	if rules.MaxDurationSecs <= 0 {
		return nil
	}
	var jobs []string
	for _, job := range dag.Jobs() {
		if job.EstimatedDurationSecs > rules.MaxDurationSecs {
			jobs = append(jobs, job.ID)
		}
	}
	if len(jobs) == 0 {
		return nil
	}
	return []Violation{{
		Rule:         "max_duration_secs",
		Message:      fmt.Sprintf("%d job(s) estimated above the %.0fs ceiling", len(jobs), rules.MaxDurationSecs),
		AffectedJobs: jobs,
		Severity:     SeverityWarning,
	}}
}

func checkRequireCache(dag *pipedag.PipelineDag, rules Rules) []Violation {
	if len(rules.RequireCacheFor) == 0 {
		return nil
	}
	var violations []Violation
	for _, job := range dag.Jobs() {
		for _, mgr := range rules.RequireCacheFor {
			if !jobMentionsManager(job, mgr) {
				continue
			}
			if len(job.Caches) == 0 {
				violations = append(violations, Violation{
					Rule:         "require_cache_for",
					Message:      fmt.Sprintf("job %q uses %s but declares no cache", job.ID, mgr),
					AffectedJobs: []string{job.ID},
					Severity:     SeverityWarning,
				})
			}
		}
	}
	return violations
}

func jobMentionsManager(job *pipedag.JobNode, mgr string) bool {
	for _, s := range job.Steps {
		if strings.Contains(strings.ToLower(s.Run), mgr) {
			return true
		}
	}
	return false
}

func checkRequireConcurrency(dag *pipedag.PipelineDag, rules Rules) []Violation {
	if !rules.RequireConcurrencyGroup || dag.Provider != "github_actions" {
		return nil
	}
	if dag.HasConcurrencyControl {
		return nil
	}
	return []Violation{{
		Rule:     "require_concurrency_group",
		Message:  "workflow declares no concurrency group",
		Severity: SeverityWarning,
	}}
}
