package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func TestDefaultConfig_IsConservative(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Rules.RequireShaPinning)
	require.Contains(t, cfg.Rules.BannedRunners, "self-hosted")
	require.True(t, cfg.Rules.RequireConcurrencyGroup)
}

func TestDefaultConfigTOML_RoundTrips(t *testing.T) {
	text, err := DefaultConfigTOML()
	require.NoError(t, err)
	require.Contains(t, text, "generated default")

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.toml")
	// strip the leading comment line the way a user-edited file wouldn't need to.
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestCheck_ShaPinningViolation(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:    "build",
		Steps: []pipedag.Step{{Uses: "actions/checkout@v4"}},
	}))
	report := Check(dag, Config{Rules: Rules{RequireShaPinning: true}})
	require.False(t, report.Passed())
	require.Len(t, report.Violations, 1)
	require.Equal(t, "require_sha_pinning", report.Violations[0].Rule)
}

func TestCheck_BannedRunner(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", RunsOn: "self-hosted-linux"}))
	report := Check(dag, Config{Rules: Rules{BannedRunners: []string{"self-hosted"}}})
	require.Len(t, report.Violations, 1)
	require.Equal(t, SeverityError, report.Violations[0].Severity)
}

func TestCheck_MaxDurationWarning(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 7200}))
	report := Check(dag, Config{Rules: Rules{MaxDurationSecs: 3600}})
	require.Len(t, report.Violations, 1)
	require.Equal(t, SeverityWarning, report.Violations[0].Severity)
	require.True(t, report.Passed(), "warnings alone don't fail the policy")
}

func TestCheck_RequireCacheFor(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:    "build",
		Steps: []pipedag.Step{{Run: "npm install"}},
	}))
	report := Check(dag, Config{Rules: Rules{RequireCacheFor: []string{"npm"}}})
	require.Len(t, report.Violations, 1)
	require.Equal(t, "require_cache_for", report.Violations[0].Rule)
}

func TestCheck_RequireCacheFor_SatisfiedWhenCached(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:     "build",
		Steps:  []pipedag.Step{{Run: "npm install"}},
		Caches: []pipedag.CacheConfig{{Path: "node_modules"}},
	}))
	report := Check(dag, Config{Rules: Rules{RequireCacheFor: []string{"npm"}}})
	require.Empty(t, report.Violations)
}

func TestCheck_RequireConcurrencyGroup(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build"}))
	report := Check(dag, Config{Rules: Rules{RequireConcurrencyGroup: true}})
	require.Len(t, report.Violations, 1)

	dag.HasConcurrencyControl = true
	report = Check(dag, Config{Rules: Rules{RequireConcurrencyGroup: true}})
	require.Empty(t, report.Violations)
}

func TestCheck_AllRulesDisabledYieldsNoViolations(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", RunsOn: "self-hosted", EstimatedDurationSecs: 999999}))
	report := Check(dag, Config{})
	require.Empty(t, report.Violations)
	require.True(t, report.Passed())
}
