package pipelinexconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simulator:
  default_runs: 5000
  default_variance: 0.35
health_score:
  caching: 0.5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Simulator.DefaultRuns)
	require.InDelta(t, 0.35, cfg.Simulator.DefaultVariance, 1e-9)
	require.InDelta(t, 0.5, cfg.HealthScore.Caching, 1e-9)
	require.Equal(t, Default().HealthScore.SuccessRate, cfg.HealthScore.SuccessRate)
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
}

func TestSimulatorParams_FlagsOverrideConfig(t *testing.T) {
	cfg := Default()
	p := cfg.SimulatorParams(10, 0.1, 7)
	require.Equal(t, 10, p.Runs)
	require.InDelta(t, 0.1, p.VarianceFactor, 1e-9)
	require.Equal(t, uint64(7), p.Seed)

	p2 := cfg.SimulatorParams(0, 0, 0)
	require.Equal(t, cfg.Simulator.DefaultRuns, p2.Runs)
}
