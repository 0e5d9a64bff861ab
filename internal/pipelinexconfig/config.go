// Package pipelinexconfig loads pipelinex's own runtime configuration —
// simulator defaults, health-score weights, RNG seed — from a YAML file,
// environment variables, and flags, merged the way the teacher's
// internal/config loader merges file settings over built-in defaults
// (cmd/config.go, cmd/main.go).
package pipelinexconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/spf13/viper"

	"github.com/dagucloud/pipelinex/internal/healthscore"
	"github.com/dagucloud/pipelinex/internal/simulator"
)

// Config is pipelinex's own operating configuration, distinct from the
// pipeline configurations it analyzes.
type Config struct {
	Simulator      SimulatorConfig      `mapstructure:"simulator"`
	HealthScore    HealthScoreConfig    `mapstructure:"health_score"`
}

// SimulatorConfig holds the default Monte Carlo parameters applied when a
// caller doesn't override them on the command line.
type SimulatorConfig struct {
	DefaultRuns     int     `mapstructure:"default_runs"`
	DefaultVariance float64 `mapstructure:"default_variance"`
	DefaultSeed     uint64  `mapstructure:"default_seed"`
}

// HealthScoreConfig holds the component weights fed to healthscore.Calculate.
type HealthScoreConfig struct {
	DurationEfficiency float64 `mapstructure:"duration_efficiency"`
	SuccessRate        float64 `mapstructure:"success_rate"`
	Parallelization    float64 `mapstructure:"parallelization"`
	Caching            float64 `mapstructure:"caching"`
	IssueSeverity      float64 `mapstructure:"issue_severity"`
}

// Default returns the built-in configuration: simulator.DefaultSeed as the
// RNG seed, and healthscore.DefaultWeights as the scoring weights.
func Default() Config {
	w := healthscore.DefaultWeights()
	return Config{
		Simulator: SimulatorConfig{
			DefaultRuns:     1000,
			DefaultVariance: 0.2,
			DefaultSeed:     simulator.DefaultSeed,
		},
		HealthScore: HealthScoreConfig{
			DurationEfficiency: w.DurationEfficiency,
			SuccessRate:        w.SuccessRate,
			Parallelization:    w.Parallelization,
			Caching:            w.Caching,
			IssueSeverity:      w.IssueSeverity,
		},
	}
}

// Load reads configuration from cfgFile (if non-empty), $HOME/.config/pipelinex/config.yaml
// otherwise, and the PIPELINEX_* environment, merging all three over
// Default() with file/env values taking precedence.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPELINEX")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("pipelinexconfig: resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".config", "pipelinex"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return Config{}, fmt.Errorf("pipelinexconfig: read %s: %w", cfgFile, err)
		}
		return cfg, nil
	}

	var fromFile Config
	if err := v.Unmarshal(&fromFile); err != nil {
		return Config{}, fmt.Errorf("pipelinexconfig: decode: %w", err)
	}
	if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("pipelinexconfig: merge: %w", err)
	}
	return cfg, nil
}

// SimulatorParams adapts the configured simulator defaults into
// simulator.Params, letting explicit flag overrides (runs/variance/seed,
// any of which may be zero meaning "use config") take precedence.
func (c Config) SimulatorParams(runs int, variance float64, seed uint64) simulator.Params {
	p := simulator.Params{
		Runs:           c.Simulator.DefaultRuns,
		VarianceFactor: c.Simulator.DefaultVariance,
		Seed:           c.Simulator.DefaultSeed,
	}
	if runs > 0 {
		p.Runs = runs
	}
	if variance > 0 {
		p.VarianceFactor = variance
	}
	if seed > 0 {
		p.Seed = seed
	}
	return p
}

// Weights adapts the configured health-score weights into healthscore.Weights.
func (c Config) Weights() healthscore.Weights {
	return healthscore.Weights{
		DurationEfficiency: c.HealthScore.DurationEfficiency,
		SuccessRate:        c.HealthScore.SuccessRate,
		Parallelization:    c.HealthScore.Parallelization,
		Caching:            c.HealthScore.Caching,
		IssueSeverity:      c.HealthScore.IssueSeverity,
	}
}
