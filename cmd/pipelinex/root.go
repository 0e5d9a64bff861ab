// Package main is pipelinex's cobra entry point, following the teacher's
// cmd package layout: one file per subcommand sharing a root command and
// a small setup helper (cmd/root.go, cmd/config.go, cmd/setup.go).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dagucloud/pipelinex/internal/pipelinexconfig"
)

var (
	cfgFile string
	logger  *slog.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "pipelinex",
		Short:         "Analyze, simulate, and optimize CI pipeline configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/pipelinex/config.yaml)")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	if err := viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind flag verbose: %v\n", err)
		os.Exit(1)
	}

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newOptimizeCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newCheckPolicyCmd())
	root.AddCommand(newMultiRepoCmd())
	root.AddCommand(newSizeCmd())
	root.AddCommand(newSbomCmd())
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newWhatIfCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		slog.Default().Error(err.Error())
		os.Exit(1)
	}
}

// bindFlags wires the global logger and config up before any subcommand
// runs, matching the teacher's cmd/main.go initialize() sequencing:
// parse flags, then load config, then construct the logger from it.
func bindFlags(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func loadConfig() (pipelinexconfig.Config, error) {
	cfg, err := pipelinexconfig.Load(cfgFile)
	if err != nil {
		return pipelinexconfig.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func readSource(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return content, nil
}
