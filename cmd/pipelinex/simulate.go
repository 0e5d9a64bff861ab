package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/simulator"
)

func newSimulateCmd() *cobra.Command {
	var runs int
	var variance float64
	var seed uint64
	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Run a Monte Carlo timing simulation over a pipeline's DAG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			content, err := readSource(args[0])
			if err != nil {
				return err
			}
			_, parse, err := detect.Provider(args[0], content)
			if err != nil {
				return err
			}
			dag, err := parse(content, args[0])
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			params := cfg.SimulatorParams(runs, variance, seed)
			runID := uuid.New().String()
			result := simulator.Simulate(dag, params)
			logger.Info("simulated pipeline", "run_id", runID, "file", args[0], "runs", params.Runs)
			printSimulation(result)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 0, "number of Monte Carlo trials (0 = use config default)")
	cmd.Flags().Float64Var(&variance, "variance", 0, "duration variance factor in [0,1] (0 = use config default)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "RNG seed (0 = use config default)")
	return cmd
}

func printSimulation(result simulator.Result) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Runs", "Min", "P50", "P75", "P90", "P99", "Max", "Mean", "StdDev"})
	t.AppendRow(table.Row{
		result.Runs,
		analyzer.FormatDuration(result.MinSecs),
		analyzer.FormatDuration(result.P50Secs),
		analyzer.FormatDuration(result.P75Secs),
		analyzer.FormatDuration(result.P90Secs),
		analyzer.FormatDuration(result.P99Secs),
		analyzer.FormatDuration(result.MaxSecs),
		analyzer.FormatDuration(result.MeanSecs),
		analyzer.FormatDuration(result.StdDevSecs),
	})
	fmt.Println(t.Render())

	jobs := table.NewWriter()
	jobs.AppendHeader(table.Row{"Job", "Mean", "P50", "P90", "On Critical Path"})
	for _, js := range result.PerJob {
		jobs.AppendRow(table.Row{
			js.JobID,
			analyzer.FormatDuration(js.MeanSecs),
			analyzer.FormatDuration(js.P50Secs),
			analyzer.FormatDuration(js.P90Secs),
			fmt.Sprintf("%.0f%%", js.OnCriticalPathFrac*100),
		})
	}
	fmt.Println(jobs.Render())
}
