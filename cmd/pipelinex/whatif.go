package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/whatif"
)

func newWhatIfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "what-if <file> <modification>...",
		Short: "Apply hypothetical modifications to a pipeline and report the before/after delta",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var mods []whatif.Modification
			for _, raw := range args[1:] {
				m, err := whatif.ParseModification(raw)
				if err != nil {
					return err
				}
				mods = append(mods, m)
			}

			result, err := whatif.Simulate(dag, mods)
			if err != nil {
				return err
			}
			logger.Info("simulated what-if modifications", "file", args[0], "modifications", len(mods), "applied", len(result.Applied))

			fmt.Printf("Critical path: %s -> %s (%+.0fs)\n",
				analyzer.FormatDuration(result.Before.CriticalPathDurationSecs),
				analyzer.FormatDuration(result.After.CriticalPathDurationSecs),
				result.DurationDeltaSecs)
			fmt.Printf("Findings: %d -> %d (%+d)\n", len(result.Before.Findings), len(result.After.Findings), result.FindingCountDelta)
			fmt.Printf("Jobs: %d -> %d (%+d)\n", result.Before.JobCount, result.After.JobCount, result.JobCountDelta)
			for _, e := range result.Errors {
				fmt.Printf("warning: %s\n", e)
			}
			return nil
		},
	}
	return cmd
}
