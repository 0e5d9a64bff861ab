package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/runnersizing"
)

func newSizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size <file>",
		Short: "Recommend runner sizes from inferred CPU/memory/IO pressure",
		Args:  cobra.ExactArgs(1),
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

			rpt := runnersizing.Profile(dag)
			logger.Info("profiled runner sizing", "file", args[0], "jobs", len(rpt.Jobs))
			t := table.NewWriter()
			t.AppendHeader(table.Row{"Job", "Runner", "Current", "Recommended", "CPU", "Mem", "IO", "Resize?"})
			for _, j := range rpt.Jobs {
				t.AppendRow(table.Row{j.JobID, j.CurrentRunner, j.CurrentClass, j.RecommendedClass, j.CPUPressure, j.MemoryPressure, j.IOPressure, j.ShouldResize()})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
	return cmd
}
