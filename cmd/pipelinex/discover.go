package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/discovery"
)

func newDiscoverCmd() *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "discover <root>",
		Short: "Walk a monorepo and list every CI pipeline configuration it contains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := discovery.Discover(args[0], maxDepth)
			if err != nil {
				return fmt.Errorf("discover %s: %w", args[0], err)
			}
			agg := discovery.Aggregate(args[0], found)
			logger.Info("discovered pipelines", "root", args[0], "pipelines", len(found), "packages", len(agg.Packages))

			if len(found) == 0 {
				fmt.Println("No pipeline configs found.")
				return nil
			}
			t := table.NewWriter()
			t.AppendHeader(table.Row{"Path", "Package"})
			for _, p := range found {
				t.AppendRow(table.Row{p.Path, p.PackageName})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum directory depth to walk (0 = unlimited)")
	return cmd
}
