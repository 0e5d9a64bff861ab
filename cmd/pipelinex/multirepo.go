package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/multirepo"
)

func newMultiRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multi-repo <file>...",
		Short: "Analyze cross-repository orchestration across several pipeline configs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pipelines []multirepo.RepoPipeline
			for _, path := range args {
				content, err := readSource(path)
				if err != nil {
					return err
				}
				_, parse, err := detect.Provider(path, content)
				if err != nil {
					return err
				}
				dag, err := parse(content, path)
				if err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
				pipelines = append(pipelines, multirepo.RepoPipeline{Repo: path, Dag: dag})
			}

			rpt := multirepo.Analyze(pipelines)
			logger.Info("analyzed multi-repo pipelines", "repos", len(pipelines), "findings", len(rpt.Findings))

			t := table.NewWriter()
			t.AppendHeader(table.Row{"Repo", "Jobs", "Critical Path", "Provider"})
			for _, s := range rpt.Summaries {
				t.AppendRow(table.Row{s.Repo, s.JobCount, fmt.Sprintf("%.0fs", s.CriticalPathSecs), s.Provider})
			}
			fmt.Println(t.Render())

			if len(rpt.Findings) == 0 {
				fmt.Println("No cross-repository findings.")
				return nil
			}
			ft := table.NewWriter()
			ft.AppendHeader(table.Row{"Severity", "Title", "Description"})
			for _, f := range rpt.Findings {
				ft.AppendRow(table.Row{f.Severity, f.Title, f.Description})
			}
			fmt.Println(ft.Render())
			return nil
		},
	}
	return cmd
}
