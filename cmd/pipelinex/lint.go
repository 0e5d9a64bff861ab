package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/lint"
)

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <file>",
		Short: "Check for deprecated references, schema problems, and likely key typos",
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

			findings := lint.Check(dag, content)
			logger.Info("linted pipeline", "file", args[0], "findings", len(findings))
			if len(findings) == 0 {
				fmt.Println("No lint findings.")
				return nil
			}
			t := table.NewWriter()
			t.AppendHeader(table.Row{"Severity", "Rule", "Message", "Suggestion"})
			for _, f := range findings {
				t.AppendRow(table.Row{f.Severity, f.RuleID, f.Message, f.Suggestion})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
	return cmd
}
