package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/policy"
)

func newCheckPolicyCmd() *cobra.Command {
	var policyPath string
	cmd := &cobra.Command{
		Use:   "check-policy <file>",
		Short: "Check a pipeline config against an organization policy",
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

			cfg := policy.DefaultConfig()
			if policyPath != "" {
				cfg, err = policy.LoadConfig(policyPath)
				if err != nil {
					return err
				}
			}

			rpt := policy.Check(dag, cfg)
			logger.Info("checked policy", "file", args[0], "violations", len(rpt.Violations), "passed", rpt.Passed())
			if len(rpt.Violations) == 0 {
				fmt.Println("No policy violations.")
				return nil
			}
			t := table.NewWriter()
			t.AppendHeader(table.Row{"Severity", "Rule", "Message", "Jobs"})
			for _, v := range rpt.Violations {
				t.AppendRow(table.Row{v.Severity, v.Rule, v.Message, v.AffectedJobs})
			}
			fmt.Println(t.Render())
			if !rpt.Passed() {
				return fmt.Errorf("policy check failed: %d error-severity violation(s)", countErrors(rpt))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy", "", "path to a .pipelinex-policy.toml file (default: built-in defaults)")
	return cmd
}

func countErrors(rpt policy.Report) int {
	n := 0
	for _, v := range rpt.Violations {
		if v.Severity == policy.SeverityError {
			n++
		}
	}
	return n
}
