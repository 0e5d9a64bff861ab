package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/migration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: "Convert a GitHub Actions workflow to GitLab CI YAML",
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

			result, err := migration.GithubActionsToGitlabCI(dag)
			if err != nil {
				return err
			}
			logger.Info("migrated pipeline", "file", args[0], "warnings", len(result.Warnings))
			fmt.Print(result.YAML)
			for _, w := range result.Warnings {
				fmt.Printf("# warning: %s\n", w)
			}
			return nil
		},
	}
	return cmd
}
