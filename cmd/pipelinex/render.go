package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/render"
)

func newRenderCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a pipeline's DAG as Mermaid, DOT, or ASCII",
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

			switch format {
			case "mermaid":
				fmt.Print(render.Mermaid(dag))
			case "dot":
				fmt.Print(render.DOT(dag))
			case "ascii":
				fmt.Print(render.ASCII(dag))
			default:
				return fmt.Errorf("render: unknown format %q (want mermaid, dot, or ascii)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "ascii", "output format: mermaid, dot, or ascii")
	return cmd
}
