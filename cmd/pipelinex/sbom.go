package main

import (
	"fmt"
	"os"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/sbom"
)

func newSbomCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sbom <file>...",
		Short: "Generate a CycloneDX bill of materials from one or more pipeline configs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dags []*pipedag.PipelineDag
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
				dags = append(dags, dag)
			}

			bom := sbom.Generate(dags...)
			logger.Info("generated sbom", "files", len(args), "components", len(*bom.Components))

			fileFormat := cyclonedx.BOMFileFormatJSON
			if format == "xml" {
				fileFormat = cyclonedx.BOMFileFormatXML
			}
			return cyclonedx.NewBOMEncoder(os.Stdout, fileFormat).Encode(bom)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or xml")
	return cmd
}
