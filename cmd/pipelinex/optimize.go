package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/dockerrewrite"
	"github.com/dagucloud/pipelinex/internal/rewrite"
)

func newOptimizeCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "optimize <file>",
		Short: "Rewrite a pipeline config (or Dockerfile) with safe, automatic fixes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			content, err := readSource(path)
			if err != nil {
				return err
			}

			if strings.EqualFold(baseName(path), "dockerfile") || strings.HasSuffix(path, ".dockerfile") {
				return optimizeDockerfile(path, content, write)
			}
			return optimizePipeline(path, content, write)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the optimized result back to the file")
	return cmd
}

func optimizePipeline(path string, content []byte, write bool) error {
	_, parse, err := detect.Provider(path, content)
	if err != nil {
		return err
	}
	dag, err := parse(content, path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	rpt, err := analyzer.Analyze(dag)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}
	out, res, err := rewrite.Rewrite(content, rpt)
	if err != nil {
		return fmt.Errorf("optimize %s: %w", path, err)
	}
	logger.Info("optimized pipeline", "file", path, "applied", res.AppliedTransforms)
	if write {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Applied %d transform(s): %s\n", res.AppliedCount, strings.Join(res.AppliedTransforms, ", "))
		return nil
	}
	fmt.Print(string(out))
	return nil
}

func optimizeDockerfile(path string, content []byte, write bool) error {
	analysis := dockerrewrite.Analyze(string(content))
	logger.Info("analyzed dockerfile", "file", path, "findings", len(analysis.Findings))
	for _, f := range analysis.Findings {
		fmt.Printf("[%s] %s\n", f.Severity, f.Title)
		fmt.Printf("  %s\n", f.Fix)
	}
	fmt.Printf("Estimated build time: %.0fs -> %.0fs\n", analysis.EstimatedBuildTimeSecs, analysis.OptimizedBuildTimeSecs)
	if write {
		if err := os.WriteFile(path, []byte(analysis.Optimized), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	fmt.Println("---")
	fmt.Print(analysis.Optimized)
	return nil
}

func baseName(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
