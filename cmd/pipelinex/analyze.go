package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/detect"
	"github.com/dagucloud/pipelinex/internal/healthscore"
	"github.com/dagucloud/pipelinex/internal/security"
)

func newAnalyzeCmd() *cobra.Command {
	var showHealth, showBadge, skipSecurity bool
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Parse a pipeline config and report findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			content, err := readSource(args[0])
			if err != nil {
				return err
			}
			provider, parse, err := detect.Provider(args[0], content)
			if err != nil {
				return err
			}
			dag, err := parse(content, args[0])
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			rpt, err := analyzer.Analyze(dag)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", args[0], err)
			}
			if !skipSecurity {
				rpt.Findings = mergeSecurityFindings(rpt, security.Scan(dag))
			}

			logger.Info("analyzed pipeline", "file", args[0], "provider", provider, "jobs", rpt.JobCount, "findings", len(rpt.Findings))
			printReportSummary(rpt)
			printFindings(rpt)
			if showHealth || showBadge {
				score := computeHealth(cfg.Weights(), rpt)
				if showHealth {
					printHealth(score)
				}
				if showBadge {
					badge := healthscore.Badge(score)
					fmt.Println(badge.Markdown)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHealth, "health", false, "also print the health score")
	cmd.Flags().BoolVar(&showBadge, "badge", false, "also print a shields.io health badge")
	cmd.Flags().BoolVar(&skipSecurity, "no-security", false, "skip the permission/secret/supply-chain scanners")
	return cmd
}

// mergeSecurityFindings appends security findings to an analyzer report's
// findings and re-sorts with the analyzer's own severity ordering.
func mergeSecurityFindings(rpt analyzer.Report, extra []analyzer.Finding) []analyzer.Finding {
	all := append(append([]analyzer.Finding(nil), rpt.Findings...), extra...)
	analyzer.SortFindings(all)
	return all
}

func printReportSummary(rpt analyzer.Report) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Pipeline", "Provider", "Jobs", "Steps", "Max Parallelism", "Critical Path", "Est. Duration", "Optimized", "Improvement"})
	t.AppendRow(table.Row{
		rpt.PipelineName,
		rpt.Provider,
		rpt.JobCount,
		rpt.StepCount,
		rpt.MaxParallelism,
		analyzer.FormatDuration(rpt.CriticalPathDurationSecs),
		analyzer.FormatDuration(rpt.TotalEstimatedDurationSecs),
		analyzer.FormatDuration(rpt.OptimizedDurationSecs),
		fmt.Sprintf("%.0f%%", rpt.PotentialImprovementPct()),
	})
	fmt.Println(t.Render())
}

func printFindings(rpt analyzer.Report) {
	if len(rpt.Findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Severity", "Category", "Title", "Jobs", "Savings", "Fixable"})
	for _, f := range rpt.Findings {
		savings := "-"
		if f.EstimatedSavingsSecs != nil {
			savings = analyzer.FormatDuration(*f.EstimatedSavingsSecs)
		}
		t.AppendRow(table.Row{f.Severity, f.Category, f.Title, f.AffectedJobs, savings, f.AutoFixable})
	}
	fmt.Println(t.Render())
}

func computeHealth(weights healthscore.Weights, rpt analyzer.Report) healthscore.Score {
	critical, high := countSeverities(rpt)
	ratio := 0.0
	if rpt.JobCount > 0 {
		ratio = float64(rpt.MaxParallelism) / float64(rpt.JobCount)
	}
	return healthscore.Calculate(weights, healthscore.Inputs{
		DurationSecs:         rpt.CriticalPathDurationSecs,
		OptimalDurationSecs:  rpt.OptimizedDurationSecs,
		SuccessRate:          1.0,
		ParallelizationRatio: ratio,
		HasCaching:           hasCacheGap(rpt) == false,
		CriticalIssues:       critical,
		HighIssues:           high,
	})
}

func printHealth(score healthscore.Score) {
	fmt.Printf("%s Health score: %.0f/100 (%s)\n", score.Grade.Emoji(), score.TotalScore, score.Grade.Label())
	for _, r := range score.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
}

func countSeverities(rpt analyzer.Report) (critical, high int) {
	for _, f := range rpt.Findings {
		switch f.Severity {
		case analyzer.SeverityCritical:
			critical++
		case analyzer.SeverityHigh:
			high++
		}
	}
	return
}

func hasCacheGap(rpt analyzer.Report) bool {
	for _, f := range rpt.Findings {
		if f.Category == analyzer.CategoryCacheGap {
			return true
		}
	}
	return false
}
