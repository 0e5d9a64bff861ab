// Package analyzer runs the fixed-order pass registry over a DAG and
// aggregates the results into a report (spec.md §4.3).
package analyzer

import (
	"fmt"
	"sort"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities from most to least urgent for sorting.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

type FindingCategory string

const (
	CategoryCriticalPath      FindingCategory = "critical_path_concentration"
	CategoryParallelism       FindingCategory = "parallelism_efficiency"
	CategoryCacheGap          FindingCategory = "cache_gap"
	CategorySerialBottleneck  FindingCategory = "serial_bottleneck"
	CategoryTestSharding      FindingCategory = "test_sharding"
	CategoryMissingPathFilter FindingCategory = "missing_path_filter"
	CategoryShallowClone      FindingCategory = "shallow_clone"
	CategoryRedundantInstalls FindingCategory = "redundant_installs"
	CategoryConcurrencyControl FindingCategory = "concurrency_control"
	CategoryMatrixBloat       FindingCategory = "matrix_bloat"
	CategoryPermissions       FindingCategory = "permissions"
	CategorySecrets           FindingCategory = "secrets"
	CategorySupplyChain       FindingCategory = "supply_chain"
)

// Finding is a single actionable observation (spec.md §4.3).
type Finding struct {
	Severity             Severity
	Category             FindingCategory
	Title                string
	Description          string
	AffectedJobs         []string
	Recommendation       string
	FixCommand           string
	EstimatedSavingsSecs *float64
	Confidence           float64
	AutoFixable          bool
}

func savings(v float64) *float64 { return &v }

// Report is the output of a full analysis run (spec.md §6).
type Report struct {
	PipelineName               string
	SourceFile                 string
	Provider                   string
	JobCount                   int
	StepCount                  int
	MaxParallelism             int
	CriticalPath                []string
	CriticalPathDurationSecs    float64
	TotalEstimatedDurationSecs  float64
	OptimizedDurationSecs       float64
	Findings                    []Finding
}

// PotentialImprovementPct is the percentage reduction the optimized
// projection represents over the critical-path duration.
func (r Report) PotentialImprovementPct() float64 {
	if r.CriticalPathDurationSecs <= 0 {
		return 0
	}
	return (r.CriticalPathDurationSecs - r.OptimizedDurationSecs) / r.CriticalPathDurationSecs * 100
}

// SortFindings orders findings by severity descending, then estimated
// savings descending, then title, per spec.md §4.3. Exported so
// collaborators that merge in findings from another source (e.g. the
// security package) after Analyze has already run can re-sort the
// combined slice with the same ordering.
func SortFindings(findings []Finding) { sortFindings(findings) }

// sortFindings orders by severity descending, then estimated savings
// descending, then title, per spec.md §4.3.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] < severityRank[b.Severity]
		}
		as, bs := 0.0, 0.0
		if a.EstimatedSavingsSecs != nil {
			as = *a.EstimatedSavingsSecs
		}
		if b.EstimatedSavingsSecs != nil {
			bs = *b.EstimatedSavingsSecs
		}
		if as != bs {
			return as > bs
		}
		return a.Title < b.Title
	})
}

// FormatDuration renders a second count as a compact human string, used by
// CLI/report collaborators (grounded on report.rs::format_duration).
func FormatDuration(secs float64) string {
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	mins := int(secs) / 60
	rem := int(secs) % 60
	if mins < 60 {
		return fmt.Sprintf("%dm%ds", mins, rem)
	}
	hours := mins / 60
	mins = mins % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
