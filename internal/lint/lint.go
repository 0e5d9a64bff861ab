// Package lint checks a pipeline for deprecated action references,
// missing required schema keys, and likely-typo configuration keys
// (SPEC_FULL.md §4.8, grounded on linter/{deprecation,schema,typo}.rs).
package lint

import (
	"sort"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// Severity mirrors analyzer.Severity's levels without importing the
// analyzer package, since lint findings can be produced from raw YAML
// text alone, before a DAG exists.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Finding is one lint observation.
type Finding struct {
	Severity   Severity
	RuleID     string
	Message    string
	Suggestion string
	Location   string // job id, step name, or YAML key, best-effort
}

// Check runs the deprecation, schema, and typo checks over dag and its
// raw source text, returning their combined, severity-sorted findings
// (grounded on linter/mod.rs::lint_all).
func Check(dag *pipedag.PipelineDag, rawContent []byte) []Finding {
	var findings []Finding
	findings = append(findings, CheckDeprecations(dag)...)
	findings = append(findings, CheckSchema(rawContent, dag.Provider)...)
	findings = append(findings, CheckTypos(rawContent, dag.Provider)...)

	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank[findings[i].Severity] < severityRank[findings[j].Severity]
	})
	return findings
}
