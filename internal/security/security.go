// Package security runs permission, secret-exposure, and supply-chain
// scanners over a pipeline DAG, producing analyzer.Finding values so
// results merge directly into an analysis report (SPEC_FULL.md §4.9,
// grounded on security/{mod,permissions,secrets,supply_chain}.rs).
package security

import (
	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// Scan runs every scanner and returns their combined findings, unsorted
// (callers merge these into an analyzer.Report and re-sort, matching
// security/mod.rs::scan's role as a pure aggregator).
func Scan(dag *pipedag.PipelineDag) []analyzer.Finding {
	var findings []analyzer.Finding
	findings = append(findings, AuditPermissions(dag)...)
	findings = append(findings, DetectSecrets(dag)...)
	findings = append(findings, AssessSupplyChain(dag)...)
	return findings
}
