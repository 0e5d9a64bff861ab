// Package rewrite applies a subset of an analysis report's findings back
// onto the original pipeline source, producing an optimized configuration
// that preserves every construct the report didn't target (spec.md §4.5).
//
// The engine operates on the GitHub Actions document shape (`jobs` map,
// `needs` lists, `on` triggers, `steps` sequences) — every concrete
// scenario in spec.md §8 is a GitHub Actions workflow, and the one
// provider-specific transform (concurrency control) is already gated to
// `github_actions` by the analyzer pass that produces its finding. Other
// providers' documents are returned unchanged: the ground rule is "never
// perform string-level substitution", so a document shape the engine
// doesn't recognize is left alone rather than patched heuristically.
package rewrite

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
)

const headerMarker = "pipelinex:optimized"

// Result describes what a Rewrite call actually changed.
type Result struct {
	AppliedCount      int
	AppliedTransforms []string
}

// Rewrite parses content into a comment- and order-preserving node tree,
// mutates it in place per the report's auto-fixable findings, and
// re-serializes. Re-running Rewrite on its own output is a no-op — every
// transform checks for its own prior presence before applying, and a
// document already carrying the optimization header is returned unchanged
// (the idempotence contract, spec.md §4.5).
func Rewrite(content []byte, rpt analyzer.Report) ([]byte, *Result, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("rewrite: parse source: %w", err)
	}
	if len(doc.Content) == 0 {
		return content, &Result{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		out, err := marshal(&doc)
		return out, &Result{}, err
	}

	if alreadyRewritten(root) {
		out, err := marshal(&doc)
		return out, &Result{}, err
	}

	res := &Result{}

	if jobs, ok := mapGet(root, "jobs"); ok && jobs.Kind == yaml.MappingNode {
		record(res, "cache-injection", injectCaches(jobs, rpt.Findings))
		record(res, "false-dependency-removal", removeFalseDependencies(jobs, rpt.Findings))
		record(res, "shallow-clone", shallowClone(jobs))
		record(res, "shard-injection", injectShards(jobs, rpt.Findings))
	}
	record(res, "path-filter-injection", injectPathFilter(root, rpt.Findings))
	record(res, "concurrency-block", injectConcurrency(root, rpt.Findings))

	if res.AppliedCount > 0 {
		addHeader(root, rpt, res.AppliedCount)
	}

	out, err := marshal(&doc)
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite: serialize result: %w", err)
	}
	return out, res, nil
}

func record(res *Result, name string, n int) {
	if n > 0 {
		res.AppliedCount += n
		res.AppliedTransforms = append(res.AppliedTransforms, name)
	}
}

func alreadyRewritten(root *yaml.Node) bool {
	return root.HeadComment != "" && bytes.Contains([]byte(root.HeadComment), []byte(headerMarker))
}

func addHeader(root *yaml.Node, rpt analyzer.Report, appliedCount int) {
	root.HeadComment = fmt.Sprintf(
		"%s — source %s, projected %.0f%% faster, %d finding(s) applied",
		headerMarker, rpt.SourceFile, rpt.PotentialImprovementPct(), appliedCount,
	)
}

func marshal(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hasFinding(findings []analyzer.Finding, cat analyzer.FindingCategory) bool {
	for _, f := range findings {
		if f.Category == cat && f.AutoFixable {
			return true
		}
	}
	return false
}
