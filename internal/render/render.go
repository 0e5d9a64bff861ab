// Package render produces diagnostic visualizations of a pipeline DAG.
// This is output-only: no analysis pass or simulator depends on it
// (SPEC_FULL.md §4.7, grounded on graph/mod.rs).
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// Mermaid renders the DAG as a `graph TD` Mermaid diagram.
func Mermaid(dag *pipedag.PipelineDag) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, id := range dag.JobIDs() {
		job, _ := dag.GetJob(id)
		fmt.Fprintf(&b, "    %s[%s]\n", nodeID(id), job.DisplayName)
	}
	for _, edge := range orderedEdges(dag) {
		fmt.Fprintf(&b, "    %s --> %s\n", nodeID(edge[0]), nodeID(edge[1]))
	}
	return b.String()
}

// DOT renders the DAG as Graphviz DOT.
func DOT(dag *pipedag.PipelineDag) string {
	var b strings.Builder
	b.WriteString("digraph pipeline {\n")
	for _, id := range dag.JobIDs() {
		job, _ := dag.GetJob(id)
		fmt.Fprintf(&b, "  %q [label=%q];\n", id, job.DisplayName)
	}
	for _, edge := range orderedEdges(dag) {
		fmt.Fprintf(&b, "  %q -> %q;\n", edge[0], edge[1])
	}
	b.WriteString("}\n")
	return b.String()
}

// ASCII renders a plain-text tree, roots first, indented by topological
// level.
func ASCII(dag *pipedag.PipelineDag) string {
	levels, err := dag.ComputeLevels()
	if err != nil {
		return fmt.Sprintf("(cycle detected: %v)\n", err)
	}

	byLevel := map[int][]string{}
	maxLevel := 0
	for id, lvl := range levels {
		byLevel[lvl] = append(byLevel[lvl], id)
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	var b strings.Builder
	for lvl := 0; lvl <= maxLevel; lvl++ {
		ids := byLevel[lvl]
		sort.Strings(ids)
		for _, id := range ids {
			job, _ := dag.GetJob(id)
			fmt.Fprintf(&b, "%s%s (%.0fs)\n", strings.Repeat("  ", lvl), job.DisplayName, job.EstimatedDurationSecs)
		}
	}
	return b.String()
}

func nodeID(id string) string {
	return strings.ReplaceAll(strings.ReplaceAll(id, "-", "_"), ".", "_")
}

func orderedEdges(dag *pipedag.PipelineDag) [][2]string {
	var edges [][2]string
	for _, id := range dag.JobIDs() {
		job, _ := dag.GetJob(id)
		parents := append([]string(nil), job.Needs...)
		sort.Strings(parents)
		for _, p := range parents {
			edges = append(edges, [2]string{p, id})
		}
	}
	return edges
}
