package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func twoJobDag(t *testing.T) *pipedag.PipelineDag {
	t.Helper()
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build-app", DisplayName: "Build", EstimatedDurationSecs: 60}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "test.unit", DisplayName: "Test", EstimatedDurationSecs: 30}))
	require.NoError(t, dag.AddDependency("build-app", "test.unit"))
	return dag
}

func TestMermaid_RendersNodesAndSanitizedEdgeIDs(t *testing.T) {
	dag := twoJobDag(t)
	out := Mermaid(dag)
	require.Contains(t, out, "graph TD")
	require.Contains(t, out, "build_app[Build]")
	require.Contains(t, out, "test_unit[Test]")
	require.Contains(t, out, "build_app --> test_unit")
}

func TestDOT_RendersQuotedNodesAndEdges(t *testing.T) {
	dag := twoJobDag(t)
	out := DOT(dag)
	require.Contains(t, out, "digraph pipeline {")
	require.Contains(t, out, `"build-app" [label="Build"];`)
	require.Contains(t, out, `"build-app" -> "test.unit";`)
}

func TestASCII_IndentsByLevel(t *testing.T) {
	dag := twoJobDag(t)
	out := ASCII(dag)
	require.Contains(t, out, "Build (60s)\n")
	require.Contains(t, out, "  Test (30s)\n")
}

func TestASCII_CycleReportsError(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "a"}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "b"}))
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "a"))
	out := ASCII(dag)
	require.Contains(t, out, "cycle detected")
}
