package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func twoJobDag(t *testing.T, triggers ...pipedag.Trigger) *pipedag.PipelineDag {
	t.Helper()
	dag := pipedag.New("ci", "workflow.yml", "github_actions")
	dag.Triggers = triggers
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 60}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "test", EstimatedDurationSecs: 60}))
	require.NoError(t, dag.AddDependency("build", "test"))
	return dag
}

func TestAnalyze_RunsRegistryInOrder(t *testing.T) {
	dag := twoJobDag(t, pipedag.Trigger{Event: "push"})
	rpt, err := Analyze(dag)
	require.NoError(t, err)
	require.Equal(t, "ci", rpt.PipelineName)
	require.Equal(t, 2, rpt.JobCount)
	require.NotEmpty(t, rpt.Findings)
}

func TestPassMissingPathFilter_FlagsNoFilterAtAll(t *testing.T) {
	dag := twoJobDag(t, pipedag.Trigger{Event: "push"})
	findings := passMissingPathFilter(dag, &passContext{})
	require.Len(t, findings, 1)
	require.Equal(t, CategoryMissingPathFilter, findings[0].Category)
	require.Equal(t, SeverityMedium, findings[0].Severity)
}

func TestPassMissingPathFilter_InverseCheckFlagsIneffectiveFilter(t *testing.T) {
	dag := twoJobDag(t, pipedag.Trigger{
		Event:       "push",
		PathsIgnore: []string{"*.txt"}, // doesn't exclude docs/**, *.md, or LICENSE
	})
	findings := passMissingPathFilter(dag, &passContext{})
	require.Len(t, findings, 1)
	require.Equal(t, SeverityLow, findings[0].Severity)
	require.Contains(t, findings[0].Title, "does not exclude documentation")
}

func TestPassMissingPathFilter_PassesWithEffectiveFilter(t *testing.T) {
	dag := twoJobDag(t, pipedag.Trigger{
		Event:       "push",
		PathsIgnore: []string{"docs/**", "*.md", "LICENSE"},
	})
	findings := passMissingPathFilter(dag, &passContext{})
	require.Empty(t, findings)
}

func TestPassMissingPathFilter_SingleJobNeverFlagged(t *testing.T) {
	dag := pipedag.New("ci", "workflow.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 60}))
	dag.Triggers = []pipedag.Trigger{{Event: "push"}}
	require.Empty(t, passMissingPathFilter(dag, &passContext{}))
}
