package graphalg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func diamondDag(t *testing.T) *pipedag.PipelineDag {
	t.Helper()
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 60}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "unit", EstimatedDurationSecs: 30}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "integration", EstimatedDurationSecs: 120}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "deploy", EstimatedDurationSecs: 20}))
	require.NoError(t, dag.AddDependency("build", "unit"))
	require.NoError(t, dag.AddDependency("build", "integration"))
	require.NoError(t, dag.AddDependency("unit", "deploy"))
	require.NoError(t, dag.AddDependency("integration", "deploy"))
	return dag
}

func TestFindCriticalPath_PicksLongestChain(t *testing.T) {
	dag := diamondDag(t)
	cp, err := FindCriticalPath(dag)
	require.NoError(t, err)
	require.Equal(t, []string{"build", "integration", "deploy"}, cp.JobIDs)
	require.Equal(t, float64(60+120+20), cp.DurationSecs)
}

func TestFindCriticalPath_EmptyDag(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	cp, err := FindCriticalPath(dag)
	require.NoError(t, err)
	require.Empty(t, cp.JobIDs)
	require.Equal(t, float64(0), cp.DurationSecs)
}

func TestFindCriticalPath_SingleJob(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 45}))
	cp, err := FindCriticalPath(dag)
	require.NoError(t, err)
	require.Equal(t, []string{"build"}, cp.JobIDs)
	require.Equal(t, float64(45), cp.DurationSecs)
}

func TestFindCriticalPath_PropagatesCycleError(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "a"}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "b"}))
	require.NoError(t, dag.AddDependency("a", "b"))
	require.NoError(t, dag.AddDependency("b", "a"))
	_, err := FindCriticalPath(dag)
	require.Error(t, err)
}

func TestMaxParallelism_Delegates(t *testing.T) {
	dag := diamondDag(t)
	max, err := MaxParallelism(dag)
	require.NoError(t, err)
	require.Equal(t, 2, max)
}

func TestTotalDuration_SumsAllJobs(t *testing.T) {
	dag := diamondDag(t)
	require.Equal(t, float64(60+30+120+20), TotalDuration(dag))
}
