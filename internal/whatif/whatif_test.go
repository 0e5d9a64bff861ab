package whatif

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func chainDag(t *testing.T) *pipedag.PipelineDag {
	t.Helper()
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", RunsOn: "ubuntu-latest", EstimatedDurationSecs: 120}))
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "test", RunsOn: "ubuntu-latest", EstimatedDurationSecs: 60}))
	require.NoError(t, dag.AddDependency("build", "test"))
	return dag
}

func TestParseModification_AllCommandForms(t *testing.T) {
	cases := []struct {
		in   string
		kind ModKind
	}{
		{"remove-dep a->b", ModRemoveDependency},
		{"add-dep a->b", ModAddDependency},
		{"add-cache build 30", ModAddCache},
		{"remove-cache build", ModRemoveCache},
		{"enable-path-filter build", ModEnablePathFilter},
		{"remove-job build", ModRemoveJob},
		{"change-runner build large", ModChangeRunner},
		{"set-duration build 300", ModSetDuration},
	}
	for _, c := range cases {
		m, err := ParseModification(c.in)
		require.NoError(t, err, c.in)
		require.Equal(t, c.kind, m.Kind, c.in)
	}
}

func TestParseModification_RejectsMalformedInput(t *testing.T) {
	_, err := ParseModification("remove-dep")
	require.Error(t, err)
	_, err = ParseModification("remove-dep a-b")
	require.Error(t, err)
	_, err = ParseModification("bogus-command build")
	require.Error(t, err)
	_, err = ParseModification("add-cache build notanumber")
	require.Error(t, err)
}

func TestSimulate_RemoveDependencyShortensCriticalPath(t *testing.T) {
	dag := chainDag(t)
	mods := []Modification{{Kind: ModRemoveDependency, From: "build", To: "test"}}
	result, err := Simulate(dag, mods)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	require.Empty(t, result.Errors)
	require.Less(t, result.After.CriticalPathDurationSecs, result.Before.CriticalPathDurationSecs)
	require.Negative(t, result.DurationDeltaSecs)
}

func TestSimulate_RemoveJobReducesJobCount(t *testing.T) {
	dag := chainDag(t)
	mods := []Modification{{Kind: ModRemoveJob, JobID: "test"}}
	result, err := Simulate(dag, mods)
	require.NoError(t, err)
	require.Equal(t, -1, result.JobCountDelta)
}

func TestSimulate_UnknownJobRecordsErrorWithoutAborting(t *testing.T) {
	dag := chainDag(t)
	mods := []Modification{
		{Kind: ModSetDuration, JobID: "nonexistent", DurationSecs: 10},
		{Kind: ModSetDuration, JobID: "build", DurationSecs: 5},
	}
	result, err := Simulate(dag, mods)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Applied, 1)
}

func TestSimulate_OriginalDagUnaffected(t *testing.T) {
	dag := chainDag(t)
	_, err := Simulate(dag, []Modification{{Kind: ModRemoveJob, JobID: "test"}})
	require.NoError(t, err)
	require.Equal(t, 2, dag.JobCount(), "Simulate must not mutate the caller's original DAG")
}

func TestApply_ChangeRunnerAdjustsDurationBySpeedFactor(t *testing.T) {
	dag := chainDag(t)
	err := apply(dag, Modification{Kind: ModChangeRunner, JobID: "build", Runner: "large"})
	require.NoError(t, err)
	job, _ := dag.GetJob("build")
	require.Equal(t, "large", job.RunsOn)
	require.InDelta(t, float64(120)*0.75, job.EstimatedDurationSecs, 0.001)
}

func TestApply_AddCacheReducesDuration(t *testing.T) {
	dag := chainDag(t)
	err := apply(dag, Modification{Kind: ModAddCache, JobID: "build", DurationSecs: 30})
	require.NoError(t, err)
	job, _ := dag.GetJob("build")
	require.Len(t, job.Caches, 1)
	require.Equal(t, float64(90), job.EstimatedDurationSecs)
}
