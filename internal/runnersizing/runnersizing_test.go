package runnersizing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func TestProfile_CpuHeavyJobRecommendsLargerRunner(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:     "build",
		RunsOn: "ubuntu-latest",
		Steps: []pipedag.Step{
			{Run: "cargo build --release"},
			{Run: "make"},
			{Run: "webpack --mode production"},
		},
	}))

	report := Profile(dag)
	require.Len(t, report.Jobs, 1)
	rec := report.Jobs[0]
	require.Equal(t, SizeSmall, rec.CurrentClass)
	require.Greater(t, rec.CPUPressure, 0)
	require.True(t, rec.ShouldResize())
}

func TestProfile_IdleJobStaysSmall(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:     "notify",
		RunsOn: "ubuntu-latest",
		Steps:  []pipedag.Step{{Run: "echo done"}},
	}))
	report := Profile(dag)
	require.Equal(t, SizeSmall, report.Jobs[0].RecommendedClass)
	require.False(t, report.Jobs[0].ShouldResize())
}

func TestProfile_MatrixExpansionRaisesCpuPressure(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	job := pipedag.JobNode{
		ID:     "test",
		RunsOn: "ubuntu-latest",
		Matrix: &pipedag.MatrixStrategy{TotalCombinations: 20},
	}
	require.NoError(t, dag.AddJob(job))
	report := Profile(dag)
	require.Greater(t, report.Jobs[0].CPUPressure, 0)
}

func TestProfile_LongRunningJobRaisesCpuPressure(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 1800}))
	report := Profile(dag)
	require.GreaterOrEqual(t, report.Jobs[0].CPUPressure, 2)
}

func TestClassifyCurrent_RunnerLabels(t *testing.T) {
	require.Equal(t, SizeSmall, classifyCurrent("ubuntu-latest"))
	require.Equal(t, SizeMedium, classifyCurrent("custom-medium"))
	require.Equal(t, SizeLarge, classifyCurrent("ubuntu-latest-large"))
	require.Equal(t, SizeXLarge, classifyCurrent("self-hosted-4xlarge"))
}

func TestRecommendClass_Thresholds(t *testing.T) {
	require.Equal(t, SizeSmall, recommendClass(0, 0, 1))
	require.Equal(t, SizeMedium, recommendClass(2, 0, 0))
	require.Equal(t, SizeLarge, recommendClass(0, 5, 0))
	require.Equal(t, SizeXLarge, recommendClass(0, 0, 8))
}

func TestClamp10_BoundsValues(t *testing.T) {
	require.Equal(t, 10, clamp10(50))
	require.Equal(t, 0, clamp10(-5))
	require.Equal(t, 7, clamp10(7))
}
