package multirepo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func TestAnalyze_SummariesCoverEveryRepo(t *testing.T) {
	a := pipedag.New("repo-a", "wf.yml", "github_actions")
	require.NoError(t, a.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: 100}))

	report := Analyze([]RepoPipeline{{Repo: "repo-a", Dag: a}})
	require.Len(t, report.Summaries, 1)
	require.Equal(t, "repo-a", report.Summaries[0].Repo)
	require.Equal(t, 1, report.Summaries[0].JobCount)
}

func TestAnalyze_DetectsOrchestrationEdgeAndFanOut(t *testing.T) {
	hub := pipedag.New("hub", "wf.yml", "github_actions")
	require.NoError(t, hub.AddJob(pipedag.JobNode{
		ID: "fanout",
		Steps: []pipedag.Step{
			{Run: "gh workflow run org/service-a/deploy.yml"},
			{Run: "gh workflow run org/service-b/deploy.yml"},
		},
	}))
	a := pipedag.New("org/service-a", "wf.yml", "github_actions")
	require.NoError(t, a.AddJob(pipedag.JobNode{ID: "build"}))
	b := pipedag.New("org/service-b", "wf.yml", "github_actions")
	require.NoError(t, b.AddJob(pipedag.JobNode{ID: "build"}))

	report := Analyze([]RepoPipeline{{Repo: "hub", Dag: hub}, {Repo: "org/service-a", Dag: a}, {Repo: "org/service-b", Dag: b}})
	require.Len(t, report.Orchestration, 2)

	var fanOut bool
	for _, f := range report.Findings {
		if f.Title == `"hub" is an orchestration hub` {
			fanOut = true
		}
	}
	require.True(t, fanOut)
}

func TestAnalyze_DuplicateCommandAcrossRepos(t *testing.T) {
	a := pipedag.New("repo-a", "wf.yml", "github_actions")
	require.NoError(t, a.AddJob(pipedag.JobNode{ID: "test", Steps: []pipedag.Step{{Run: "npm run lint"}}}))
	b := pipedag.New("repo-b", "wf.yml", "github_actions")
	require.NoError(t, b.AddJob(pipedag.JobNode{ID: "test", Steps: []pipedag.Step{{Run: "npm run lint"}}}))

	report := Analyze([]RepoPipeline{{Repo: "repo-a", Dag: a}, {Repo: "repo-b", Dag: b}})
	var found bool
	for _, f := range report.Findings {
		if f.Title == "Duplicated CI command across repositories" {
			found = true
			require.ElementsMatch(t, []string{"repo-a", "repo-b"}, f.AffectedRepos)
		}
	}
	require.True(t, found)
}

func TestAnalyze_MonorepoUnfilteredTriggerFinding(t *testing.T) {
	var pipelines []RepoPipeline
	for i := 0; i < 3; i++ {
		dag := pipedag.New("mono", "wf.yml", "github_actions")
		dag.Triggers = []pipedag.Trigger{{Event: "push"}}
		require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build"}))
		pipelines = append(pipelines, RepoPipeline{Repo: "mono", Dag: dag})
	}
	report := Analyze(pipelines)
	var found bool
	for _, f := range report.Findings {
		if f.Title == `"mono" looks like an unfiltered monorepo` {
			found = true
		}
	}
	require.True(t, found)
}

func TestAnalyze_DurationSkewFlagsOutlier(t *testing.T) {
	mk := func(repo string, secs float64) RepoPipeline {
		dag := pipedag.New(repo, "wf.yml", "github_actions")
		require.NoError(t, dag.AddJob(pipedag.JobNode{ID: "build", EstimatedDurationSecs: secs}))
		return RepoPipeline{Repo: repo, Dag: dag}
	}
	pipelines := []RepoPipeline{
		mk("repo-a", 100),
		mk("repo-b", 110),
		mk("repo-c", 90),
		mk("repo-slow", 500),
	}
	report := Analyze(pipelines)
	var found bool
	for _, f := range report.Findings {
		if f.Title == `"repo-slow"'s pipeline is far slower than its peers` {
			found = true
		}
	}
	require.True(t, found)
}

func TestAnalyze_EmptyInputProducesEmptyReport(t *testing.T) {
	report := Analyze(nil)
	require.Empty(t, report.Summaries)
	require.Empty(t, report.Findings)
	require.Empty(t, report.Orchestration)
}
