package github

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const basicWorkflow = `
name: CI
on:
  push:
    branches: [main]
  pull_request:
concurrency:
  group: ci-${{ github.ref }}
  cancel-in-progress: true
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Install deps
        run: npm ci
      - run: npm run build
  test:
    needs: build
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm test
`

func TestParse_BasicWorkflowStructure(t *testing.T) {
	dag, err := Parse([]byte(basicWorkflow), "ci.yml")
	require.NoError(t, err)
	require.Equal(t, "CI", dag.Name)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, 2, dag.JobCount())
	require.True(t, dag.HasConcurrencyControl)

	build, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Equal(t, "ubuntu-latest", build.RunsOn)
	require.Len(t, build.Steps, 3)

	test, ok := dag.GetJob("test")
	require.True(t, ok)
	require.Contains(t, test.Needs, "build")
}

func TestParse_TriggersFromMapForm(t *testing.T) {
	dag, err := Parse([]byte(basicWorkflow), "ci.yml")
	require.NoError(t, err)
	require.Len(t, dag.Triggers, 2)

	var push *pipedag.Trigger
	for i := range dag.Triggers {
		if dag.Triggers[i].Event == "push" {
			push = &dag.Triggers[i]
		}
	}
	require.NotNil(t, push)
	require.Equal(t, []string{"main"}, push.Branches)
}

func TestParse_TriggersFromShorthandListForm(t *testing.T) {
	const wf = `
on: [push, pull_request]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`
	dag, err := Parse([]byte(wf), "ci.yml")
	require.NoError(t, err)
	require.Len(t, dag.Triggers, 2)
	require.Equal(t, "push", dag.Triggers[0].Event)
	require.Equal(t, "pull_request", dag.Triggers[1].Event)
}

func TestParse_MissingJobsIsParseError(t *testing.T) {
	_, err := Parse([]byte("name: CI\non: push\n"), "ci.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.MissingRequired, perr.Kind)
	require.Equal(t, "jobs", perr.Path)
}

func TestParse_UnresolvedNeedsIsParseError(t *testing.T) {
	const wf = `
on: push
jobs:
  test:
    needs: build
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`
	_, err := Parse([]byte(wf), "ci.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnresolvedDependency, perr.Kind)
}

func TestParse_MalformedYAMLIsUnstructuredDocument(t *testing.T) {
	_, err := Parse([]byte("not: valid: yaml: [["), "ci.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnstructuredDocument, perr.Kind)
}

func TestParse_MatrixStrategyParsed(t *testing.T) {
	const wf = `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [ubuntu-latest, macos-latest]
        go: ["1.22", "1.23"]
    steps:
      - run: go build ./...
`
	dag, err := Parse([]byte(wf), "ci.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build")
	require.True(t, ok)
	require.NotNil(t, job.Matrix)
	require.Equal(t, 4, job.Matrix.TotalCombinations)
}

func TestParse_CheckoutFetchDepthAndCacheHintDetected(t *testing.T) {
	const wf = `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0
      - uses: actions/cache@v4
      - run: docker build -t app --cache-from app:latest .
`
	dag, err := Parse([]byte(wf), "ci.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build")
	require.True(t, ok)
	require.True(t, job.Steps[0].FetchDepthSet)
	require.True(t, job.Steps[0].IsCheckout())
	require.True(t, job.Steps[1].HasCacheHint)
	require.Len(t, job.Caches, 1)
	require.True(t, job.Steps[2].IsDockerBuild())
	require.True(t, job.Steps[2].HasDockerCacheFrom)
}

func TestParse_EmptyStepsFallsBackToDurationFloor(t *testing.T) {
	const wf = `
on: push
jobs:
  noop:
    runs-on: ubuntu-latest
    steps: []
`
	dag, err := Parse([]byte(wf), "ci.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("noop")
	require.True(t, ok)
	require.Equal(t, pipedag.DurationFloorSecs, job.EstimatedDurationSecs)
}

func TestParse_NoConcurrencyBlockDefaultsFalse(t *testing.T) {
	const wf = `
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`
	dag, err := Parse([]byte(wf), "ci.yml")
	require.NoError(t, err)
	require.False(t, dag.HasConcurrencyControl)
}
