package azure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const twoStagePipeline = `
trigger:
  branches:
    include:
      - main
variables:
  - name: NODE_ENV
    value: production
stages:
  - stage: Build
    jobs:
      - job: Compile
        pool:
          vmImage: ubuntu-latest
        steps:
          - script: make build
  - stage: Deploy
    dependsOn: Build
    jobs:
      - job: Release
        pool:
          vmImage: ubuntu-latest
        steps:
          - script: make deploy
`

func TestParse_StageLevelDependsOnConnectsAllJobsInStage(t *testing.T) {
	dag, err := Parse([]byte(twoStagePipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, 2, dag.JobCount())

	release, ok := dag.GetJob("deploy-release")
	require.True(t, ok)
	require.Contains(t, release.Needs, "build-compile")
}

func TestParse_JobIDIsStageAndJobNameSanitized(t *testing.T) {
	dag, err := Parse([]byte(twoStagePipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	_, ok := dag.GetJob("build-compile")
	require.True(t, ok)
}

func TestParse_PoolVMImageMapsToRunsOn(t *testing.T) {
	dag, err := Parse([]byte(twoStagePipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build-compile")
	require.True(t, ok)
	require.Equal(t, "azure:ubuntu-latest", job.RunsOn)
}

func TestParse_VariablesListFormParsed(t *testing.T) {
	dag, err := Parse([]byte(twoStagePipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	require.Equal(t, "production", dag.Env["NODE_ENV"])
}

func TestParse_TriggerBranchesIncludeParsed(t *testing.T) {
	dag, err := Parse([]byte(twoStagePipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	require.Len(t, dag.Triggers, 1)
	require.Equal(t, "trigger", dag.Triggers[0].Event)
	require.Equal(t, []string{"main"}, dag.Triggers[0].Branches)
}

func TestParse_ExplicitJobDependsOnOverridesStageFallback(t *testing.T) {
	const pipeline = `
stages:
  - stage: Build
    jobs:
      - job: A
        steps:
          - script: make a
      - job: B
        steps:
          - script: make b
  - stage: Deploy
    jobs:
      - job: Release
        dependsOn: A
        steps:
          - script: make deploy
`
	dag, err := Parse([]byte(pipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	release, ok := dag.GetJob("deploy-release")
	require.True(t, ok)
	require.Contains(t, release.Needs, "build-a")
	require.NotContains(t, release.Needs, "build-b")
}

func TestParse_FlatJobsListNoStages(t *testing.T) {
	const pipeline = `
jobs:
  - job: Build
    steps:
      - script: make build
`
	dag, err := Parse([]byte(pipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	require.Equal(t, 1, dag.JobCount())
	_, ok := dag.GetJob("default-build")
	require.True(t, ok)
}

func TestParse_ScriptStepDisplayNameUsed(t *testing.T) {
	const pipeline = `
jobs:
  - job: Build
    steps:
      - script: make build
        displayName: "Run build"
`
	dag, err := Parse([]byte(pipeline), "azure-pipelines.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("default-build")
	require.True(t, ok)
	require.Equal(t, "Run build", job.Steps[0].Name)
}

func TestParse_MalformedYAMLIsUnstructuredDocument(t *testing.T) {
	_, err := Parse([]byte("not: valid: yaml: [["), "azure-pipelines.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnstructuredDocument, perr.Kind)
}
