package tekton

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const basicPipeline = `
apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: build-and-test
spec:
  tasks:
    - name: clone
      taskRef:
        name: git-clone
    - name: build
      taskRef:
        name: build-image
      runAfter:
        - clone
    - name: test
      taskRef:
        name: run-tests
      runAfter:
        - build
  finally:
    - name: notify
      taskRef:
        name: slack-notify
`

func TestParse_RunAfterWiresTaskEdges(t *testing.T) {
	dag, err := Parse([]byte(basicPipeline), "pipeline.yaml")
	require.NoError(t, err)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, "build-and-test", dag.Name)
	require.Equal(t, 4, dag.JobCount())

	build, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Equal(t, []string{"clone"}, build.Needs)

	test, ok := dag.GetJob("test")
	require.True(t, ok)
	require.Equal(t, []string{"build"}, test.Needs)
}

func TestParse_FinallyTasksDependOnLeafTasks(t *testing.T) {
	dag, err := Parse([]byte(basicPipeline), "pipeline.yaml")
	require.NoError(t, err)
	notify, ok := dag.GetJob("notify")
	require.True(t, ok)
	require.Contains(t, notify.Needs, "test")
	require.Equal(t, "finally", notify.Condition)
}

func TestParse_MultiDocumentPicksHighestPriorityKind(t *testing.T) {
	const multi = `
apiVersion: tekton.dev/v1
kind: Task
metadata:
  name: solo-task
spec:
  steps:
    - name: run
      image: alpine
      script: echo hi
---
apiVersion: tekton.dev/v1
kind: Pipeline
metadata:
  name: real-pipeline
spec:
  tasks:
    - name: build
      taskRef:
        name: build-image
`
	dag, err := Parse([]byte(multi), "pipeline.yaml")
	require.NoError(t, err)
	require.Equal(t, "real-pipeline", dag.Name)
	require.Equal(t, 1, dag.JobCount())
}

func TestParse_StandaloneTaskParsedAsSingleJobPipeline(t *testing.T) {
	const taskDoc = `
apiVersion: tekton.dev/v1
kind: Task
metadata:
  name: lint-task
spec:
  steps:
    - name: lint
      image: golangci/golangci-lint
      script: golangci-lint run
`
	dag, err := Parse([]byte(taskDoc), "task.yaml")
	require.NoError(t, err)
	require.Equal(t, 1, dag.JobCount())
	job, ok := dag.GetJob("lint-task")
	require.True(t, ok)
	require.Len(t, job.Steps, 1)
}

func TestParse_PipelineRunUnwrapsEmbeddedPipelineSpec(t *testing.T) {
	const runDoc = `
apiVersion: tekton.dev/v1
kind: PipelineRun
metadata:
  name: nightly-run
spec:
  pipelineSpec:
    tasks:
      - name: build
        taskRef:
          name: build-image
`
	dag, err := Parse([]byte(runDoc), "run.yaml")
	require.NoError(t, err)
	require.Equal(t, 1, dag.JobCount())
	_, ok := dag.GetJob("build")
	require.True(t, ok)
}

func TestParse_NonTektonDocumentIsParseError(t *testing.T) {
	_, err := Parse([]byte("apiVersion: v1\nkind: ConfigMap\n"), "pipeline.yaml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.MissingRequired, perr.Kind)
}

func TestParse_MalformedYAMLIsUnstructuredDocument(t *testing.T) {
	_, err := Parse([]byte("not: valid: yaml: [["), "pipeline.yaml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnstructuredDocument, perr.Kind)
}
