package argo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const dagWorkflow = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: ci-dag
spec:
  entrypoint: main
  templates:
    - name: main
      dag:
        tasks:
          - name: build
            template: build-tmpl
          - name: test
            template: test-tmpl
            dependencies:
              - build
    - name: build-tmpl
      container:
        image: golang:1.23
        command: ["go"]
        args: ["build", "./..."]
    - name: test-tmpl
      container:
        image: golang:1.23
        command: ["go"]
        args: ["test", "./..."]
`

func TestParse_DagTaskDependenciesWireEdges(t *testing.T) {
	dag, err := Parse([]byte(dagWorkflow), "workflow.yaml")
	require.NoError(t, err)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, "ci-dag", dag.Name)
	require.Equal(t, 2, dag.JobCount())

	test, ok := dag.GetJob("test")
	require.True(t, ok)
	require.Equal(t, []string{"build"}, test.Needs)

	build, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Equal(t, "golang:1.23", build.Steps[0].Uses)
	require.Equal(t, "go build ./...", build.Steps[0].Run)
}

func TestParse_DagTaskWhenConditionCaptured(t *testing.T) {
	const wf = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: conditional
spec:
  entrypoint: main
  templates:
    - name: main
      dag:
        tasks:
          - name: deploy
            template: deploy-tmpl
            when: "{{workflow.parameters.env}} == prod"
    - name: deploy-tmpl
      container:
        image: bitnami/kubectl
        command: ["kubectl"]
        args: ["apply", "-f", "."]
`
	dag, err := Parse([]byte(wf), "workflow.yaml")
	require.NoError(t, err)
	deploy, ok := dag.GetJob("deploy")
	require.True(t, ok)
	require.Equal(t, "{{workflow.parameters.env}} == prod", deploy.Condition)
}

func TestParse_DagTaskArgumentsBecomeEnv(t *testing.T) {
	const wf = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: parameterized
spec:
  entrypoint: main
  templates:
    - name: main
      dag:
        tasks:
          - name: build
            template: build-tmpl
            arguments:
              parameters:
                - name: target
                  value: linux
    - name: build-tmpl
      container:
        image: golang:1.23
        command: ["go"]
        args: ["build"]
`
	dag, err := Parse([]byte(wf), "workflow.yaml")
	require.NoError(t, err)
	build, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Equal(t, "linux", build.Env["target"])
}

func TestParse_StepsBarrierGroupsDependOnPriorGroup(t *testing.T) {
	const wf = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: steps-pipeline
spec:
  entrypoint: main
  templates:
    - name: main
      steps:
        - - name: build
            template: build-tmpl
        - - name: unit
            template: test-tmpl
          - name: integration
            template: test-tmpl
    - name: build-tmpl
      container:
        image: golang:1.23
        command: ["go"]
        args: ["build"]
    - name: test-tmpl
      container:
        image: golang:1.23
        command: ["go"]
        args: ["test"]
`
	dag, err := Parse([]byte(wf), "workflow.yaml")
	require.NoError(t, err)
	require.Equal(t, 3, dag.JobCount())

	unit, ok := dag.GetJob("step-1-unit")
	require.True(t, ok)
	require.Equal(t, []string{"step-0-build"}, unit.Needs)
	require.Equal(t, "unit", unit.DisplayName)

	integration, ok := dag.GetJob("step-1-integration")
	require.True(t, ok)
	require.Equal(t, []string{"step-0-build"}, integration.Needs)

	// Siblings within the same step group don't depend on each other.
	require.NotContains(t, integration.Needs, "step-1-unit")
}

func TestParse_ScriptTemplateSourceUsedAsRunCommand(t *testing.T) {
	const wf = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: scripted
spec:
  entrypoint: main
  templates:
    - name: main
      dag:
        tasks:
          - name: lint
            template: lint-tmpl
    - name: lint-tmpl
      script:
        image: golangci/golangci-lint
        source: golangci-lint run
`
	dag, err := Parse([]byte(wf), "workflow.yaml")
	require.NoError(t, err)
	lint, ok := dag.GetJob("lint")
	require.True(t, ok)
	require.Equal(t, "golangci-lint run", lint.Steps[0].Run)
	require.Equal(t, "golangci/golangci-lint", lint.Steps[0].Uses)
}

func TestParse_MultiDocumentPrefersWorkflowOverWorkflowTemplate(t *testing.T) {
	const multi = `
apiVersion: argoproj.io/v1alpha1
kind: WorkflowTemplate
metadata:
  name: reusable-template
spec:
  entrypoint: main
  templates:
    - name: main
      container:
        image: alpine
---
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: actual-run
spec:
  entrypoint: main
  templates:
    - name: main
      container:
        image: golang:1.23
`
	dag, err := Parse([]byte(multi), "workflow.yaml")
	require.NoError(t, err)
	require.Equal(t, "actual-run", dag.Name)
}

func TestParse_NoEntrypointProcessesAllTemplatesInOrder(t *testing.T) {
	const wf = `
apiVersion: argoproj.io/v1alpha1
kind: Workflow
metadata:
  name: no-entrypoint
spec:
  templates:
    - name: build
      container:
        image: golang:1.23
        command: ["go"]
        args: ["build"]
`
	dag, err := Parse([]byte(wf), "workflow.yaml")
	require.NoError(t, err)
	require.Equal(t, 1, dag.JobCount())
	_, ok := dag.GetJob("build")
	require.True(t, ok)
}

func TestParse_NonArgoDocumentIsParseError(t *testing.T) {
	_, err := Parse([]byte("apiVersion: v1\nkind: ConfigMap\n"), "workflow.yaml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.MissingRequired, perr.Kind)
}

func TestParse_MalformedYAMLIsUnstructuredDocument(t *testing.T) {
	_, err := Parse([]byte("not: valid: yaml: [["), "workflow.yaml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnstructuredDocument, perr.Kind)
}
