package circleci

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const basicConfig = `
version: 2.1
jobs:
  build:
    docker:
      - image: cimg/node:20.0
    steps:
      - checkout
      - run:
          name: Install
          command: npm ci
      - run: npm run build
  test:
    machine:
      image: ubuntu-2204:current
    steps:
      - checkout
      - run: npm test
workflows:
  main:
    jobs:
      - build
      - test:
          requires:
            - build
`

func TestParse_BasicWorkflowDependencies(t *testing.T) {
	dag, err := Parse([]byte(basicConfig), "config.yml")
	require.NoError(t, err)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, 2, dag.JobCount())

	test, ok := dag.GetJob("test")
	require.True(t, ok)
	require.Contains(t, test.Needs, "build")
}

func TestParse_ExecutorNameFromDockerImage(t *testing.T) {
	dag, err := Parse([]byte(basicConfig), "config.yml")
	require.NoError(t, err)
	build, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Equal(t, "docker:cimg/node:20.0", build.RunsOn)
}

func TestParse_ExecutorNameFromMachine(t *testing.T) {
	dag, err := Parse([]byte(basicConfig), "config.yml")
	require.NoError(t, err)
	test, ok := dag.GetJob("test")
	require.True(t, ok)
	require.Equal(t, "machine:ubuntu-2204:current", test.RunsOn)
}

func TestParse_MissingJobsIsParseError(t *testing.T) {
	_, err := Parse([]byte("version: 2.1\n"), "config.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.MissingRequired, perr.Kind)
}

func TestParse_UnresolvedRequiresIsParseError(t *testing.T) {
	const cfg = `
jobs:
  test:
    steps:
      - checkout
workflows:
  main:
    jobs:
      - test:
          requires:
            - nonexistent
`
	_, err := Parse([]byte(cfg), "config.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnresolvedDependency, perr.Kind)
}

func TestParse_StringStepsParsedAsNamedCommands(t *testing.T) {
	const cfg = `
jobs:
  build:
    steps:
      - checkout
      - run: npm ci
workflows:
  main:
    jobs:
      - build
`
	dag, err := Parse([]byte(cfg), "config.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Len(t, job.Steps, 2)
	require.Equal(t, "checkout", job.Steps[0].Name)
}

func TestParse_SaveCacheDetected(t *testing.T) {
	const cfg = `
jobs:
  build:
    steps:
      - checkout
      - run: npm ci
      - save_cache:
          key: node-v1
          paths:
            - node_modules
workflows:
  main:
    jobs:
      - build
`
	dag, err := Parse([]byte(cfg), "config.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Len(t, job.Caches, 1)
	require.Equal(t, "save_cache/restore_cache", job.Caches[0].KeyPattern)
}

func TestParse_ImplicitNodeCacheInferredFromNpmCommand(t *testing.T) {
	const cfg = `
jobs:
  build:
    steps:
      - checkout
      - run: npm ci
workflows:
  main:
    jobs:
      - build
`
	dag, err := Parse([]byte(cfg), "config.yml")
	require.NoError(t, err)
	job, ok := dag.GetJob("build")
	require.True(t, ok)
	require.Len(t, job.Caches, 1)
	require.Equal(t, "node_modules", job.Caches[0].Path)
}

func TestParse_EstimateDurationVariesByJobNameKeyword(t *testing.T) {
	const cfg = `
jobs:
  build_app:
    steps:
      - checkout
  lint_code:
    steps:
      - checkout
workflows:
  main:
    jobs:
      - build_app
      - lint_code
`
	dag, err := Parse([]byte(cfg), "config.yml")
	require.NoError(t, err)
	build, _ := dag.GetJob("build_app")
	lint, _ := dag.GetJob("lint_code")
	require.Greater(t, build.EstimatedDurationSecs, lint.EstimatedDurationSecs)
}

func TestParse_MalformedYAMLIsUnstructuredDocument(t *testing.T) {
	_, err := Parse([]byte("not: valid: yaml: [["), "config.yml")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.UnstructuredDocument, perr.Kind)
}
