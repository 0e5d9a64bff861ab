package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/provider/github"
)

func analyzeYAML(t *testing.T, content []byte) analyzer.Report {
	t.Helper()
	dag, err := github.Parse(content, "workflow.yml")
	require.NoError(t, err)
	rpt, err := analyzer.Analyze(dag)
	require.NoError(t, err)
	return rpt
}

func parseDoc(t *testing.T, content []byte) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(content, &doc))
	return doc.Content[0]
}

// spec.md §8 scenario 3: serial lint -> test false dependency, removed by
// the rewrite engine with no "needs:" key left on the dependent job.
func TestRewrite_RemovesFalseDependency(t *testing.T) {
	src := []byte(`
name: CI
on:
  push:
    branches: [main]
jobs:
  lint:
    runs-on: ubuntu-latest
    steps:
      - run: eslint .
  test:
    runs-on: ubuntu-latest
    needs: [lint]
    steps:
      - run: npm test
`)

	rpt := analyzeYAML(t, src)
	out, res, err := Rewrite(src, rpt)
	require.NoError(t, err)
	require.Greater(t, res.AppliedCount, 0)

	root := parseDoc(t, out)
	jobs, ok := mapGet(root, "jobs")
	require.True(t, ok)
	testJob, ok := mapGet(jobs, "test")
	require.True(t, ok)
	_, hasNeeds := mapGet(testJob, "needs")
	require.False(t, hasNeeds, "rewritten test job must not carry a needs key")
}

// spec.md §8 scenario 6: rewrite idempotence. A second rewrite of the
// engine's own output must apply nothing further.
func TestRewrite_IsIdempotent(t *testing.T) {
	src := []byte(`
name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm ci
      - run: npm run build
`)

	rpt := analyzeYAML(t, src)
	first, res, err := Rewrite(src, rpt)
	require.NoError(t, err)
	require.Greater(t, res.AppliedCount, 0)

	rpt2 := analyzeYAML(t, first)
	second, res2, err := Rewrite(first, rpt2)
	require.NoError(t, err)
	require.Equal(t, 0, res2.AppliedCount)
	require.Equal(t, string(first), string(second))
}

func TestRewrite_InjectsCacheStepAfterCheckout(t *testing.T) {
	src := []byte(`
name: CI
on:
  push: {}
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: npm ci
`)
	rpt := analyzeYAML(t, src)
	out, res, err := Rewrite(src, rpt)
	require.NoError(t, err)
	require.Contains(t, res.AppliedTransforms, "cache-injection")

	root := parseDoc(t, out)
	jobs, _ := mapGet(root, "jobs")
	build, _ := mapGet(jobs, "build")
	steps, _ := mapGet(build, "steps")
	require.GreaterOrEqual(t, len(steps.Content), 3)
	uses, _ := mapGet(steps.Content[1], "uses")
	require.Contains(t, uses.Value, "actions/cache")
}

func TestRewrite_AddsShallowCloneHint(t *testing.T) {
	src := []byte(`
on:
  push: {}
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: echo build
`)
	rpt := analyzeYAML(t, src)
	out, res, err := Rewrite(src, rpt)
	require.NoError(t, err)
	require.Contains(t, res.AppliedTransforms, "shallow-clone")

	root := parseDoc(t, out)
	jobs, _ := mapGet(root, "jobs")
	build, _ := mapGet(jobs, "build")
	steps, _ := mapGet(build, "steps")
	with, ok := mapGet(steps.Content[0], "with")
	require.True(t, ok)
	fetchDepth, ok := mapGet(with, "fetch-depth")
	require.True(t, ok)
	require.Equal(t, "1", fetchDepth.Value)
}
