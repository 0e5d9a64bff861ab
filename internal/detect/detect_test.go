package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_RoutesByFilenameConvention(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{".github/workflows/ci.yml", "github_actions"},
		{".gitlab-ci.yml", "gitlab"},
		{"Jenkinsfile", "jenkins"},
		{"deploy.jenkinsfile", "jenkins"},
		{".circleci/config.yml", "circleci"},
		{"azure-pipelines.yml", "azure"},
		{"bitbucket-pipelines.yml", "bitbucket"},
		{".buildkite/pipeline.yml", "buildkite"},
		{".drone.yml", "drone"},
		{".woodpecker.yaml", "drone"},
		{"codepipeline.yml", "aws_codepipeline"},
	}
	for _, c := range cases {
		provider, parse, err := Provider(c.path, nil)
		require.NoError(t, err, c.path)
		assert.Equal(t, c.want, provider, c.path)
		assert.NotNil(t, parse, c.path)
	}
}

func TestProvider_RoutesKubernetesManifestsByKind(t *testing.T) {
	tekton := []byte("apiVersion: tekton.dev/v1beta1\nkind: Pipeline\nmetadata:\n  name: x\n")
	provider, _, err := Provider("pipeline.yaml", tekton)
	require.NoError(t, err)
	assert.Equal(t, "tekton", provider)

	argo := []byte("apiVersion: argoproj.io/v1alpha1\nkind: Workflow\nmetadata:\n  name: x\n")
	provider, _, err = Provider("workflow.yaml", argo)
	require.NoError(t, err)
	assert.Equal(t, "argo", provider)
}

func TestProvider_UnrecognizedFileErrors(t *testing.T) {
	_, _, err := Provider("README.md", []byte("hello"))
	require.Error(t, err)
}
