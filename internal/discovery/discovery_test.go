package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscover_FindsGithubActionsWorkflow(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".github/workflows/ci.yml"), "name: CI\n")
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "my-service"}`)

	found, err := Discover(root, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "my-service", found[0].PackageName)
}

func TestDiscover_SkipsNodeModulesAndVendor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules/.gitlab-ci.yml"), "stages: []\n")
	writeFile(t, filepath.Join(root, "vendor/.gitlab-ci.yml"), "stages: []\n")
	writeFile(t, filepath.Join(root, ".gitlab-ci.yml"), "stages: []\n")

	found, err := Discover(root, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, filepath.Join(root, ".gitlab-ci.yml"), found[0].Path)
}

func TestDiscover_DoesNotSkipAllowedDotDirsAtRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".circleci/config.yml"), "version: 2.1\n")
	writeFile(t, filepath.Join(root, ".buildkite/pipeline.yml"), "steps: []\n")

	found, err := Discover(root, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestDiscover_MaxDepthLimitsTraversal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a/b/c/.gitlab-ci.yml"), "stages: []\n")

	found, err := Discover(root, 2)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestDiscover_MultipleJenkinsfilesAcrossPackages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "services/api/Jenkinsfile"), "pipeline {}\n")
	writeFile(t, filepath.Join(root, "services/api/go.mod"), "module example.com/api\n\ngo 1.23\n")
	writeFile(t, filepath.Join(root, "services/web/Jenkinsfile"), "pipeline {}\n")
	writeFile(t, filepath.Join(root, "services/web/package.json"), `{"name": "web-frontend"}`)

	found, err := Discover(root, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)

	agg := Aggregate(root, found)
	require.Contains(t, agg.Packages, "api")
	require.Contains(t, agg.Packages, "web-frontend")
}

func TestInferPackageName_FallsBackToDirName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "standalone")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.Equal(t, "standalone", inferPackageName(dir))
}

func TestExtractQuotedField_ParsesNameFromJSON(t *testing.T) {
	require.Equal(t, "my-pkg", extractQuotedField(`{"name": "my-pkg", "version": "1.0.0"}`, `"name"`))
	require.Equal(t, "", extractQuotedField(`{"version": "1.0.0"}`, `"name"`))
}
