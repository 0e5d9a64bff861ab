// Package detect maps a source file path (and, for Kubernetes-style
// manifests, its declared `kind`) to the provider parser that should
// handle it, per spec.md §6's filename/kind convention table.
package detect

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/argo"
	"github.com/dagucloud/pipelinex/internal/provider/awscodepipeline"
	"github.com/dagucloud/pipelinex/internal/provider/azure"
	"github.com/dagucloud/pipelinex/internal/provider/bitbucket"
	"github.com/dagucloud/pipelinex/internal/provider/buildkite"
	"github.com/dagucloud/pipelinex/internal/provider/circleci"
	"github.com/dagucloud/pipelinex/internal/provider/drone"
	"github.com/dagucloud/pipelinex/internal/provider/github"
	"github.com/dagucloud/pipelinex/internal/provider/gitlab"
	"github.com/dagucloud/pipelinex/internal/provider/jenkins"
	"github.com/dagucloud/pipelinex/internal/provider/tekton"
)

// ParseFunc is the uniform signature every provider package exposes.
type ParseFunc func(content []byte, sourceFile string) (*pipedag.PipelineDag, error)

var kindRe = regexp.MustCompile(`(?m)^kind:\s*(\S+)`)

// Provider identifies which parser a source file was routed to.
func Provider(path string, content []byte) (string, ParseFunc, error) {
	base := filepath.Base(path)
	dir := filepath.ToSlash(filepath.Dir(path))
	lower := strings.ToLower(base)

	switch {
	case strings.Contains(dir, ".github/workflows"):
		return "github_actions", github.Parse, nil
	case base == ".gitlab-ci.yml" || base == ".gitlab-ci.yaml":
		return "gitlab", gitlab.Parse, nil
	case lower == "jenkinsfile" || strings.HasSuffix(lower, ".jenkinsfile") || strings.HasSuffix(lower, ".groovy"):
		return "jenkins", jenkins.Parse, nil
	case strings.Contains(dir, ".circleci") && (base == "config.yml" || base == "config.yaml"):
		return "circleci", circleci.Parse, nil
	case base == "azure-pipelines.yml" || base == "azure-pipelines.yaml":
		return "azure", azure.Parse, nil
	case base == "bitbucket-pipelines.yml" || base == "bitbucket-pipelines.yaml":
		return "bitbucket", bitbucket.Parse, nil
	case strings.Contains(dir, ".buildkite") && (base == "pipeline.yml" || base == "pipeline.yaml"):
		return "buildkite", buildkite.Parse, nil
	case base == ".drone.yml" || base == ".drone.yaml" || base == ".woodpecker.yml" || base == ".woodpecker.yaml":
		return "drone", drone.Parse, nil
	case strings.HasPrefix(lower, "codepipeline.") && (strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".json")):
		return "aws_codepipeline", awscodepipeline.Parse, nil
	}

	if isYAML(lower) {
		switch manifestKind(content) {
		case "Pipeline", "Task", "PipelineRun":
			return "tekton", tekton.Parse, nil
		case "Workflow", "WorkflowTemplate":
			return "argo", argo.Parse, nil
		}
	}

	return "", nil, fmt.Errorf("detect: no provider recognizes %q", path)
}

func isYAML(lower string) bool {
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// manifestKind extracts a top-level Kubernetes `kind:` field from the
// first document without a full YAML parse, since the value alone decides
// which of two structurally similar parsers (tekton vs. argo) applies.
func manifestKind(content []byte) string {
	m := kindRe.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return string(m[1])
}
