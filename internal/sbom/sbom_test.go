package sbom

import (
	"testing"

	"github.com/stretchr/testify/require"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

func TestGenerate_CollectsActionsImagesAndRunners(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:     "build",
		RunsOn: "ubuntu-latest",
		Steps: []pipedag.Step{
			{Uses: "actions/checkout@v4"},
			{Run: "docker pull golang:1.23"},
		},
	}))

	bom := Generate(dag)
	require.NotNil(t, bom.Components)
	components := *bom.Components

	var foundAction, foundImage, foundRunner bool
	for _, c := range components {
		switch {
		case c.Type == cyclonedx.ComponentTypeApplication && c.Name == "actions/checkout":
			foundAction = true
			require.Equal(t, "v4", c.Version)
		case c.Type == cyclonedx.ComponentTypeContainer && c.Name == "golang":
			foundImage = true
			require.Equal(t, "1.23", c.Version)
		case c.Type == cyclonedx.ComponentTypeOS && c.Name == "ubuntu-latest":
			foundRunner = true
		}
	}
	require.True(t, foundAction, "expected a checkout action component")
	require.True(t, foundImage, "expected a golang image component")
	require.True(t, foundRunner, "expected a ubuntu-latest runner component")
}

func TestGenerate_DeduplicatesAcrossMultipleDags(t *testing.T) {
	dag1 := pipedag.New("repo-a", "wf.yml", "github_actions")
	require.NoError(t, dag1.AddJob(pipedag.JobNode{
		ID:    "build",
		Steps: []pipedag.Step{{Uses: "actions/checkout@v4"}},
	}))
	dag2 := pipedag.New("repo-b", "wf.yml", "github_actions")
	require.NoError(t, dag2.AddJob(pipedag.JobNode{
		ID:    "build",
		Steps: []pipedag.Step{{Uses: "actions/checkout@v4"}},
	}))

	bom := Generate(dag1, dag2)
	count := 0
	for _, c := range *bom.Components {
		if c.Name == "actions/checkout" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestGenerate_DockerURIUsesCountAsImage(t *testing.T) {
	dag := pipedag.New("ci", "wf.yml", "github_actions")
	require.NoError(t, dag.AddJob(pipedag.JobNode{
		ID:    "build",
		Steps: []pipedag.Step{{Uses: "docker://alpine:3.19"}},
	}))
	bom := Generate(dag)
	var found bool
	for _, c := range *bom.Components {
		if c.Type == cyclonedx.ComponentTypeContainer && c.Name == "alpine" {
			found = true
			require.Equal(t, "3.19", c.Version)
		}
	}
	require.True(t, found)
}

func TestActionNameAndVersion_SplitOnAt(t *testing.T) {
	require.Equal(t, "actions/checkout", actionName("actions/checkout@v4"))
	require.Equal(t, "v4", actionVersion("actions/checkout@v4"))
	require.Equal(t, "actions/checkout", actionName("actions/checkout"))
	require.Equal(t, "", actionVersion("actions/checkout"))
}

func TestSplitImage_TagVsNoTag(t *testing.T) {
	name, version := splitImage("golang:1.23")
	require.Equal(t, "golang", name)
	require.Equal(t, "1.23", version)

	name, version = splitImage("ghcr.io/org/app")
	require.Equal(t, "ghcr.io/org/app", name)
	require.Equal(t, "latest", version)
}
