// Package sbom generates a CycloneDX bill of materials describing the
// third-party actions, container images, and runner operating systems a
// set of pipelines depends on (SPEC_FULL.md §4.13, grounded on sbom.rs).
package sbom

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

var dockerImageRe = regexp.MustCompile(`(?:docker\s+(?:run|pull|build[^\n]*--cache-from[=\s])|FROM)\s+([a-zA-Z0-9_./\-]+(?::[a-zA-Z0-9_.\-]+)?)`)

// Generate builds a CycloneDX BOM from one or more parsed DAGs,
// deduplicating components across them (grounded on
// sbom.rs::generate_sbom).
func Generate(dags ...*pipedag.PipelineDag) *cyclonedx.BOM {
	actions := map[string]bool{}
	images := map[string]bool{}
	runners := map[string]bool{}

	for _, dag := range dags {
		for _, job := range dag.Jobs() {
			if job.RunsOn != "" {
				runners[job.RunsOn] = true
			}
			for _, s := range job.Steps {
				if s.Uses != "" {
					actions[s.Uses] = true
				}
				for _, m := range dockerImageRe.FindAllStringSubmatch(s.Run, -1) {
					images[m[1]] = true
				}
				if strings.HasPrefix(s.Uses, "docker://") {
					images[strings.TrimPrefix(s.Uses, "docker://")] = true
				}
			}
		}
	}

	var components []cyclonedx.Component
	for _, ref := range sortedKeys(actions) {
		components = append(components, cyclonedx.Component{
			Type:    cyclonedx.ComponentTypeApplication,
			Name:    actionName(ref),
			Version: actionVersion(ref),
			PackageURL: fmt.Sprintf("pkg:github/%s", ref),
		})
	}
	for _, img := range sortedKeys(images) {
		name, version := splitImage(img)
		components = append(components, cyclonedx.Component{
			Type:       cyclonedx.ComponentTypeContainer,
			Name:       name,
			Version:    version,
			PackageURL: fmt.Sprintf("pkg:docker/%s", img),
		})
	}
	for _, runner := range sortedKeys(runners) {
		components = append(components, cyclonedx.Component{
			Type: cyclonedx.ComponentTypeOS,
			Name: runner,
		})
	}

	bom := cyclonedx.NewBOM()
	bom.Components = &components
	return bom
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func actionName(ref string) string {
	if i := strings.Index(ref, "@"); i >= 0 {
		return ref[:i]
	}
	return ref
}

func actionVersion(ref string) string {
	if i := strings.Index(ref, "@"); i >= 0 {
		return ref[i+1:]
	}
	return ""
}

func splitImage(img string) (name, version string) {
	if i := strings.LastIndex(img, ":"); i >= 0 && !strings.Contains(img[i:], "/") {
		return img[:i], img[i+1:]
	}
	return img, "latest"
}
