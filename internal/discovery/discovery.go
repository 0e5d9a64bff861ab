// Package discovery walks a monorepo's directory tree to find every CI
// pipeline configuration it contains (SPEC_FULL.md §4.15, grounded on
// discovery.rs). Traversal is local filesystem only: no network access,
// no command execution.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// skipDirs mirrors discovery.rs's directory skip-list.
var skipDirs = map[string]bool{
	"node_modules": true, "vendor": true, "target": true, "dist": true,
	"build": true, "__pycache__": true,
}

// configGlobs are the filename conventions recognized across all eleven
// providers, matching spec.md §6's filename/kind table.
var configGlobs = []string{
	"**/.github/workflows/*.yml", "**/.github/workflows/*.yaml",
	"**/.gitlab-ci.yml", "**/.gitlab-ci.yaml",
	"**/Jenkinsfile", "**/*.jenkinsfile",
	"**/.circleci/config.yml", "**/.circleci/config.yaml",
	"**/azure-pipelines.yml", "**/azure-pipelines.yaml",
	"**/bitbucket-pipelines.yml", "**/bitbucket-pipelines.yaml",
	"**/.buildkite/pipeline.yml", "**/.buildkite/pipeline.yaml",
	"**/.drone.yml", "**/.drone.yaml", "**/.woodpecker.yml", "**/.woodpecker.yaml",
	"**/codepipeline.*.yml", "**/codepipeline.*.yaml", "**/codepipeline.*.json",
}

// DiscoveredPipeline is one located CI config file.
type DiscoveredPipeline struct {
	Path        string
	PackageName string
}

// Discover walks root up to maxDepth directories deep (0 means
// unlimited) and returns every file matching a known CI-config
// convention (grounded on discovery.rs::discover_monorepo).
func Discover(root string, maxDepth int) ([]DiscoveredPipeline, error) {
	var found []DiscoveredPipeline

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		depth := 0
		if rel != "." {
			depth = len(strings.Split(filepath.ToSlash(rel), "/"))
		}

		if d.IsDir() {
			base := d.Name()
			allowedDotDir := base == ".github" || base == ".circleci" || base == ".buildkite"
			if depth > 0 && skipDirs[base] {
				return filepath.SkipDir
			}
			if depth > 0 && strings.HasPrefix(base, ".") && !allowedDotDir {
				return filepath.SkipDir
			}
			if maxDepth > 0 && depth >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		relSlash := filepath.ToSlash(rel)
		for _, g := range configGlobs {
			if ok, _ := doublestar.Match(g, relSlash); ok {
				found = append(found, DiscoveredPipeline{
					Path:        path,
					PackageName: inferPackageName(filepath.Dir(path)),
				})
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// inferPackageName reads package.json, Cargo.toml, or go.mod in dir (or
// its nearest ancestor up to root) to name the package this pipeline
// belongs to, falling back to the directory's base name.
func inferPackageName(dir string) string {
	for {
		if name, ok := nameFromPackageJSON(filepath.Join(dir, "package.json")); ok {
			return name
		}
		if name, ok := nameFromCargoToml(filepath.Join(dir, "Cargo.toml")); ok {
			return name
		}
		if name, ok := nameFromGoMod(filepath.Join(dir, "go.mod")); ok {
			return name
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Base(dir)
}

func nameFromPackageJSON(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return extractQuotedField(string(data), `"name"`), extractQuotedField(string(data), `"name"`) != ""
}

func nameFromCargoToml(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "name") && strings.Contains(line, "=") {
			return strings.Trim(strings.TrimSpace(strings.SplitN(line, "=", 2)[1]), `"`), true
		}
	}
	return "", false
}

// nameFromGoMod is a Go-native fallback the original didn't have, since
// this module's own ecosystem is Go.
func nameFromGoMod(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			mod := strings.TrimSpace(strings.TrimPrefix(line, "module "))
			parts := strings.Split(mod, "/")
			return parts[len(parts)-1], true
		}
	}
	return "", false
}

func extractQuotedField(json, key string) string {
	idx := strings.Index(json, key)
	if idx < 0 {
		return ""
	}
	rest := json[idx+len(key):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	rest = rest[1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// MonorepoDiscovery groups discovered pipelines by inferred package.
type MonorepoDiscovery struct {
	Root      string
	Pipelines []DiscoveredPipeline
	Packages  map[string][]string // package name -> pipeline paths
}

// Aggregate groups pipelines by inferred package name (grounded on
// discovery.rs::aggregate_discovery).
func Aggregate(root string, pipelines []DiscoveredPipeline) MonorepoDiscovery {
	packages := map[string][]string{}
	for _, p := range pipelines {
		packages[p.PackageName] = append(packages[p.PackageName], p.Path)
	}
	for k := range packages {
		sort.Strings(packages[k])
	}
	return MonorepoDiscovery{Root: root, Pipelines: pipelines, Packages: packages}
}
