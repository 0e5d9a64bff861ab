package rewrite

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
)

type cacheShape struct {
	path       string
	keyPattern string
	restoreKey string
}

var cacheShapes = map[duration.Ecosystem]cacheShape{
	duration.EcosystemNode:        {"node_modules", "node-${{ hashFiles('**/package-lock.json') }}", "node-"},
	duration.EcosystemPip:         {"~/.cache/pip", "pip-${{ hashFiles('**/requirements.txt') }}", "pip-"},
	duration.EcosystemCargo:       {"~/.cargo/registry", "cargo-${{ hashFiles('**/Cargo.lock') }}", "cargo-"},
	duration.EcosystemGradleMaven: {"~/.gradle/caches", "build-${{ hashFiles('**/*.gradle*', '**/pom.xml') }}", "build-"},
}

// injectCaches synthesizes a cache step for each cache-gap finding's job,
// inserted immediately after the checkout step (index 0 if there is none).
func injectCaches(jobs *yaml.Node, findings []analyzer.Finding) int {
	applied := 0
	for _, f := range findings {
		if f.Category != analyzer.CategoryCacheGap || !f.AutoFixable || len(f.AffectedJobs) == 0 {
			continue
		}
		job, ok := mapGet(jobs, f.AffectedJobs[0])
		if !ok {
			continue
		}
		steps, ok := mapGet(job, "steps")
		if !ok || steps.Kind != yaml.SequenceNode {
			continue
		}
		if stepsHaveCacheAction(steps) {
			continue
		}

		shape, ok := cacheShapes[jobEcosystem(steps)]
		if !ok {
			continue
		}

		cacheStep := newMap(
			scalarKey("name"), strScalar("Cache dependencies"),
			scalarKey("uses"), strScalar("actions/cache@v4"),
			scalarKey("with"), newMap(
				scalarKey("path"), strScalar(shape.path),
				scalarKey("key"), strScalar(shape.keyPattern),
				scalarKey("restore-keys"), strSeq(shape.restoreKey),
			),
		)

		at := checkoutIndex(steps)
		steps.Content = append(steps.Content[:at:at], append([]*yaml.Node{cacheStep}, steps.Content[at:]...)...)
		applied++
	}
	return applied
}

func stepsHaveCacheAction(steps *yaml.Node) bool {
	for _, s := range steps.Content {
		if uses, ok := mapGet(s, "uses"); ok && strings.Contains(strings.ToLower(uses.Value), "actions/cache") {
			return true
		}
	}
	return false
}

func jobEcosystem(steps *yaml.Node) duration.Ecosystem {
	for _, s := range steps.Content {
		run, ok := mapGet(s, "run")
		if !ok || run.Value == "" {
			continue
		}
		if duration.IsDependencyInstaller(run.Value) {
			return duration.ClassifyEcosystem(run.Value)
		}
	}
	return duration.EcosystemUnknown
}

func checkoutIndex(steps *yaml.Node) int {
	for i, s := range steps.Content {
		if uses, ok := mapGet(s, "uses"); ok && strings.Contains(strings.ToLower(uses.Value), "actions/checkout") {
			return i + 1
		}
	}
	return 0
}
