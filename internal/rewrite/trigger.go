package rewrite

import (
	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
)

var defaultPathIgnore = []string{"docs/**", "*.md", ".gitignore", "LICENSE"}

// injectPathFilter adds a default paths-ignore list to the push and
// pull_request triggers when a missing-path-filter finding is present and
// the trigger carries neither a paths nor a paths-ignore list (spec.md
// §4.5).
func injectPathFilter(root *yaml.Node, findings []analyzer.Finding) int {
	if !hasFinding(findings, analyzer.CategoryMissingPathFilter) {
		return 0
	}
	on, ok := mapGet(root, "on")
	if !ok || on.Kind != yaml.MappingNode {
		return 0
	}

	applied := 0
	for _, eventName := range []string{"push", "pull_request"} {
		event, ok := mapGet(on, eventName)
		if !ok {
			continue
		}
		if event.Kind != yaml.MappingNode {
			event = newMap()
			mapSet(on, eventName, event)
		}
		if _, has := mapGet(event, "paths"); has {
			continue
		}
		if _, has := mapGet(event, "paths-ignore"); has {
			continue
		}
		mapSet(event, "paths-ignore", strSeq(defaultPathIgnore...))
		applied++
	}
	return applied
}

// injectConcurrency adds a top-level cancel-in-progress concurrency group
// keyed on workflow and ref when a concurrency-control finding is present
// (spec.md §4.5). This mirrors the analyzer pass that produces the
// finding: GitHub-Actions-only, since concurrency groups are a GitHub
// Actions construct.
func injectConcurrency(root *yaml.Node, findings []analyzer.Finding) int {
	if !hasFinding(findings, analyzer.CategoryConcurrencyControl) {
		return 0
	}
	if _, has := mapGet(root, "concurrency"); has {
		return 0
	}
	mapSet(root, "concurrency", newMap(
		scalarKey("group"), strScalar("${{ github.workflow }}-${{ github.ref }}"),
		scalarKey("cancel-in-progress"), boolScalar(true),
	))
	return 1
}
