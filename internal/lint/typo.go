package lint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

// githubActionsKeys and gitlabCIKeys are the known-good top-level and
// per-job key vocabularies, mirroring typo.rs's GITHUB_ACTIONS_KEYS and
// GITLAB_CI_KEYS tables.
var githubActionsKeys = []string{
	"name", "on", "env", "defaults", "concurrency", "jobs", "permissions",
	"runs-on", "needs", "if", "steps", "strategy", "matrix", "timeout-minutes",
	"continue-on-error", "outputs", "uses", "with", "run", "shell", "working-directory",
}

var gitlabCIKeys = []string{
	"stages", "variables", "include", "default", "workflow", "image", "services",
	"cache", "before_script", "after_script", "stage", "script", "rules",
	"only", "except", "needs", "artifacts", "dependencies", "extends", "tags",
}

// CheckTypos computes edit distance between each otherwise-unrecognized
// YAML key and every known key for the provider's vocabulary, flagging a
// close match (distance in [1, 2]) as a likely typo (grounded on
// linter/typo.rs::check_typos; uses plain Levenshtein distance in place
// of the original's Damerau-Levenshtein — see DESIGN.md).
func CheckTypos(rawContent []byte, provider string) []Finding {
	var known []string
	switch provider {
	case "github_actions":
		known = githubActionsKeys
	case "gitlab":
		known = gitlabCIKeys
	default:
		return nil
	}

	var root any
	if err := yaml.Unmarshal(rawContent, &root); err != nil {
		return nil
	}

	seen := map[string]bool{}
	var findings []Finding
	walkKeys(root, func(key string) {
		if seen[key] || isSkippableKey(key) {
			return
		}
		seen[key] = true
		if containsExact(known, key) {
			return
		}
		if best, dist := closestKey(known, key); dist >= 1 && dist <= 2 {
			findings = append(findings, Finding{
				Severity:   SeverityLow,
				RuleID:     "typo/unknown-key",
				Message:    fmt.Sprintf("Key %q is not a known key; did you mean %q?", key, best),
				Suggestion: fmt.Sprintf("Rename to %q.", best),
				Location:   key,
			})
		}
	})

	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Location < findings[j].Location })
	return findings
}

// walkKeys visits every mapping key reachable from v, recursing into
// nested maps and slices.
func walkKeys(v any, visit func(string)) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			visit(k)
			walkKeys(val, visit)
		}
	case map[any]any:
		for k, val := range t {
			visit(fmt.Sprintf("%v", k))
			walkKeys(val, visit)
		}
	case []any:
		for _, item := range t {
			walkKeys(item, visit)
		}
	}
}

// isSkippableKey excludes numeric-only keys and env-var-style
// all-uppercase/underscore keys, matching typo.rs's skip rules.
func isSkippableKey(key string) bool {
	if key == "" {
		return true
	}
	allUpper := true
	for _, r := range key {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '_' || r == '-' {
			continue
		}
		if r < 'A' || r > 'Z' {
			allUpper = false
		}
	}
	if allUpper && strings.ContainsAny(key, "_") {
		return true
	}
	return isAllDigits(key)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func containsExact(known []string, key string) bool {
	for _, k := range known {
		if k == key {
			return true
		}
	}
	return false
}

func closestKey(known []string, key string) (string, int) {
	best := ""
	bestDist := -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(key, k)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best, bestDist
}
