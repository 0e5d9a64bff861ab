// Package migration converts a parsed GitHub Actions DAG into GitLab CI
// YAML (SPEC_FULL.md §4.11 area "migration", grounded on
// migration/mod.rs). Only GitHub Actions -> GitLab CI is supported,
// matching the original's single conversion direction.
package migration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// Result is the outcome of converting a DAG to GitLab CI YAML.
type Result struct {
	YAML     string
	Warnings []string
}

// GithubActionsToGitlabCI converts dag (which must have Provider ==
// "github_actions") to a GitLab CI pipeline, computing stages from
// dependency depth, inferring an image, converting matrix strategies to
// `parallel:`, and converting triggers to `rules:` (grounded on
// migration/mod.rs::github_actions_to_gitlab_ci).
func GithubActionsToGitlabCI(dag *pipedag.PipelineDag) (Result, error) {
	if dag.Provider != "github_actions" {
		return Result{}, fmt.Errorf("migration: source provider must be github_actions, got %q", dag.Provider)
	}

	levels, err := dag.ComputeLevels()
	if err != nil {
		return Result{}, fmt.Errorf("migration: compute stages: %w", err)
	}
	maxLevel := 0
	for _, l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
	}

	var b strings.Builder
	var warnings []string

	stages := make([]string, maxLevel+1)
	for i := range stages {
		stages[i] = fmt.Sprintf("stage-%d", i)
	}
	b.WriteString("stages:\n")
	for _, s := range stages {
		fmt.Fprintf(&b, "  - %s\n", s)
	}
	b.WriteString("\n")

	for _, id := range dag.JobIDs() {
		job, _ := dag.GetJob(id)
		fmt.Fprintf(&b, "%s:\n", sanitizeJobName(id))
		fmt.Fprintf(&b, "  stage: %s\n", stages[levels[id]])
		if img := inferImage(job); img != "" {
			fmt.Fprintf(&b, "  image: %s\n", img)
		}

		if job.Matrix != nil && job.Matrix.TotalCombinations > 1 {
			fmt.Fprintf(&b, "  parallel: %d\n", job.Matrix.TotalCombinations)
			warnings = append(warnings, fmt.Sprintf("job %q: GitHub matrix variables flattened to a parallel count; per-variable values must be reconstructed from CI_NODE_INDEX.", id))
		}

		if rules := convertTriggerRules(dag.Triggers); rules != "" {
			b.WriteString(rules)
		}

		b.WriteString("  script:\n")
		for _, s := range job.Steps {
			switch {
			case s.Run != "":
				for _, line := range strings.Split(strings.TrimRight(s.Run, "\n"), "\n") {
					fmt.Fprintf(&b, "    - %s\n", line)
				}
			case s.Uses != "":
				fmt.Fprintf(&b, "    - echo 'TODO: port action %s to an equivalent shell step'\n", s.Uses)
				warnings = append(warnings, fmt.Sprintf("job %q: action %q has no direct GitLab equivalent and was stubbed.", id, s.Uses))
			}
		}

		if len(job.Needs) > 0 {
			needs := append([]string(nil), job.Needs...)
			sort.Strings(needs)
			b.WriteString("  needs:\n")
			for _, n := range needs {
				fmt.Fprintf(&b, "    - %s\n", sanitizeJobName(n))
			}
		}
		b.WriteString("\n")
	}

	return Result{YAML: b.String(), Warnings: warnings}, nil
}

func sanitizeJobName(id string) string {
	return strings.ReplaceAll(id, " ", "_")
}

// inferImage guesses a container image from the job's steps, mirroring
// migration/mod.rs::infer_image's setup-action heuristics.
func inferImage(job *pipedag.JobNode) string {
	for _, s := range job.Steps {
		lower := strings.ToLower(s.Uses)
		switch {
		case strings.HasPrefix(lower, "actions/setup-node"):
			return "node:20"
		case strings.HasPrefix(lower, "actions/setup-python"):
			return "python:3.12"
		case strings.HasPrefix(lower, "actions/setup-go"):
			return "golang:1.23"
		case strings.HasPrefix(lower, "actions/setup-java"):
			return "eclipse-temurin:21"
		}
	}
	return ""
}

// convertTriggerRules converts GitHub Actions event triggers into a
// GitLab `rules:` block (grounded on migration/mod.rs::convert_triggers).
func convertTriggerRules(triggers []pipedag.Trigger) string {
	var conds []string
	for _, t := range triggers {
		switch t.Event {
		case "push":
			conds = append(conds, `$CI_PIPELINE_SOURCE == "push"`)
		case "pull_request":
			conds = append(conds, `$CI_PIPELINE_SOURCE == "merge_request_event"`)
		case "schedule":
			conds = append(conds, `$CI_PIPELINE_SOURCE == "schedule"`)
		case "workflow_dispatch":
			conds = append(conds, `$CI_PIPELINE_SOURCE == "web"`)
		}
	}
	if len(conds) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("  rules:\n")
	for _, c := range conds {
		fmt.Fprintf(&b, "    - if: '%s'\n", c)
	}
	return b.String()
}
