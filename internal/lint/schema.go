package lint

import (
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

// CheckSchema re-parses rawContent and flags missing required top-level
// keys and per-job shape problems for the providers whose schema is
// simple enough to check structurally (GitHub Actions, GitLab CI),
// grounded on linter/schema.rs::validate_schema. A no-op, returning no
// findings, for any other provider — matching the original's scope,
// which only implements these two schemas.
func CheckSchema(rawContent []byte, provider string) []Finding {
	var root any
	if err := yaml.Unmarshal(rawContent, &root); err != nil {
		return []Finding{{
			Severity: SeverityCritical,
			RuleID:   "schema/unparseable",
			Message:  "Document could not be parsed as YAML",
		}}
	}

	switch provider {
	case "github_actions":
		return checkGithubSchema(root)
	case "gitlab":
		return checkGitlabSchema(root)
	default:
		return nil
	}
}

func checkGithubSchema(root any) []Finding {
	var findings []Finding
	if _, ok := yamlutil.Get(root, "on"); !ok {
		findings = append(findings, Finding{
			Severity: SeverityCritical,
			RuleID:   "schema/missing-on",
			Message:  "Workflow has no `on:` trigger block",
		})
	}
	jobs, ok := yamlutil.GetMap(root, "jobs")
	if !ok {
		findings = append(findings, Finding{
			Severity: SeverityCritical,
			RuleID:   "schema/missing-jobs",
			Message:  "Workflow has no `jobs:` block",
		})
		return findings
	}
	ids := make([]string, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_, hasRunsOn := yamlutil.GetStr(jobs[id], "runs-on")
		_, hasUses := yamlutil.GetStr(jobs[id], "uses")
		if !hasRunsOn && !hasUses {
			findings = append(findings, Finding{
				Severity: SeverityHigh,
				RuleID:   "schema/job-missing-runner",
				Message:  "Job has neither `runs-on:` nor `uses:` (reusable workflow call)",
				Location: id,
			})
		}
	}
	return findings
}

func checkGitlabSchema(root any) []Finding {
	var findings []Finding
	declaredStages := map[string]bool{}
	for _, s := range yamlutil.GetStrSlice(root, "stages") {
		declaredStages[s] = true
	}
	rootMap, ok := yamlutil.Map(root)
	if !ok {
		return findings
	}
	keys := make([]string, 0, len(rootMap))
	for k := range rootMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isGitlabReservedKey(k) {
			continue
		}
		stage, ok := yamlutil.GetStr(rootMap[k], "stage")
		if !ok || stage == "" {
			continue
		}
		if len(declaredStages) > 0 && !declaredStages[stage] {
			findings = append(findings, Finding{
				Severity: SeverityMedium,
				RuleID:   "schema/undeclared-stage",
				Message:  "Job references a stage not declared in the top-level `stages:` list",
				Location: k,
			})
		}
	}
	return findings
}

func isGitlabReservedKey(k string) bool {
	switch k {
	case "stages", "variables", "include", "default", "workflow", "image", "services", "cache", "before_script", "after_script":
		return true
	}
	return len(k) > 0 && k[0] == '.'
}
