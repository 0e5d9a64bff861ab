// Package azure parses Azure Pipelines YAML files into the canonical
// pipeline DAG (spec.md §4.1, grounded on parser/azure.rs).
package azure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "azure_pipelines"

// Parse parses Azure Pipelines YAML bytes into a DAG.
//
// Azure is stage-ordered with explicit override: stages contain jobs, jobs
// (and stages) carry dependsOn. A job/stage with an explicit dependsOn
// resolves only against that list; one without any falls back to the
// previous stage's jobs (spec.md §4.1 "stage-ordered with
// override-by-explicit-needs").
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	name := "Azure Pipeline"
	if n, ok := yamlutil.GetStr(root, "name"); ok {
		name = n
	}

	dag := pipedag.New(name, sourceFile, ProviderName)
	dag.Triggers = parseTriggers(root)
	dag.Env = parseVariables(root)

	stageJobs := map[string][]string{}  // stage name -> job ids in the stage
	stageDeps := map[string][]string{}  // stage name -> raw dependsOn
	aliases := map[string]string{}      // job/stage name -> job id
	rawNeeds := map[string][]string{}   // job id -> raw dependsOn
	used := map[string]bool{}
	synthetic := 0

	if extends, ok := yamlutil.GetMap(root, "extends"); ok {
		if tmpl, ok := yamlutil.GetStr(extends, "template"); ok {
			id := "pipeline-template"
			job := templateJob(id, "Pipeline Template", tmpl)
			if err := dag.AddJob(job); err != nil {
				return nil, err
			}
			aliases["pipeline-template"] = id
		}
	}

	if stages, ok := yamlutil.GetSlice(root, "stages"); ok {
		for idx, stage := range stages {
			pStageName, pDeps, pJobIDs, err := parseStage(dag, stage, idx, &synthetic, aliases, rawNeeds, used)
			if err != nil {
				return nil, err
			}
			stageDeps[pStageName] = pDeps
			stageJobs[pStageName] = pJobIDs
		}
	} else if jobs, ok := yamlutil.GetSlice(root, "jobs"); ok {
		const stageName = "default"
		var ids []string
		for idx, jobVal := range jobs {
			id, deps, err := parseJob(dag, stageName, jobVal, idx, &synthetic, aliases, used)
			if err != nil {
				return nil, err
			}
			rawNeeds[id] = deps
			ids = append(ids, id)
		}
		stageJobs[stageName] = ids
	} else if tmpl, ok := yamlutil.GetStr(root, "template"); ok {
		id := "top-level-template"
		job := templateJob(id, "Top-level Template", tmpl)
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
	}

	edgeDedup := map[[2]string]bool{}

	jobIDs := make([]string, 0, len(rawNeeds))
	for id := range rawNeeds {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	for _, id := range jobIDs {
		for _, raw := range rawNeeds[id] {
			for _, target := range resolveDependency(raw, aliases, stageJobs) {
				if target == id {
					continue
				}
				key := [2]string{target, id}
				if !edgeDedup[key] {
					edgeDedup[key] = true
					if err := dag.AddDependency(target, id); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	stageNames := make([]string, 0, len(stageDeps))
	for n := range stageDeps {
		stageNames = append(stageNames, n)
	}
	sort.Strings(stageNames)

	for _, stageName := range stageNames {
		currentJobs := stageJobs[stageName]
		for _, depStage := range stageDeps[stageName] {
			depJobs, ok := stageJobs[depStage]
			if !ok {
				continue
			}
			for _, depJob := range depJobs {
				for _, curJob := range currentJobs {
					if depJob == curJob {
						continue
					}
					key := [2]string{depJob, curJob}
					if !edgeDedup[key] {
						edgeDedup[key] = true
						if err := dag.AddDependency(depJob, curJob); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}

	return dag, nil
}

func templateJob(id, displayName, template string) pipedag.JobNode {
	return pipedag.JobNode{
		ID:          id,
		DisplayName: displayName,
		RunsOn:      "azure:template",
		Steps: []pipedag.Step{{
			Name: "template", Uses: template, EstimatedDurationSecs: 5,
		}},
		EstimatedDurationSecs: 5,
	}
}

func parseStage(
	dag *pipedag.PipelineDag, stageVal any, stageIdx int, synthetic *int,
	aliases map[string]string, rawNeeds map[string][]string, used map[string]bool,
) (string, []string, []string, error) {
	if tmpl, ok := yamlutil.GetStr(stageVal, "template"); ok {
		stageName := fmt.Sprintf("template-stage-%d", stageIdx+1)
		jobID := pipedag.Sanitize(stageName) + "-template"
		job := templateJob(jobID, fmt.Sprintf("Stage Template %d", stageIdx+1), tmpl)
		if err := dag.AddJob(job); err != nil {
			return "", nil, nil, err
		}
		aliases[stageName] = jobID
		return stageName, nil, []string{jobID}, nil
	}

	stageName, ok := yamlutil.GetStr(stageVal, "stage")
	if !ok {
		stageName, ok = yamlutil.GetStr(stageVal, "name")
	}
	if !ok || stageName == "" {
		stageName = "stage"
	}
	stageDeps := yamlutil.GetStrSlice(stageVal, "dependsOn")

	var jobIDs []string
	if jobs, ok := yamlutil.GetSlice(stageVal, "jobs"); ok {
		for idx, jobVal := range jobs {
			id, deps, err := parseJob(dag, stageName, jobVal, idx, synthetic, aliases, used)
			if err != nil {
				return "", nil, nil, err
			}
			rawNeeds[id] = deps
			jobIDs = append(jobIDs, id)
		}
	}

	if len(jobIDs) == 0 {
		*synthetic++
		id := fmt.Sprintf("%s-stage-node-%d", pipedag.Sanitize(stageName), *synthetic)
		job := pipedag.JobNode{
			ID:          id,
			DisplayName: fmt.Sprintf("Stage %s", stageName),
			RunsOn:      "azure:stage",
			Steps: []pipedag.Step{{
				Name: "stage", Run: "stage: " + stageName, EstimatedDurationSecs: 30,
			}},
			EstimatedDurationSecs: 30,
		}
		if err := dag.AddJob(job); err != nil {
			return "", nil, nil, err
		}
		jobIDs = append(jobIDs, id)
		aliases[stageName] = id
	} else {
		aliases[stageName] = jobIDs[0]
	}

	return stageName, stageDeps, jobIDs, nil
}

func parseJob(
	dag *pipedag.PipelineDag, stageName string, jobVal any, jobIdx int, synthetic *int,
	aliases map[string]string, used map[string]bool,
) (string, []string, error) {
	if tmpl, ok := yamlutil.GetStr(jobVal, "template"); ok {
		*synthetic++
		id := fmt.Sprintf("%s-template-%d", pipedag.Sanitize(stageName), *synthetic)
		job := templateJob(id, fmt.Sprintf("Template %s", tmpl), tmpl)
		if err := dag.AddJob(job); err != nil {
			return "", nil, err
		}
		aliases[fmt.Sprintf("%s.template%d", stageName, jobIdx+1)] = id
		return id, nil, nil
	}

	rawName, ok := yamlutil.GetStr(jobVal, "job")
	if !ok {
		rawName, ok = yamlutil.GetStr(jobVal, "deployment")
	}
	if !ok {
		rawName, ok = yamlutil.GetStr(jobVal, "name")
	}
	if !ok {
		rawName, ok = yamlutil.GetStr(jobVal, "displayName")
	}
	if !ok || rawName == "" {
		rawName = fmt.Sprintf("job-%d", jobIdx+1)
	}

	id := fmt.Sprintf("%s-%s", pipedag.Sanitize(stageName), pipedag.Sanitize(rawName))
	used[id] = true

	runsOn := "azure:vm"
	if pool, ok := yamlutil.Get(jobVal, "pool"); ok {
		if p := parsePoolName(pool); p != "" {
			runsOn = p
		}
	}
	condition, _ := yamlutil.GetStr(jobVal, "condition")

	steps := extractSteps(jobVal)
	total := 0.0
	for _, s := range steps {
		total += s.EstimatedDurationSecs
	}
	if total < 10 {
		total = 10
	}

	job := pipedag.JobNode{
		ID:                    id,
		DisplayName:           rawName,
		RunsOn:                runsOn,
		Steps:                 steps,
		Caches:                detectCaches(steps),
		Condition:             condition,
		EstimatedDurationSecs: total,
	}
	if err := dag.AddJob(job); err != nil {
		return "", nil, err
	}

	aliases[rawName] = id
	aliases[stageName+"."+rawName] = id

	return id, yamlutil.GetStrSlice(jobVal, "dependsOn"), nil
}

func resolveDependency(raw string, aliases map[string]string, stageJobs map[string][]string) []string {
	if id, ok := aliases[raw]; ok {
		return []string{id}
	}
	if jobs, ok := stageJobs[raw]; ok {
		return append([]string(nil), jobs...)
	}
	return nil
}

func parsePoolName(pool any) string {
	if s, ok := yamlutil.Str(pool); ok {
		return "azure:" + s
	}
	if vm, ok := yamlutil.GetStr(pool, "vmImage"); ok {
		return "azure:" + vm
	}
	if n, ok := yamlutil.GetStr(pool, "name"); ok {
		return "azure:" + n
	}
	return ""
}

func extractSteps(jobVal any) []pipedag.Step {
	stepsRaw, ok := yamlutil.GetSlice(jobVal, "steps")
	if !ok {
		if strategy, sok := yamlutil.GetMap(jobVal, "strategy"); sok {
			if runOnce, rok := yamlutil.GetMap(strategy, "runOnce"); rok {
				if deploy, dok := yamlutil.GetMap(runOnce, "deploy"); dok {
					stepsRaw, ok = yamlutil.GetSlice(deploy, "steps")
				}
			}
		}
	}
	if !ok || len(stepsRaw) == 0 {
		return []pipedag.Step{{Name: "job", Run: "azure job", EstimatedDurationSecs: 60}}
	}

	var out []pipedag.Step
	for _, raw := range stepsRaw {
		if cmd, ok := yamlutil.Str(raw); ok {
			out = append(out, pipedag.Step{Name: "script", Run: cmd, EstimatedDurationSecs: duration.EstimateCommand(cmd)})
			continue
		}
		switch {
		case has(raw, "script"):
			script, _ := yamlutil.GetStr(raw, "script")
			name, _ := yamlutil.GetStr(raw, "displayName")
			if name == "" {
				name = "script"
			}
			out = append(out, pipedag.Step{Name: name, Run: script, EstimatedDurationSecs: duration.EstimateCommand(script)})
		case has(raw, "bash"):
			bash, _ := yamlutil.GetStr(raw, "bash")
			out = append(out, pipedag.Step{Name: "bash", Run: bash, EstimatedDurationSecs: duration.EstimateCommand(bash)})
		case has(raw, "pwsh"):
			pwsh, _ := yamlutil.GetStr(raw, "pwsh")
			out = append(out, pipedag.Step{Name: "pwsh", Run: pwsh, EstimatedDurationSecs: duration.EstimateCommand(pwsh)})
		case has(raw, "task"):
			task, _ := yamlutil.GetStr(raw, "task")
			name, _ := yamlutil.GetStr(raw, "displayName")
			if name == "" {
				name = task
			}
			out = append(out, pipedag.Step{Name: name, Uses: task, EstimatedDurationSecs: estimateTaskDuration(task)})
		case has(raw, "template"):
			tmpl, _ := yamlutil.GetStr(raw, "template")
			out = append(out, pipedag.Step{Name: "template", Uses: tmpl, EstimatedDurationSecs: 5})
		case has(raw, "publish"):
			out = append(out, pipedag.Step{Name: "publish", Run: "publish artifact", EstimatedDurationSecs: 15})
		default:
			out = append(out, pipedag.Step{Name: "step", EstimatedDurationSecs: duration.GenericShell})
		}
	}
	return out
}

func has(v any, key string) bool {
	_, ok := yamlutil.Get(v, key)
	return ok
}

func estimateTaskDuration(task string) float64 {
	lower := strings.ToLower(task)
	switch {
	case strings.Contains(lower, "docker"):
		return duration.ContainerBuild
	case strings.Contains(lower, "publish"), strings.Contains(lower, "deploy"):
		return 60
	case strings.Contains(lower, "test"):
		return 180
	case strings.Contains(lower, "cache"):
		return 10
	default:
		return 30
	}
}

func detectCaches(steps []pipedag.Step) []pipedag.CacheConfig {
	var caches []pipedag.CacheConfig
	for _, s := range steps {
		if strings.Contains(strings.ToLower(s.Uses), "cache") {
			caches = append(caches, pipedag.CacheConfig{Path: "detected", KeyPattern: "azure-cache-task"})
		}
	}
	return caches
}

func parseTriggers(root any) []pipedag.Trigger {
	var triggers []pipedag.Trigger
	for _, key := range []string{"trigger", "pr"} {
		val, ok := yamlutil.Get(root, key)
		if !ok {
			continue
		}
		if s, ok := yamlutil.Str(val); ok {
			if s != "none" {
				triggers = append(triggers, pipedag.Trigger{Event: key, Branches: []string{s}})
			}
			continue
		}
		if items, ok := yamlutil.Slice(val); ok {
			var branches []string
			for _, item := range items {
				if s, ok := yamlutil.Str(item); ok {
					branches = append(branches, s)
				}
			}
			triggers = append(triggers, pipedag.Trigger{Event: key, Branches: branches})
			continue
		}
		if m, ok := yamlutil.Map(val); ok {
			t := pipedag.Trigger{Event: key}
			if branchesMap, ok := yamlutil.GetMap(m, "branches"); ok {
				t.Branches = yamlutil.GetStrSlice(branchesMap, "include")
			} else {
				t.Branches = yamlutil.GetStrSlice(m, "branches")
			}
			if pathsMap, ok := yamlutil.GetMap(m, "paths"); ok {
				t.Paths = yamlutil.GetStrSlice(pathsMap, "include")
				t.PathsIgnore = yamlutil.GetStrSlice(pathsMap, "exclude")
			}
			triggers = append(triggers, t)
		}
	}
	return triggers
}

func parseVariables(root any) map[string]string {
	out := map[string]string{}
	val, ok := yamlutil.Get(root, "variables")
	if !ok {
		return out
	}
	if m, ok := yamlutil.Map(val); ok {
		for k, v := range m {
			if s, ok := yamlutil.Str(v); ok {
				out[k] = s
			}
		}
		return out
	}
	if items, ok := yamlutil.Slice(val); ok {
		for _, item := range items {
			name, ok := yamlutil.GetStr(item, "name")
			if !ok {
				continue
			}
			value, _ := yamlutil.GetStr(item, "value")
			out[name] = value
		}
	}
	return out
}
