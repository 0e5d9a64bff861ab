// Package github parses GitHub Actions workflow files into the canonical
// pipeline DAG (spec.md §4.1, grounded on parser/github.rs).
package github

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "github_actions"

// Parse parses a GitHub Actions workflow's YAML bytes into a DAG. Jobs are
// parsed in a first pass so `needs` references resolve regardless of
// declaration order; dependency edges are added in a second pass
// (grounded on parser/github.rs's two-pass parse).
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	name := "GitHub Actions Workflow"
	if n, ok := yamlutil.GetStr(root, "name"); ok {
		name = n
	}

	dag := pipedag.New(name, sourceFile, ProviderName)
	dag.Triggers = parseTriggers(root)
	dag.Env = yamlutil.GetStrMapOr(root, "env")
	dag.HasConcurrencyControl = hasCancelInProgress(root)

	jobsMap, ok := yamlutil.GetMap(root, "jobs")
	if !ok {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "jobs"}
	}

	ids := make([]string, 0, len(jobsMap))
	for id := range jobsMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		job, err := parseJob(id, jobsMap[id])
		if err != nil {
			return nil, err
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		job, _ := dag.GetJob(id)
		needs := yamlutil.GetStrSlice(jobsMap[id], "needs")
		for _, parent := range needs {
			if _, ok := dag.GetJob(parent); !ok {
				return nil, &pipedag.ParseError{Kind: pipedag.UnresolvedDependency, From: parent, To: job.ID}
			}
			if err := dag.AddDependency(parent, job.ID); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func parseJob(id string, spec any) (pipedag.JobNode, error) {
	displayName := id
	if n, ok := yamlutil.GetStr(spec, "name"); ok {
		displayName = n
	}
	runsOn := "ubuntu-latest"
	if r, ok := yamlutil.GetStr(spec, "runs-on"); ok {
		runsOn = r
	}

	steps := parseSteps(spec)
	caches := detectCaches(steps)
	env := yamlutil.GetStrMapOr(spec, "env")

	var condition string
	if c, ok := yamlutil.GetStr(spec, "if"); ok {
		condition = c
	}

	matrix := parseMatrix(spec)

	total := 0.0
	for _, s := range steps {
		total += s.EstimatedDurationSecs
	}
	if total <= 0 {
		total = pipedag.DurationFloorSecs
	}

	return pipedag.JobNode{
		ID:                    id,
		DisplayName:           displayName,
		RunsOn:                runsOn,
		Steps:                 steps,
		Caches:                caches,
		Matrix:                matrix,
		Condition:             condition,
		Env:                   env,
		EstimatedDurationSecs: total,
	}, nil
}

func parseSteps(jobSpec any) []pipedag.Step {
	stepsRaw, ok := yamlutil.GetSlice(jobSpec, "steps")
	if !ok {
		return nil
	}

	var steps []pipedag.Step
	for i, raw := range stepsRaw {
		name := fmt.Sprintf("Step %d", i+1)
		if n, ok := yamlutil.GetStr(raw, "name"); ok {
			name = n
		}

		uses, _ := yamlutil.GetStr(raw, "uses")
		run, _ := yamlutil.GetStr(raw, "run")

		var dur float64
		switch {
		case run != "":
			dur = duration.EstimateCommand(run)
		case uses != "":
			dur = duration.EstimateAction(uses)
		default:
			dur = duration.GenericShell
		}

		step := pipedag.Step{
			Name:                  name,
			Uses:                  uses,
			Run:                   run,
			EstimatedDurationSecs: dur,
		}

		if strings.HasPrefix(uses, "actions/checkout") {
			if with, ok := yamlutil.GetMap(raw, "with"); ok {
				if _, ok := with["fetch-depth"]; ok {
					step.FetchDepthSet = true
				}
			}
		}
		if strings.HasPrefix(uses, "actions/cache") {
			step.HasCacheHint = true
		}
		if step.IsDockerBuild() && (strings.Contains(run, "--cache-from") || strings.Contains(uses, "cache")) {
			step.HasDockerCacheFrom = true
		}

		steps = append(steps, step)
	}
	return steps
}

func detectCaches(steps []pipedag.Step) []pipedag.CacheConfig {
	var caches []pipedag.CacheConfig
	for _, s := range steps {
		if s.HasCacheHint {
			caches = append(caches, pipedag.CacheConfig{Path: "detected", KeyPattern: "explicit"})
		}
	}
	return caches
}

func parseMatrix(jobSpec any) *pipedag.MatrixStrategy {
	strategy, ok := yamlutil.GetMap(jobSpec, "strategy")
	if !ok {
		return nil
	}
	matrixRaw, ok := strategy["matrix"]
	if !ok {
		return nil
	}
	matrixMap, ok := yamlutil.Map(matrixRaw)
	if !ok {
		return nil
	}

	order := make([]string, 0, len(matrixMap))
	for k := range matrixMap {
		if k == "include" || k == "exclude" {
			continue
		}
		order = append(order, k)
	}
	sort.Strings(order)

	vars := map[string][]string{}
	for _, k := range order {
		vars[k] = yamlutil.StrSlice(matrixMap[k])
	}

	m := pipedag.NewMatrixStrategy(order, vars)
	return &m
}

func parseTriggers(root any) []pipedag.Trigger {
	onVal, ok := yamlutil.Get(root, "on")
	if !ok {
		return nil
	}

	// `on: push` or `on: [push, pull_request]` shorthand.
	if names := yamlutil.StrSlice(onVal); names != nil {
		var triggers []pipedag.Trigger
		for _, n := range names {
			triggers = append(triggers, pipedag.Trigger{Event: n})
		}
		return triggers
	}

	onMap, ok := yamlutil.Map(onVal)
	if !ok {
		return nil
	}

	events := make([]string, 0, len(onMap))
	for e := range onMap {
		events = append(events, e)
	}
	sort.Strings(events)

	var triggers []pipedag.Trigger
	for _, event := range events {
		t := pipedag.Trigger{Event: event}
		spec := onMap[event]
		t.Branches = yamlutil.GetStrSlice(spec, "branches")
		t.Paths = yamlutil.GetStrSlice(spec, "paths")
		t.PathsIgnore = yamlutil.GetStrSlice(spec, "paths-ignore")
		triggers = append(triggers, t)
	}
	return triggers
}

func hasCancelInProgress(root any) bool {
	concurrency, ok := yamlutil.GetMap(root, "concurrency")
	if !ok {
		return false
	}
	v, ok := concurrency["cancel-in-progress"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
