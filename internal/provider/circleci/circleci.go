// Package circleci parses CircleCI configuration files into the canonical
// pipeline DAG (spec.md §4.1, grounded on parser/circleci.rs).
package circleci

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "circleci"

// Parse parses a CircleCI config's YAML bytes into a DAG.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	dag := pipedag.New("CircleCI Pipeline", sourceFile, ProviderName)

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
		spec := jobsMap[id]
		steps := parseSteps(spec)
		total := estimateDuration(id, steps)
		job := pipedag.JobNode{
			ID:                    id,
			DisplayName:           id,
			RunsOn:                executorName(spec),
			Steps:                 steps,
			Caches:                detectCaches(spec, steps),
			Env:                   yamlutil.GetStrMapOr(spec, "environment"),
			EstimatedDurationSecs: total,
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
	}

	workflowsMap, ok := yamlutil.GetMap(root, "workflows")
	if ok {
		names := make([]string, 0, len(workflowsMap))
		for n := range workflowsMap {
			if n == "version" {
				continue
			}
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			workflow := workflowsMap[n]
			workflowJobs, ok := yamlutil.GetSlice(workflow, "jobs")
			if !ok {
				continue
			}
			if err := parseWorkflowDependencies(dag, workflowJobs); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func parseWorkflowDependencies(dag *pipedag.PipelineDag, workflowJobs []any) error {
	for _, entry := range workflowJobs {
		var jobName string
		var requires []string

		if s, ok := yamlutil.Str(entry); ok {
			jobName = s
		} else if m, ok := yamlutil.Map(entry); ok {
			for k, v := range m {
				jobName = k
				requires = yamlutil.StrSlice(mapGet(v, "requires"))
				break
			}
		} else {
			continue
		}

		if jobName == "" {
			continue
		}
		if _, ok := dag.GetJob(jobName); !ok {
			continue
		}
		for _, dep := range requires {
			if _, ok := dag.GetJob(dep); !ok {
				return &pipedag.ParseError{Kind: pipedag.UnresolvedDependency, From: dep, To: jobName}
			}
			if err := dag.AddDependency(dep, jobName); err != nil {
				return err
			}
		}
	}
	return nil
}

func mapGet(v any, key string) any {
	m, ok := yamlutil.Map(v)
	if !ok {
		return nil
	}
	return m[key]
}

func parseSteps(spec any) []pipedag.Step {
	stepsRaw, ok := yamlutil.GetSlice(spec, "steps")
	if !ok {
		return nil
	}

	var steps []pipedag.Step
	for i, raw := range stepsRaw {
		if s, ok := yamlutil.Str(raw); ok {
			steps = append(steps, pipedag.Step{Name: s, Run: "", EstimatedDurationSecs: duration.EstimateCommand(s)})
			continue
		}

		runVal := mapGet(raw, "run")
		if runVal != nil {
			var cmd, name string
			if s, ok := yamlutil.Str(runVal); ok {
				cmd = s
			} else {
				cmd, _ = yamlutil.GetStr(runVal, "command")
				name, _ = yamlutil.GetStr(runVal, "name")
			}
			if name == "" {
				if len(cmd) > 50 {
					name = cmd[:50]
				} else {
					name = cmd
				}
			}
			steps = append(steps, pipedag.Step{
				Name:                  name,
				Run:                   cmd,
				EstimatedDurationSecs: duration.EstimateCommand(cmd),
				HasCacheHint:          mapGet(raw, "save_cache") != nil || mapGet(raw, "restore_cache") != nil,
			})
			continue
		}

		if m, ok := yamlutil.Map(raw); ok {
			for k := range m {
				steps = append(steps, pipedag.Step{
					Name:                  k,
					EstimatedDurationSecs: duration.GenericShell,
					HasCacheHint:          k == "save_cache" || k == "restore_cache",
				})
				break
			}
			continue
		}

		steps = append(steps, pipedag.Step{Name: fmt.Sprintf("Step %d", i+1), EstimatedDurationSecs: duration.GenericShell})
	}
	return steps
}

func executorName(spec any) string {
	if docker, ok := yamlutil.GetSlice(spec, "docker"); ok && len(docker) > 0 {
		if img, ok := yamlutil.GetStr(docker[0], "image"); ok {
			return "docker:" + img
		}
	}
	if machine, ok := yamlutil.Get(spec, "machine"); ok {
		if img, ok := yamlutil.GetStr(machine, "image"); ok {
			return "machine:" + img
		}
		return "machine:ubuntu"
	}
	if _, ok := yamlutil.Get(spec, "macos"); ok {
		return "macos"
	}
	return "docker:cimg/base"
}

func estimateDuration(jobName string, steps []pipedag.Step) float64 {
	nameLower := strings.ToLower(jobName)
	base := 120.0
	switch {
	case strings.Contains(nameLower, "build"):
		base = 240
	case strings.Contains(nameLower, "test"):
		base = 300
	case strings.Contains(nameLower, "deploy"):
		base = 180
	case strings.Contains(nameLower, "lint"):
		base = 60
	}
	return base + float64(len(steps))*10
}

func detectCaches(spec any, steps []pipedag.Step) []pipedag.CacheConfig {
	for _, s := range steps {
		if s.HasCacheHint {
			return []pipedag.CacheConfig{{Path: "explicit", KeyPattern: "save_cache/restore_cache"}}
		}
	}

	var caches []pipedag.CacheConfig
	seen := map[string]bool{}
	for _, s := range steps {
		if s.Run == "" {
			continue
		}
		lower := strings.ToLower(s.Run)
		switch {
		case (strings.Contains(lower, "npm") || strings.Contains(lower, "yarn")) && !seen["node"]:
			caches = append(caches, pipedag.CacheConfig{Path: "node_modules", KeyPattern: `node-{{ checksum "package-lock.json" }}`, RestoreKeys: []string{"node-"}})
			seen["node"] = true
		case strings.Contains(lower, "pip") && !seen["pip"]:
			caches = append(caches, pipedag.CacheConfig{Path: "~/.cache/pip", KeyPattern: `pip-{{ checksum "requirements.txt" }}`, RestoreKeys: []string{"pip-"}})
			seen["pip"] = true
		case (strings.Contains(lower, "gradle") || strings.Contains(lower, "./gradlew")) && !seen["gradle"]:
			caches = append(caches, pipedag.CacheConfig{Path: "~/.gradle", KeyPattern: `gradle-{{ checksum "build.gradle" }}`, RestoreKeys: []string{"gradle-"}})
			seen["gradle"] = true
		}
	}
	return caches
}
