// Package bitbucket parses Bitbucket Pipelines configuration files into
// the canonical pipeline DAG (spec.md §4.1, grounded on parser/bitbucket.rs).
package bitbucket

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "bitbucket"

// Parse parses a bitbucket-pipelines.yml's bytes into a DAG.
//
// Bitbucket pipelines are sequential lists of steps (stage-ordered with no
// explicit override construct): a bare `step` depends on every job emitted
// by the previous list entry, and a `parallel` block's steps are siblings
// that all depend on the same predecessor set and carry no edges between
// each other (spec.md §4.1 "parallel-block siblings").
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	dag := pipedag.New("Bitbucket Pipeline", sourceFile, ProviderName)

	defaultImage := "atlassian/default-image"
	if img, ok := yamlutil.GetStr(root, "image"); ok {
		defaultImage = img
	}

	pipelinesMap, ok := yamlutil.GetMap(root, "pipelines")
	if !ok {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "pipelines"}
	}

	used := map[string]bool{}
	stepCounter := 0

	if def, ok := pipelinesMap["default"]; ok {
		if err := parsePipelineSteps(dag, def, defaultImage, &stepCounter, "default", used); err != nil {
			return nil, err
		}
	}

	if branches, ok := yamlutil.GetMap(pipelinesMap, "branches"); ok {
		names := sortedKeys(branches)
		for _, branch := range names {
			if err := parsePipelineSteps(dag, branches[branch], defaultImage, &stepCounter, branch, used); err != nil {
				return nil, err
			}
		}
	}

	if prs, ok := yamlutil.GetMap(pipelinesMap, "pull-requests"); ok {
		patterns := sortedKeys(prs)
		for _, pattern := range patterns {
			label := fmt.Sprintf("pr-%s", pattern)
			if err := parsePipelineSteps(dag, prs[pattern], defaultImage, &stepCounter, label, used); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parsePipelineSteps(dag *pipedag.PipelineDag, pipeline any, defaultImage string, stepCounter *int, branch string, used map[string]bool) error {
	steps, ok := yamlutil.Slice(pipeline)
	if !ok {
		return &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Path: branch}
	}

	var previousJobs []string

	for _, entry := range steps {
		if stepVal, ok := yamlutil.Get(entry, "step"); ok {
			job, err := parseStep(stepVal, defaultImage, stepCounter, branch, used)
			if err != nil {
				return err
			}
			job.Needs = append([]string(nil), previousJobs...)
			if err := dag.AddJob(job); err != nil {
				return err
			}
			for _, prev := range previousJobs {
				if err := dag.AddDependency(prev, job.ID); err != nil {
					return err
				}
			}
			previousJobs = []string{job.ID}
			continue
		}

		if parallelVal, ok := yamlutil.Get(entry, "parallel"); ok {
			parallelSteps, ok := yamlutil.Slice(parallelVal)
			if !ok {
				return &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Path: branch + ".parallel"}
			}
			var parallelIDs []string
			for _, pEntry := range parallelSteps {
				stepVal, ok := yamlutil.Get(pEntry, "step")
				if !ok {
					continue
				}
				job, err := parseStep(stepVal, defaultImage, stepCounter, branch, used)
				if err != nil {
					return err
				}
				job.Needs = append([]string(nil), previousJobs...)
				if err := dag.AddJob(job); err != nil {
					return err
				}
				for _, prev := range previousJobs {
					if err := dag.AddDependency(prev, job.ID); err != nil {
						return err
					}
				}
				parallelIDs = append(parallelIDs, job.ID)
			}
			previousJobs = parallelIDs
		}
	}

	return nil
}

func parseStep(step any, defaultImage string, stepCounter *int, branch string, used map[string]bool) (pipedag.JobNode, error) {
	*stepCounter++

	name := fmt.Sprintf("Step %d", *stepCounter)
	if n, ok := yamlutil.GetStr(step, "name"); ok {
		name = n
	}

	id := fmt.Sprintf("%s-%s", branch, strings.ReplaceAll(strings.ToLower(name), " ", "-"))
	if used[id] {
		id = pipedag.SynthesizeID(branch, name, used)
	}
	used[id] = true

	steps := extractSteps(step)

	image := defaultImage
	if img, ok := yamlutil.GetStr(step, "image"); ok {
		image = img
	}

	caches := extractCaches(step)
	estimated := estimateDuration(name, steps)

	var condition string
	if d, ok := yamlutil.GetStr(step, "deployment"); ok {
		condition = "deployment:" + d
	}

	return pipedag.JobNode{
		ID:                    id,
		DisplayName:           name,
		RunsOn:                "bitbucket:" + image,
		Steps:                 steps,
		Caches:                caches,
		Condition:             condition,
		EstimatedDurationSecs: estimated,
	}, nil
}

func extractSteps(step any) []pipedag.Step {
	script := yamlutil.GetStrSlice(step, "script")
	var out []pipedag.Step
	for i, cmd := range script {
		out = append(out, pipedag.Step{
			Name:                  fmt.Sprintf("Script %d", i+1),
			Run:                   cmd,
			EstimatedDurationSecs: 0,
		})
	}
	return out
}

func extractCaches(step any) []pipedag.CacheConfig {
	cacheList := yamlutil.GetStrSlice(step, "caches")
	var caches []pipedag.CacheConfig
	seen := map[string]bool{}
	for _, name := range cacheList {
		switch name {
		case "node":
			if !seen["node"] {
				caches = append(caches, pipedag.CacheConfig{Path: "node_modules", KeyPattern: `node-{{ checksum "package-lock.json" }}`, RestoreKeys: []string{"node-"}})
				seen["node"] = true
			}
		case "pip":
			if !seen["pip"] {
				caches = append(caches, pipedag.CacheConfig{Path: "~/.cache/pip", KeyPattern: `pip-{{ checksum "requirements.txt" }}`, RestoreKeys: []string{"pip-"}})
				seen["pip"] = true
			}
		case "maven":
			if !seen["maven"] {
				caches = append(caches, pipedag.CacheConfig{Path: "~/.m2/repository", KeyPattern: `maven-{{ checksum "pom.xml" }}`, RestoreKeys: []string{"maven-"}})
				seen["maven"] = true
			}
		case "gradle":
			if !seen["gradle"] {
				caches = append(caches, pipedag.CacheConfig{Path: "~/.gradle", KeyPattern: `gradle-{{ checksum "build.gradle" }}`, RestoreKeys: []string{"gradle-"}})
				seen["gradle"] = true
			}
		}
	}
	return caches
}

func estimateDuration(name string, steps []pipedag.Step) float64 {
	lower := strings.ToLower(name)
	base := 120.0
	switch {
	case strings.Contains(lower, "deploy"):
		base = 180
	case strings.Contains(lower, "build"):
		base = 240
	case strings.Contains(lower, "test"):
		base = 300
	case strings.Contains(lower, "lint"):
		base = 60
	}
	return base + float64(len(steps))*10
}
