// Package drone parses Drone CI / Woodpecker CI pipeline files
// (.drone.yml / .woodpecker.yml) into the canonical pipeline DAG (spec.md
// §4.1, grounded on parser/drone.rs).
package drone

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "drone"

// Parse parses Drone CI YAML bytes into a DAG. A Drone file may hold
// multiple `---`-separated pipeline documents; a single-document file
// parses to a sequential-by-default job chain (spec.md §4.1 "sequential-
// by-default"), overridden per step by an explicit `depends_on` list. A
// multi-document file treats each pipeline as one aggregated job, wired by
// each pipeline's own top-level `depends_on`.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	docs, err := decodeDocuments(content)
	if err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}
	if len(docs) == 0 {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "(empty document)"}
	}

	if len(docs) > 1 {
		return parseMultiPipeline(docs, sourceFile)
	}
	return parseSingle(docs[0], sourceFile)
}

func decodeDocuments(content []byte) ([]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	var docs []any
	for {
		var doc any
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func parseSingle(root any, sourceFile string) (*pipedag.PipelineDag, error) {
	kind := "pipeline"
	if k, ok := yamlutil.GetStr(root, "kind"); ok {
		kind = k
	}

	if kind != "pipeline" {
		name := "Unnamed"
		if n, ok := yamlutil.GetStr(root, "name"); ok {
			name = n
		}
		return pipedag.New(name, sourceFile, ProviderName), nil
	}

	name := "Unnamed Pipeline"
	if n, ok := yamlutil.GetStr(root, "name"); ok {
		name = n
	}

	dag := pipedag.New(name, sourceFile, ProviderName)
	if trigger, ok := yamlutil.Get(root, "trigger"); ok {
		dag.Triggers = parseTrigger(trigger)
	}

	platform := "linux"
	if p, ok := yamlutil.GetMap(root, "platform"); ok {
		if os, ok := yamlutil.GetStr(p, "os"); ok {
			platform = os
		}
	}

	stepsRaw, ok := yamlutil.GetSlice(root, "steps")
	if !ok {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "steps"}
	}

	hasDependsOn := false
	for _, s := range stepsRaw {
		if _, ok := yamlutil.Get(s, "depends_on"); ok {
			hasDependsOn = true
			break
		}
	}

	var stepNames []string
	for _, raw := range stepsRaw {
		job := parseStep(raw, platform)
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
		stepNames = append(stepNames, job.ID)
	}

	if hasDependsOn {
		for _, raw := range stepsRaw {
			stepName, ok := yamlutil.GetStr(raw, "name")
			if !ok || stepName == "" {
				stepName = "unnamed-step"
			}
			for _, dep := range yamlutil.GetStrSlice(raw, "depends_on") {
				if _, ok := dag.GetJob(dep); !ok {
					continue
				}
				if err := dag.AddDependency(dep, stepName); err != nil {
					return nil, err
				}
			}
		}
	} else {
		for i := 1; i < len(stepNames); i++ {
			if err := dag.AddDependency(stepNames[i-1], stepNames[i]); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func parseMultiPipeline(docs []any, sourceFile string) (*pipedag.PipelineDag, error) {
	dag := pipedag.New("Multi-Pipeline", sourceFile, ProviderName)

	var pipelineNames []string

	for _, doc := range docs {
		kind := "pipeline"
		if k, ok := yamlutil.GetStr(doc, "kind"); ok {
			kind = k
		}
		if kind != "pipeline" {
			continue
		}

		pipelineName := "unnamed"
		if n, ok := yamlutil.GetStr(doc, "name"); ok {
			pipelineName = n
		}

		stepsRaw, _ := yamlutil.GetSlice(doc, "steps")

		var steps []pipedag.Step
		total := 0.0
		for _, raw := range stepsRaw {
			s := parseStepInfo(raw)
			total += s.EstimatedDurationSecs
			steps = append(steps, s)
		}

		job := pipedag.JobNode{
			ID:                    pipelineName,
			DisplayName:           pipelineName,
			RunsOn:                "drone-multi",
			Steps:                 steps,
			EstimatedDurationSecs: total,
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
		pipelineNames = append(pipelineNames, pipelineName)
	}

	for _, doc := range docs {
		kind, _ := yamlutil.GetStr(doc, "kind")
		if kind != "pipeline" {
			continue
		}
		pipelineName, ok := yamlutil.GetStr(doc, "name")
		if !ok || pipelineName == "" {
			pipelineName = "unnamed"
		}
		for _, dep := range yamlutil.GetStrSlice(doc, "depends_on") {
			if _, ok := dag.GetJob(dep); !ok {
				continue
			}
			if err := dag.AddDependency(dep, pipelineName); err != nil {
				return nil, err
			}
		}
	}

	if dag.Name == "Multi-Pipeline" && len(pipelineNames) > 0 {
		dag.Name = strings.Join(pipelineNames, " + ")
	}

	return dag, nil
}

func parseStep(step any, platform string) pipedag.JobNode {
	name := "unnamed-step"
	if n, ok := yamlutil.GetStr(step, "name"); ok {
		name = n
	}

	image, _ := yamlutil.GetStr(step, "image")

	var steps []pipedag.Step
	if cmds, ok := yamlutil.GetSlice(step, "commands"); ok && len(cmds) > 0 {
		for _, c := range cmds {
			cmd, ok := yamlutil.Str(c)
			if !ok {
				continue
			}
			steps = append(steps, pipedag.Step{
				Name: cmd, Uses: image, Run: cmd,
				EstimatedDurationSecs: duration.EstimateCommand(cmd),
			})
		}
	} else {
		steps = append(steps, pipedag.Step{
			Name: fmt.Sprintf("plugin: %s", image), Uses: image,
			EstimatedDurationSecs: estimatePluginDuration(image),
		})
	}

	env := map[string]string{}
	if settings, ok := yamlutil.GetMap(step, "settings"); ok {
		for k, v := range settings {
			if s, ok := yamlutil.Str(v); ok {
				env[k] = s
			}
		}
	}
	for k, v := range yamlutil.GetStrMapOr(step, "environment") {
		env[k] = v
	}

	var condition string
	if when, ok := yamlutil.Get(step, "when"); ok {
		if b, err := yaml.Marshal(when); err == nil {
			condition = strings.TrimSpace(string(b))
		}
	}

	total := 0.0
	for _, s := range steps {
		total += s.EstimatedDurationSecs
	}
	if total == 0 {
		total = 30
	}

	return pipedag.JobNode{
		ID:                    name,
		DisplayName:           name,
		RunsOn:                fmt.Sprintf("%s (%s)", platform, image),
		Steps:                 steps,
		Condition:             condition,
		Env:                   env,
		EstimatedDurationSecs: total,
	}
}

func parseStepInfo(step any) pipedag.Step {
	name := "unnamed"
	if n, ok := yamlutil.GetStr(step, "name"); ok {
		name = n
	}
	image, hasImage := yamlutil.GetStr(step, "image")

	var dur float64
	var run string
	if cmds, ok := yamlutil.GetSlice(step, "commands"); ok && len(cmds) > 0 {
		var parts []string
		for _, c := range cmds {
			if s, ok := yamlutil.Str(c); ok {
				parts = append(parts, s)
			}
		}
		run = strings.Join(parts, " && ")
		dur = duration.EstimateCommand(run)
	} else if hasImage {
		dur = estimatePluginDuration(image)
	} else {
		dur = 30
	}

	return pipedag.Step{Name: name, Uses: image, Run: run, EstimatedDurationSecs: dur}
}

func parseTrigger(trigger any) []pipedag.Trigger {
	var triggers []pipedag.Trigger

	if eventVal, ok := yamlutil.Get(trigger, "event"); ok {
		events := yamlutil.StrSlice(eventVal)

		var branches []string
		if branchVal, ok := yamlutil.Get(trigger, "branch"); ok {
			if s, ok := yamlutil.Str(branchVal); ok {
				branches = []string{s}
			} else if items, ok := yamlutil.Slice(branchVal); ok {
				for _, item := range items {
					if s, ok := yamlutil.Str(item); ok {
						branches = append(branches, s)
					}
				}
			} else if include := yamlutil.GetStrSlice(branchVal, "include"); len(include) > 0 {
				branches = include
			}
		}

		for _, event := range events {
			triggers = append(triggers, pipedag.Trigger{Event: event, Branches: branches})
		}
	}

	if len(triggers) == 0 {
		triggers = append(triggers, pipedag.Trigger{Event: "push"})
	}

	return triggers
}

func estimatePluginDuration(image string) float64 {
	lower := strings.ToLower(image)
	switch {
	case strings.Contains(lower, "docker"), strings.Contains(lower, "ecr"), strings.Contains(lower, "gcr"):
		return 300
	case strings.Contains(lower, "s3"), strings.Contains(lower, "gcs"), strings.Contains(lower, "artifact"):
		return 60
	case strings.Contains(lower, "slack"), strings.Contains(lower, "email"), strings.Contains(lower, "notify"):
		return 5
	case strings.Contains(lower, "terraform"), strings.Contains(lower, "ansible"):
		return 120
	case strings.Contains(lower, "cache"):
		return 10
	default:
		return 30
	}
}
