// Package tekton parses Tekton Pipeline, Task, and PipelineRun CRDs into
// the canonical pipeline DAG (spec.md §4.1, grounded on parser/tekton.rs).
package tekton

import (
	"bytes"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "tekton"

// Parse parses Tekton CRD YAML bytes into a DAG. A multi-document file
// selects the highest-priority document (Pipeline > PipelineRun > Task >
// any other tekton.dev resource); dependency-annotated `runAfter`
// references wire task edges (spec.md §4.1 "dependency-annotated").
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	docs, err := decodeDocuments(content)
	if err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	var selected any
	bestPriority := -1
	for _, doc := range docs {
		p := documentPriority(doc)
		if p > bestPriority {
			bestPriority = p
			selected = doc
		}
	}
	if selected == nil {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "(empty document)"}
	}
	if bestPriority == 0 {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "Pipeline/Task/PipelineRun"}
	}

	kind := "Pipeline"
	if k, ok := yamlutil.GetStr(selected, "kind"); ok {
		kind = k
	}

	switch kind {
	case "PipelineRun":
		return parsePipelineRun(selected, sourceFile)
	case "Task":
		return parseTaskAsPipeline(selected, sourceFile)
	default:
		return parsePipeline(selected, sourceFile)
	}
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

func documentPriority(doc any) int {
	kind, _ := yamlutil.GetStr(doc, "kind")
	switch kind {
	case "Pipeline":
		return 4
	case "PipelineRun":
		return 3
	case "Task":
		return 2
	default:
		if api, ok := yamlutil.GetStr(doc, "apiVersion"); ok && strings.Contains(api, "tekton.dev") {
			return 1
		}
		return 0
	}
}

func metadataName(doc any, fallback string) string {
	metadata, ok := yamlutil.GetMap(doc, "metadata")
	if !ok {
		metadata, _ = yamlutil.Map(doc)
	}
	if n, ok := yamlutil.GetStr(metadata, "name"); ok {
		return n
	}
	return fallback
}

func parsePipeline(doc any, sourceFile string) (*pipedag.PipelineDag, error) {
	name := metadataName(doc, "Unnamed Tekton Pipeline")
	dag := pipedag.New(name, sourceFile, ProviderName)

	spec, ok := yamlutil.Get(doc, "spec")
	if !ok {
		return dag, nil
	}

	tasks, _ := yamlutil.GetSlice(spec, "tasks")
	finallyTasks, _ := yamlutil.GetSlice(spec, "finally")

	for _, task := range tasks {
		job := parsePipelineTask(task)
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
	}
	for _, task := range finallyTasks {
		job := parsePipelineTask(task)
		job.Condition = "finally"
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
	}

	for _, task := range tasks {
		taskName := "unknown"
		if n, ok := yamlutil.GetStr(task, "name"); ok {
			taskName = n
		}
		for _, dep := range yamlutil.GetStrSlice(task, "runAfter") {
			if err := dag.AddDependency(dep, taskName); err != nil {
				return nil, err
			}
		}
	}

	var regularIDs []string
	dependedOn := map[string]bool{}
	for _, task := range tasks {
		if n, ok := yamlutil.GetStr(task, "name"); ok {
			regularIDs = append(regularIDs, n)
		}
		for _, dep := range yamlutil.GetStrSlice(task, "runAfter") {
			dependedOn[dep] = true
		}
	}
	var leafTasks []string
	for _, id := range regularIDs {
		if !dependedOn[id] {
			leafTasks = append(leafTasks, id)
		}
	}

	for _, finallyTask := range finallyTasks {
		taskName := "unknown"
		if n, ok := yamlutil.GetStr(finallyTask, "name"); ok {
			taskName = n
		}
		for _, leaf := range leafTasks {
			if err := dag.AddDependency(leaf, taskName); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func parsePipelineTask(task any) pipedag.JobNode {
	name := "unnamed-task"
	if n, ok := yamlutil.GetStr(task, "name"); ok {
		name = n
	}

	var steps []pipedag.Step

	if taskRef, ok := yamlutil.GetMap(task, "taskRef"); ok {
		refName := "unknown"
		if n, ok := yamlutil.GetStr(taskRef, "name"); ok {
			refName = n
		}
		steps = append(steps, pipedag.Step{
			Name: "taskRef: " + refName, Uses: refName,
			EstimatedDurationSecs: estimateTaskDuration(refName),
		})
	}

	if taskSpec, ok := yamlutil.GetMap(task, "taskSpec"); ok {
		if stepsRaw, ok := yamlutil.GetSlice(taskSpec, "steps"); ok {
			for _, s := range stepsRaw {
				steps = append(steps, parseStep(s))
			}
		}
	}

	env := map[string]string{}
	if params, ok := yamlutil.GetSlice(task, "params"); ok {
		for _, p := range params {
			pName, nameOK := yamlutil.GetStr(p, "name")
			pVal, valOK := yamlutil.GetStr(p, "value")
			if nameOK && valOK {
				env[pName] = pVal
			}
		}
	}

	var condition string
	if whenList, ok := yamlutil.GetSlice(task, "when"); ok && len(whenList) > 0 {
		condition = "when-expression"
	}

	total := 0.0
	for _, s := range steps {
		total += s.EstimatedDurationSecs
	}
	if total == 0 {
		total = 60
	}

	return pipedag.JobNode{
		ID:                    name,
		DisplayName:           name,
		RunsOn:                "tekton",
		Steps:                 steps,
		Needs:                 yamlutil.GetStrSlice(task, "runAfter"),
		Condition:             condition,
		Env:                   env,
		EstimatedDurationSecs: total,
	}
}

func parseStep(step any) pipedag.Step {
	name := "unnamed-step"
	if n, ok := yamlutil.GetStr(step, "name"); ok {
		name = n
	}
	image, _ := yamlutil.GetStr(step, "image")

	var run string
	if script, ok := yamlutil.GetStr(step, "script"); ok {
		run = script
	} else if cmd := yamlutil.GetStrSlice(step, "command"); len(cmd) > 0 {
		run = strings.Join(cmd, " ")
	}

	return pipedag.Step{
		Name: name, Uses: image, Run: run,
		EstimatedDurationSecs: estimateStepDuration(image, run),
	}
}

func parsePipelineRun(doc any, sourceFile string) (*pipedag.PipelineDag, error) {
	name := metadataName(doc, "Unnamed PipelineRun")

	spec, ok := yamlutil.Get(doc, "spec")
	if !ok {
		spec = doc
	}

	if pipelineSpec, ok := yamlutil.Get(spec, "pipelineSpec"); ok {
		wrapper := map[string]any{
			"spec":     pipelineSpec,
			"metadata": map[string]any{"name": name},
		}
		return parsePipeline(wrapper, sourceFile)
	}

	return pipedag.New(name, sourceFile, ProviderName), nil
}

func parseTaskAsPipeline(doc any, sourceFile string) (*pipedag.PipelineDag, error) {
	name := metadataName(doc, "Unnamed Task")
	dag := pipedag.New(name, sourceFile, ProviderName)

	var steps []pipedag.Step
	if spec, ok := yamlutil.Get(doc, "spec"); ok {
		if stepsRaw, ok := yamlutil.GetSlice(spec, "steps"); ok {
			for _, s := range stepsRaw {
				steps = append(steps, parseStep(s))
			}
		}
	}

	total := 0.0
	for _, s := range steps {
		total += s.EstimatedDurationSecs
	}
	if total == 0 {
		total = 60
	}

	job := pipedag.JobNode{
		ID: name, DisplayName: name, RunsOn: "tekton",
		Steps: steps, EstimatedDurationSecs: total,
	}
	if err := dag.AddJob(job); err != nil {
		return nil, err
	}
	return dag, nil
}

func estimateTaskDuration(taskName string) float64 {
	lower := strings.ToLower(taskName)
	switch {
	case strings.Contains(lower, "git-clone"), strings.Contains(lower, "clone"):
		return 15
	case strings.Contains(lower, "build"), strings.Contains(lower, "compile"), strings.Contains(lower, "test"):
		return 300
	case strings.Contains(lower, "lint"), strings.Contains(lower, "check"):
		return 60
	case strings.Contains(lower, "push"), strings.Contains(lower, "deploy"):
		return 120
	case strings.Contains(lower, "scan"), strings.Contains(lower, "security"):
		return 90
	default:
		return 60
	}
}

func estimateStepDuration(image, run string) float64 {
	if run != "" {
		cmd := strings.ToLower(run)
		switch {
		case strings.Contains(cmd, "build"), strings.Contains(cmd, "compile"), strings.Contains(cmd, "test"), strings.Contains(cmd, "pytest"):
			return 300
		case strings.Contains(cmd, "install"), strings.Contains(cmd, "npm ci"):
			return 180
		case strings.Contains(cmd, "deploy"), strings.Contains(cmd, "kubectl"):
			return 120
		case strings.Contains(cmd, "lint"), strings.Contains(cmd, "check"):
			return 60
		}
	}
	if image != "" && (strings.Contains(image, "kaniko") || strings.Contains(image, "buildah")) {
		return 300
	}
	return 30
}
