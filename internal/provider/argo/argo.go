// Package argo parses Argo Workflows and WorkflowTemplate CRDs into the
// canonical pipeline DAG (spec.md §4.1, grounded on parser/argo.rs).
package argo

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "argo_workflows"

// Parse parses Argo Workflows YAML bytes into a DAG. A multi-document file
// selects the highest-priority document (Workflow/CronWorkflow >
// WorkflowTemplate > any other argoproj.io resource). A `dag` template's
// tasks are dependency-annotated via `dependencies`; a `steps` template is
// a list of barrier groups — every step in group N+1 depends on every step
// in group N (spec.md §4.1 "barrier semantics... Argo step groups").
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
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "Workflow/WorkflowTemplate"}
	}

	return parseDocument(selected, sourceFile)
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
	case "Workflow", "CronWorkflow":
		return 3
	case "WorkflowTemplate", "ClusterWorkflowTemplate":
		return 2
	default:
		if api, ok := yamlutil.GetStr(doc, "apiVersion"); ok && strings.Contains(api, "argoproj.io") {
			return 1
		}
		return 0
	}
}

func parseDocument(doc any, sourceFile string) (*pipedag.PipelineDag, error) {
	metadata, ok := yamlutil.GetMap(doc, "metadata")
	if !ok {
		metadata, _ = yamlutil.Map(doc)
	}
	name := "Unnamed Argo Workflow"
	if n, ok := yamlutil.GetStr(metadata, "name"); ok {
		name = n
	}

	dag := pipedag.New(name, sourceFile, ProviderName)

	spec, ok := yamlutil.Get(doc, "spec")
	if !ok {
		return dag, nil
	}

	templatesRaw, _ := yamlutil.GetSlice(spec, "templates")
	templates := map[string]any{}
	var templateOrder []string
	for _, t := range templatesRaw {
		if n, ok := yamlutil.GetStr(t, "name"); ok {
			templates[n] = t
			templateOrder = append(templateOrder, n)
		}
	}

	entrypoint, _ := yamlutil.GetStr(spec, "entrypoint")

	if entry, ok := templates[entrypoint]; ok {
		if err := processTemplate(dag, entry, templates); err != nil {
			return nil, err
		}
	} else {
		for _, n := range templateOrder {
			if err := processTemplate(dag, templates[n], templates); err != nil {
				return nil, err
			}
		}
	}

	return dag, nil
}

func processTemplate(dag *pipedag.PipelineDag, template any, allTemplates map[string]any) error {
	if dagSpec, ok := yamlutil.Get(template, "dag"); ok {
		return processDagTemplate(dag, dagSpec, allTemplates)
	}
	if stepsSpec, ok := yamlutil.Get(template, "steps"); ok {
		return processStepsTemplate(dag, stepsSpec, allTemplates)
	}
	if hasAny(template, "container", "script") {
		name := "unnamed"
		if n, ok := yamlutil.GetStr(template, "name"); ok {
			name = n
		}
		job := templateToJob(template, name)
		return dag.AddJob(job)
	}
	return nil
}

func hasAny(v any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := yamlutil.Get(v, k); ok {
			return true
		}
	}
	return false
}

func processDagTemplate(dag *pipedag.PipelineDag, dagSpec any, allTemplates map[string]any) error {
	tasks, _ := yamlutil.GetSlice(dagSpec, "tasks")

	for _, task := range tasks {
		taskName := "unnamed"
		if n, ok := yamlutil.GetStr(task, "name"); ok {
			taskName = n
		}
		templateRef, _ := yamlutil.GetStr(task, "template")

		var job pipedag.JobNode
		if tmpl, ok := allTemplates[templateRef]; ok {
			job = templateToJob(tmpl, taskName)
		} else {
			job = pipedag.JobNode{
				ID: taskName, DisplayName: taskName, RunsOn: "argo",
				Steps: []pipedag.Step{{
					Name: "template: " + templateRef, Uses: templateRef, EstimatedDurationSecs: 60,
				}},
				EstimatedDurationSecs: 60,
			}
		}

		job.Needs = yamlutil.GetStrSlice(task, "dependencies")
		if when, ok := yamlutil.GetStr(task, "when"); ok {
			job.Condition = when
		}
		if args, ok := yamlutil.GetMap(task, "arguments"); ok {
			if params, ok := yamlutil.GetSlice(args, "parameters"); ok {
				env := map[string]string{}
				for _, p := range params {
					pName, nok := yamlutil.GetStr(p, "name")
					pVal, vok := yamlutil.GetStr(p, "value")
					if nok && vok {
						env[pName] = pVal
					}
				}
				job.Env = env
			}
		}

		if err := dag.AddJob(job); err != nil {
			return err
		}
	}

	for _, task := range tasks {
		taskName := "unnamed"
		if n, ok := yamlutil.GetStr(task, "name"); ok {
			taskName = n
		}
		for _, dep := range yamlutil.GetStrSlice(task, "dependencies") {
			if err := dag.AddDependency(dep, taskName); err != nil {
				return err
			}
		}
	}

	return nil
}

func processStepsTemplate(dag *pipedag.PipelineDag, stepsSpec any, allTemplates map[string]any) error {
	stepGroups, ok := yamlutil.Slice(stepsSpec)
	if !ok {
		return nil
	}

	var prevGroupIDs []string

	for groupIdx, groupVal := range stepGroups {
		steps, ok := yamlutil.Slice(groupVal)
		if !ok {
			continue
		}

		var currentGroupIDs []string
		for _, step := range steps {
			stepName := "unnamed"
			if n, ok := yamlutil.GetStr(step, "name"); ok {
				stepName = n
			}
			uniqueName := fmt.Sprintf("step-%d-%s", groupIdx, stepName)
			templateRef, _ := yamlutil.GetStr(step, "template")

			var job pipedag.JobNode
			if tmpl, ok := allTemplates[templateRef]; ok {
				job = templateToJob(tmpl, uniqueName)
				job.DisplayName = stepName
			} else {
				job = pipedag.JobNode{ID: uniqueName, DisplayName: stepName, RunsOn: "argo", EstimatedDurationSecs: 60}
			}

			job.Needs = append([]string(nil), prevGroupIDs...)
			if when, ok := yamlutil.GetStr(step, "when"); ok {
				job.Condition = when
			}

			if err := dag.AddJob(job); err != nil {
				return err
			}
			currentGroupIDs = append(currentGroupIDs, uniqueName)
		}

		for _, currentID := range currentGroupIDs {
			for _, prevID := range prevGroupIDs {
				if err := dag.AddDependency(prevID, currentID); err != nil {
					return err
				}
			}
		}

		prevGroupIDs = currentGroupIDs
	}

	return nil
}

func templateToJob(template any, jobID string) pipedag.JobNode {
	templateName := jobID
	if n, ok := yamlutil.GetStr(template, "name"); ok {
		templateName = n
	}

	job := pipedag.JobNode{ID: jobID, DisplayName: templateName, RunsOn: "argo"}

	if container, ok := yamlutil.Get(template, "container"); ok {
		image := "unknown"
		if i, ok := yamlutil.GetStr(container, "image"); ok {
			image = i
		}
		cmd := strings.Join(yamlutil.GetStrSlice(container, "command"), " ")
		args := strings.Join(yamlutil.GetStrSlice(container, "args"), " ")
		run := joinNonEmpty(cmd, args)

		job.Steps = append(job.Steps, pipedag.Step{
			Name: templateName, Uses: image, Run: run,
			EstimatedDurationSecs: estimateDuration(image, templateName),
		})
	}

	if script, ok := yamlutil.Get(template, "script"); ok {
		image := "unknown"
		if i, ok := yamlutil.GetStr(script, "image"); ok {
			image = i
		}
		source, _ := yamlutil.GetStr(script, "source")

		job.Steps = append(job.Steps, pipedag.Step{
			Name: templateName, Uses: image, Run: source,
			EstimatedDurationSecs: estimateDuration(image, templateName),
		})
	}

	if retry, ok := yamlutil.Get(template, "retryStrategy"); ok {
		if limit, ok := yamlutil.Get(retry, "limit"); ok {
			if n, ok := limit.(int); ok {
				job.Env = map[string]string{"retry_limit": fmt.Sprintf("%d", n)}
			}
		}
	}

	total := 0.0
	for _, s := range job.Steps {
		total += s.EstimatedDurationSecs
	}
	if total == 0 {
		total = 60
	}
	job.EstimatedDurationSecs = total

	return job
}

func joinNonEmpty(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func estimateDuration(image, name string) float64 {
	lower := strings.ToLower(image + " " + name)
	switch {
	case strings.Contains(lower, "build"), strings.Contains(lower, "kaniko"), strings.Contains(lower, "buildah"), strings.Contains(lower, "test"), strings.Contains(lower, "pytest"):
		return 300
	case strings.Contains(lower, "lint"), strings.Contains(lower, "check"):
		return 60
	case strings.Contains(lower, "deploy"), strings.Contains(lower, "kubectl"), strings.Contains(lower, "helm"):
		return 120
	case strings.Contains(lower, "clone"), strings.Contains(lower, "git"):
		return 15
	case strings.Contains(lower, "install"), strings.Contains(lower, "setup"):
		return 120
	default:
		return 60
	}
}
