// Package awscodepipeline parses AWS CodePipeline definitions (JSON or
// YAML — CodePipeline's JSON is valid YAML, so a single decoder handles
// both) into the canonical pipeline DAG (spec.md §4.1, grounded on
// parser/aws_codepipeline.rs).
package awscodepipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "aws_codepipeline"

type stageActions struct {
	allIDs         []string
	runOrderGroups map[int][]string
}

// Parse parses an AWS CodePipeline definition's bytes into a DAG.
//
// Dependencies follow AWS's runOrder rule (spec.md §4.1): within a stage,
// actions at a higher runOrder depend on every action at a lower runOrder;
// across stages, every action in stage N+1 depends on every action in
// stage N.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var parsed any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	pipeline := parsed
	if p, ok := yamlutil.Get(parsed, "pipeline"); ok {
		pipeline = p
	}

	name := "AWS CodePipeline"
	if n, ok := yamlutil.GetStr(pipeline, "name"); ok {
		name = n
	}

	dag := pipedag.New(name, sourceFile, ProviderName)

	stages, ok := yamlutil.GetSlice(pipeline, "stages")
	if !ok {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "stages"}
	}

	var stageList []stageActions

	for _, stageVal := range stages {
		stageName, ok := yamlutil.GetStr(stageVal, "name")
		if !ok || stageName == "" {
			stageName = "stage"
		}

		actions, ok := yamlutil.GetSlice(stageVal, "actions")
		if !ok {
			return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: stageName + ".actions"}
		}

		runOrderGroups := map[int][]string{}
		var allIDs []string

		for actionIdx, actionVal := range actions {
			actionName, ok := yamlutil.GetStr(actionVal, "name")
			if !ok || actionName == "" {
				actionName = "action"
			}
			actionID := fmt.Sprintf("%s-%s", pipedag.Sanitize(stageName), pipedag.Sanitize(actionName))

			runOrder := 1
			if ro, ok := yamlutil.Get(actionVal, "runOrder"); ok {
				if n, ok := ro.(int); ok && n > 0 {
					runOrder = n
				}
			}
			runOrderGroups[runOrder] = append(runOrderGroups[runOrder], actionID)

			job := parseAction(actionID, actionName, stageName, actionIdx, actionVal)
			if err := dag.AddJob(job); err != nil {
				return nil, err
			}
			allIDs = append(allIDs, actionID)
		}

		stageList = append(stageList, stageActions{allIDs: allIDs, runOrderGroups: runOrderGroups})
	}

	for _, stage := range stageList {
		var orders []int
		for o := range stage.runOrderGroups {
			orders = append(orders, o)
		}
		sort.Ints(orders)

		for _, order := range orders {
			currentIDs := stage.runOrderGroups[order]
			for _, lower := range orders {
				if lower >= order {
					continue
				}
				for _, lowerID := range stage.runOrderGroups[lower] {
					for _, currentID := range currentIDs {
						if err := dag.AddDependency(lowerID, currentID); err != nil {
							return nil, err
						}
					}
				}
			}
		}
	}

	for i := 1; i < len(stageList); i++ {
		prev := stageList[i-1]
		current := stageList[i]
		for _, prevID := range prev.allIDs {
			for _, currentID := range current.allIDs {
				if err := dag.AddDependency(prevID, currentID); err != nil {
					return nil, err
				}
			}
		}
	}

	return dag, nil
}

func parseAction(id, actionName, stageName string, actionIdx int, action any) pipedag.JobNode {
	actionType, _ := yamlutil.Get(action, "actionTypeId")
	category := "Unknown"
	if c, ok := yamlutil.GetStr(actionType, "category"); ok {
		category = c
	}
	provider := "Unknown"
	if p, ok := yamlutil.GetStr(actionType, "provider"); ok {
		provider = p
	}
	owner := "AWS"
	if o, ok := yamlutil.GetStr(actionType, "owner"); ok {
		owner = o
	}

	inputArtifacts := parseArtifacts(action, "inputArtifacts")
	outputArtifacts := parseArtifacts(action, "outputArtifacts")

	env := map[string]string{
		"__stage":        stageName,
		"__category":     category,
		"__provider":     provider,
		"__owner":        owner,
		"__action_index": strconv.Itoa(actionIdx + 1),
	}
	if len(inputArtifacts) > 0 {
		env["input_artifacts"] = strings.Join(inputArtifacts, ",")
	}
	if len(outputArtifacts) > 0 {
		env["output_artifacts"] = strings.Join(outputArtifacts, ",")
	}

	var caches []pipedag.CacheConfig
	if len(inputArtifacts) > 0 || len(outputArtifacts) > 0 {
		caches = append(caches, pipedag.CacheConfig{
			Path:       "artifacts",
			KeyPattern: fmt.Sprintf("%s:%s", stageName, actionName),
		})
	}

	inSummary := "none"
	if len(inputArtifacts) > 0 {
		inSummary = strings.Join(inputArtifacts, "|")
	}
	outSummary := "none"
	if len(outputArtifacts) > 0 {
		outSummary = strings.Join(outputArtifacts, "|")
	}

	dur := estimateActionDuration(category, provider)

	return pipedag.JobNode{
		ID:          id,
		DisplayName: actionName,
		RunsOn:      fmt.Sprintf("aws:%s:%s", strings.ToLower(category), provider),
		Steps: []pipedag.Step{{
			Name:                  fmt.Sprintf("%s %s", category, actionName),
			Uses:                  fmt.Sprintf("%s::%s", owner, provider),
			Run:                   fmt.Sprintf("%s action via %s (inputs: %s; outputs: %s)", category, provider, inSummary, outSummary),
			EstimatedDurationSecs: dur,
		}},
		Caches:                caches,
		Env:                   env,
		EstimatedDurationSecs: max(dur, 20),
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func parseArtifacts(action any, key string) []string {
	items, ok := yamlutil.GetSlice(action, key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if n, ok := yamlutil.GetStr(item, "name"); ok {
			out = append(out, n)
			continue
		}
		if s, ok := yamlutil.Str(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func estimateActionDuration(category, provider string) float64 {
	lowerProvider := strings.ToLower(provider)
	switch {
	case strings.Contains(lowerProvider, "codebuild"):
		return 300
	case strings.Contains(lowerProvider, "codedeploy"):
		return 180
	case strings.Contains(lowerProvider, "lambda"):
		return 80
	}

	switch strings.ToLower(category) {
	case "source":
		return 90
	case "build":
		return 280
	case "test":
		return 220
	case "deploy":
		return 180
	case "approval":
		return 60
	case "invoke":
		return 100
	default:
		return 120
	}
}
