// Package gitlab parses GitLab CI configuration files into the canonical
// pipeline DAG (spec.md §4.1, grounded on parser/gitlab.rs).
package gitlab

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/dagucloud/pipelinex/internal/pipedag"
	"github.com/dagucloud/pipelinex/internal/provider/duration"
	"github.com/dagucloud/pipelinex/internal/yamlutil"
)

const ProviderName = "gitlab_ci"

// reservedKeywords are GitLab top-level keys that are never job names.
var reservedKeywords = map[string]bool{
	"stages": true, "variables": true, "default": true, "include": true,
	"workflow": true, "image": true, "services": true, "before_script": true,
	"after_script": true, "cache": true, "pages": true, "types": true,
	".pre": true, ".post": true,
}

// defaultStages is used when the file declares no explicit `stages:` list.
var defaultStages = []string{"build", "test", "deploy"}

// Parse parses GitLab CI YAML bytes into a DAG.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	var root any
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, &pipedag.ParseError{Kind: pipedag.UnstructuredDocument, Cause: err}
	}

	dag := pipedag.New("GitLab CI Pipeline", sourceFile, ProviderName)
	dag.Env = yamlutil.GetStrMapOr(root, "variables")

	stages := yamlutil.GetStrSlice(root, "stages")
	if len(stages) == 0 {
		stages = defaultStages
	}
	stageIndex := make(map[string]int, len(stages))
	for i, s := range stages {
		stageIndex[s] = i
	}

	rootMap, _ := yamlutil.Map(root)
	jobNames := make([]string, 0, len(rootMap))
	for key := range rootMap {
		if reservedKeywords[key] || strings.HasPrefix(key, ".") {
			continue
		}
		if _, ok := yamlutil.Map(rootMap[key]); !ok {
			continue
		}
		jobNames = append(jobNames, key)
	}
	sort.Strings(jobNames)

	jobStage := map[string]string{}
	explicitNeeds := map[string][]string{}

	for _, name := range jobNames {
		spec := rootMap[name]
		id := name
		stage := "test"
		if s, ok := yamlutil.GetStr(spec, "stage"); ok {
			stage = s
		}
		jobStage[id] = stage

		steps := parseSteps(spec)
		env := yamlutil.GetStrMapOr(spec, "variables")
		matrix := parseParallelMatrix(spec)

		total := 0.0
		for _, s := range steps {
			total += s.EstimatedDurationSecs
		}
		if total <= 0 {
			total = pipedag.DurationFloorSecs
		}

		job := pipedag.JobNode{
			ID:                    id,
			DisplayName:           id,
			RunsOn:                "gitlab-runner",
			Steps:                 steps,
			Caches:                detectCaches(spec, steps),
			Matrix:                matrix,
			Env:                   env,
			EstimatedDurationSecs: total,
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}

		if needsRaw, ok := yamlutil.Get(spec, "needs"); ok {
			explicitNeeds[id] = parseNeeds(needsRaw)
		}
	}

	// Second pass: explicit needs override implicit stage fan-in entirely
	// (spec.md §4.1 stage-ordered providers rule).
	for _, id := range jobNames {
		if needs, ok := explicitNeeds[id]; ok {
			for _, parent := range needs {
				if _, ok := dag.GetJob(parent); !ok {
					return nil, &pipedag.ParseError{Kind: pipedag.UnresolvedDependency, From: parent, To: id}
				}
				if err := dag.AddDependency(parent, id); err != nil {
					return nil, err
				}
			}
			continue
		}

		stage := jobStage[id]
		idx, known := stageIndex[stage]
		if !known || idx == 0 {
			continue
		}
		prevStage := stages[idx-1]
		for _, otherID := range jobNames {
			if jobStage[otherID] == prevStage {
				if err := dag.AddDependency(otherID, id); err != nil {
					return nil, err
				}
			}
		}
	}

	return dag, nil
}

func parseNeeds(raw any) []string {
	if items, ok := yamlutil.Slice(raw); ok {
		var out []string
		for _, item := range items {
			if s, ok := yamlutil.Str(item); ok {
				out = append(out, s)
				continue
			}
			if job, ok := yamlutil.GetStr(item, "job"); ok {
				out = append(out, job)
			}
		}
		return out
	}
	return yamlutil.StrSlice(raw)
}

func parseSteps(spec any) []pipedag.Step {
	var cmds []string
	cmds = append(cmds, yamlutil.GetStrSlice(spec, "before_script")...)
	cmds = append(cmds, yamlutil.GetStrSlice(spec, "script")...)
	cmds = append(cmds, yamlutil.GetStrSlice(spec, "after_script")...)

	var steps []pipedag.Step
	for i, cmd := range cmds {
		steps = append(steps, pipedag.Step{
			Name:                  shortName(cmd, i),
			Run:                   cmd,
			EstimatedDurationSecs: duration.EstimateCommand(cmd),
		})
	}
	return steps
}

func shortName(cmd string, i int) string {
	if len(cmd) > 50 {
		return cmd[:50]
	}
	if cmd == "" {
		return "step"
	}
	return cmd
}

func detectCaches(spec any, steps []pipedag.Step) []pipedag.CacheConfig {
	if cacheMap, ok := yamlutil.GetMap(spec, "cache"); ok {
		path, _ := yamlutil.GetStr(cacheMap, "key")
		return []pipedag.CacheConfig{{Path: "gitlab-cache", KeyPattern: path}}
	}
	return nil
}

func parseParallelMatrix(spec any) *pipedag.MatrixStrategy {
	val, ok := yamlutil.Get(spec, "parallel")
	if !ok {
		return nil
	}
	if n, ok := val.(int); ok && n > 0 {
		values := make([]string, n)
		for i := range values {
			values[i] = strconv.Itoa(i + 1)
		}
		vars := map[string][]string{"instance": values}
		m := pipedag.NewMatrixStrategy([]string{"instance"}, vars)
		return &m
	}
	if matrixVal, ok := yamlutil.Get(val, "matrix"); ok {
		if items, ok := yamlutil.Slice(matrixVal); ok && len(items) > 0 {
			if m0, ok := yamlutil.Map(items[0]); ok {
				order := make([]string, 0, len(m0))
				for k := range m0 {
					order = append(order, k)
				}
				sort.Strings(order)
				vars := map[string][]string{}
				for _, k := range order {
					vars[k] = yamlutil.StrSlice(m0[k])
				}
				m := pipedag.NewMatrixStrategy(order, vars)
				return &m
			}
		}
	}
	return nil
}
