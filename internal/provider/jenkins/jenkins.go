// Package jenkins parses Jenkins declarative pipelines (Jenkinsfile) into
// the canonical pipeline DAG (spec.md §4.1, grounded on parser/jenkins.rs).
//
// Jenkinsfiles are Groovy, not YAML: this parser scans for the
// `stage('name') { ... }` and `steps { ... }` block shapes with regular
// expressions and brace-counting rather than a structured decoder, exactly
// as the original implementation does.
package jenkins

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const ProviderName = "jenkins"

var (
	displayNameRe   = regexp.MustCompile(`displayName\s*[:=]\s*['"]([^'"]+)['"]`)
	pipelineNameRe  = regexp.MustCompile(`PIPELINE_NAME\s*=\s*['"]([^'"]+)['"]`)
	stageRe         = regexp.MustCompile(`stage\s*\(\s*['"]([^'"]+)['"]\s*\)\s*\{`)
	commandRe       = regexp.MustCompile(`(?:sh|bat|powershell|script)\s+['"]([^'"]+)['"]`)
	dockerAgentRe   = regexp.MustCompile(`agent\s*\{\s*docker\s*['"]([^'"]+)['"]`)
	labelAgentRe    = regexp.MustCompile(`agent\s*\{\s*label\s*['"]([^'"]+)['"]`)
	whenRe          = regexp.MustCompile(`when\s*\{([^}]+)\}`)
	envVarRe        = regexp.MustCompile(`(\w+)\s*=\s*['"]([^'"]+)['"]`)
	parallelRe      = regexp.MustCompile(`parallel\s*\{`)
	parallelStageRe = regexp.MustCompile(`(\w+)\s*:\s*\{`)
)

type stage struct {
	name          string
	steps         []pipedag.Step
	agent         string
	whenCondition string
	env           map[string]string
	duration      float64
	caches        []pipedag.CacheConfig
}

// Parse parses a Jenkinsfile's bytes into a DAG. Stages run sequentially by
// default (spec.md §4.1 "sequential-by-default"); stages named inside a
// `parallel { ... }` block have the sequential edge to their immediate
// predecessor removed so they run as siblings.
func Parse(content []byte, sourceFile string) (*pipedag.PipelineDag, error) {
	text := string(content)

	dag := pipedag.New("Jenkins Pipeline", sourceFile, ProviderName)
	if name := extractPipelineName(text); name != "" {
		dag.Name = name
	}

	stages, err := extractStages(text)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, &pipedag.ParseError{Kind: pipedag.MissingRequired, Path: "stage(...)"}
	}

	var prevStage string
	for _, s := range stages {
		job := pipedag.JobNode{
			ID:                    s.name,
			DisplayName:           s.name,
			RunsOn:                s.agent,
			Steps:                 s.steps,
			Caches:                s.caches,
			Condition:             s.whenCondition,
			Env:                   s.env,
			EstimatedDurationSecs: s.duration,
		}
		if err := dag.AddJob(job); err != nil {
			return nil, err
		}
		if prevStage != "" {
			if err := dag.AddDependency(prevStage, s.name); err != nil {
				return nil, err
			}
		}
		prevStage = s.name
	}

	handleParallelStages(dag, text)

	return dag, nil
}

func extractPipelineName(content string) string {
	if m := displayNameRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := pipelineNameRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return ""
}

func extractStages(content string) ([]stage, error) {
	var stages []stage

	matches := stageRe.FindAllStringSubmatchIndex(content, -1)
	for _, m := range matches {
		name := content[m[2]:m[3]]
		blockEnd := m[1]

		block, ok := extractBlockAfter(content, blockEnd)
		if !ok {
			continue
		}

		steps := extractSteps(block)
		s := stage{
			name:          name,
			steps:         steps,
			agent:         extractAgent(block),
			whenCondition: extractWhenCondition(block),
			env:           extractEnvironment(block),
			duration:      estimateStageDuration(name, steps),
			caches:        detectCaches(steps),
		}
		stages = append(stages, s)
	}

	return stages, nil
}

// extractBlockAfter returns the text between the position just after an
// opening `{` (already consumed by the caller's match) and its matching
// closing `}`, tracking nested brace depth.
func extractBlockAfter(content string, startPos int) (string, bool) {
	rest := content[startPos:]
	depth := 1
	for i, ch := range rest {
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[:i], true
			}
		}
	}
	return "", false
}

func extractSteps(block string) []pipedag.Step {
	idx := strings.Index(block, "steps")
	if idx == -1 {
		return nil
	}
	stepsBlock, ok := extractBlockAfter(block, idx+len("steps"))
	if !ok {
		return nil
	}

	var steps []pipedag.Step
	for i, cmd := range extractCommands(stepsBlock) {
		steps = append(steps, pipedag.Step{Name: fmt.Sprintf("Step %d", i+1), Run: cmd})
	}
	return steps
}

func extractCommands(stepsBlock string) []string {
	var commands []string
	for _, m := range commandRe.FindAllStringSubmatch(stepsBlock, -1) {
		commands = append(commands, m[1])
	}
	if strings.Contains(stepsBlock, "docker") {
		commands = append(commands, "docker build/run")
	}
	return commands
}

func extractAgent(block string) string {
	if m := dockerAgentRe.FindStringSubmatch(block); m != nil {
		return "docker:" + m[1]
	}
	if m := labelAgentRe.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	return "any"
}

func extractWhenCondition(block string) string {
	if m := whenRe.FindStringSubmatch(block); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractEnvironment(block string) map[string]string {
	env := map[string]string{}
	idx := strings.Index(block, "environment")
	if idx == -1 {
		return env
	}
	envBlock, ok := extractBlockAfter(block, idx+len("environment"))
	if !ok {
		return env
	}
	for _, m := range envVarRe.FindAllStringSubmatch(envBlock, -1) {
		env[m[1]] = m[2]
	}
	return env
}

func estimateStageDuration(name string, steps []pipedag.Step) float64 {
	lower := strings.ToLower(name)
	base := 120.0
	switch {
	case strings.Contains(lower, "build"), strings.Contains(lower, "compile"):
		base = 240
	case strings.Contains(lower, "test"):
		base = 300
	case strings.Contains(lower, "deploy"):
		base = 180
	case strings.Contains(lower, "lint"), strings.Contains(lower, "check"):
		base = 60
	}
	return base + float64(len(steps))*10
}

func detectCaches(steps []pipedag.Step) []pipedag.CacheConfig {
	var caches []pipedag.CacheConfig
	for _, s := range steps {
		if s.Run == "" {
			continue
		}
		lower := strings.ToLower(s.Run)
		switch {
		case strings.Contains(lower, "mvn"), strings.Contains(lower, "maven"):
			caches = append(caches, pipedag.CacheConfig{Path: ".m2/repository", KeyPattern: "maven-${{ hashFiles('**/pom.xml') }}", RestoreKeys: []string{"maven-"}})
		case strings.Contains(lower, "gradle"):
			caches = append(caches, pipedag.CacheConfig{Path: "~/.gradle/caches", KeyPattern: "gradle-${{ hashFiles('**/*.gradle*') }}", RestoreKeys: []string{"gradle-"}})
		case strings.Contains(lower, "npm"), strings.Contains(lower, "yarn"):
			caches = append(caches, pipedag.CacheConfig{Path: "node_modules", KeyPattern: "node-${{ hashFiles('**/package-lock.json') }}", RestoreKeys: []string{"node-"}})
		case strings.Contains(lower, "pip"):
			caches = append(caches, pipedag.CacheConfig{Path: "~/.cache/pip", KeyPattern: "pip-${{ hashFiles('**/requirements.txt') }}", RestoreKeys: []string{"pip-"}})
		}
	}
	return caches
}

// extractParallelStageNames finds the sibling names inside a parallel block.
// Declarative pipelines nest `stage('Name') { ... }` calls there; scripted
// pipelines use a Groovy closure map (`Name: { ... }`) instead. Try the
// declarative form first since it is what `stageRe` already wired into jobs.
func extractParallelStageNames(block string) []string {
	if matches := stageRe.FindAllStringSubmatch(block, -1); len(matches) > 0 {
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m[1])
		}
		return names
	}
	var names []string
	for _, m := range parallelStageRe.FindAllStringSubmatch(block, -1) {
		names = append(names, m[1])
	}
	return names
}

// handleParallelStages removes the sequential predecessor edge between
// stages declared as siblings inside a `parallel { ... }` block, mutating
// Needs in place (the stages were already wired sequentially by the main
// parse loop, matching the original's post-hoc correction pass).
func handleParallelStages(dag *pipedag.PipelineDag, content string) {
	for _, pm := range parallelRe.FindAllStringIndex(content, -1) {
		block, ok := extractBlockAfter(content, pm[1])
		if !ok {
			continue
		}

		parallelStages := extractParallelStageNames(block)

		for i := 1; i < len(parallelStages); i++ {
			current := parallelStages[i]
			prev := parallelStages[i-1]
			job, ok := dag.GetJob(current)
			if !ok {
				continue
			}
			var kept []string
			for _, n := range job.Needs {
				if n != prev {
					kept = append(kept, n)
				}
			}
			job.Needs = kept
		}
	}
}
