// Package dockerrewrite analyzes and rewrites Dockerfiles as a parallel
// subsystem to the pipeline rewrite engine, sharing its discipline: parse
// into a structured form, detect anti-patterns, emit a fix (spec.md §4.5
// "Dockerfile rewriter", grounded on optimizer/docker_opt.rs).
package dockerrewrite

import (
	"fmt"
	"strings"
)

// Severity is a tagged variant, not a class hierarchy (spec.md §9).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Instruction is one parsed Dockerfile directive, with line continuations
// already collapsed.
type Instruction struct {
	Name      string
	Arguments string
	Line      int
}

// Finding is a single Dockerfile anti-pattern observation.
type Finding struct {
	Severity    Severity
	Title       string
	Description string
	Line        int // 0 means no specific line
	Fix         string
}

// Analysis is the result of analyzing a Dockerfile.
type Analysis struct {
	Findings                []Finding
	Optimized               string
	EstimatedBuildTimeSecs  float64
	OptimizedBuildTimeSecs  float64
}

// Analyze tokenizes content into instructions, runs every anti-pattern
// check, and produces an optimized rewrite alongside build-time estimates
// before and after.
func Analyze(content string) Analysis {
	instructions := parse(content)

	var findings []Finding
	findings = append(findings, checkBaseImage(instructions)...)
	findings = append(findings, checkCopyBeforeInstall(instructions)...)
	findings = append(findings, checkMultiStage(instructions)...)
	findings = append(findings, checkUser(instructions)...)
	findings = append(findings, checkAptCleanup(instructions)...)
	findings = append(findings, checkCmdOptimization(instructions)...)
	findings = append(findings, checkDockerignore(instructions)...)
	findings = append(findings, checkRunConsolidation(instructions)...)

	return Analysis{
		Findings:               findings,
		Optimized:              generateOptimized(instructions, findings),
		EstimatedBuildTimeSecs: estimateBuildTime(instructions, false),
		OptimizedBuildTimeSecs: estimateBuildTime(instructions, true),
	}
}

// parse tokenizes a Dockerfile into (instruction, arguments, line) triples,
// collapsing `\`-continued lines and skipping comments and blank lines.
func parse(content string) []Instruction {
	var instructions []Instruction
	var continuation strings.Builder
	lineStart := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || trimmed == "" {
			continue
		}

		if continuation.Len() == 0 {
			lineStart = i + 1
		}

		if stripped, ok := strings.CutSuffix(trimmed, "\\"); ok {
			continuation.WriteString(stripped)
			continuation.WriteByte(' ')
			continue
		}

		var fullLine string
		if continuation.Len() == 0 {
			fullLine = trimmed
		} else {
			continuation.WriteString(trimmed)
			fullLine = continuation.String()
			continuation.Reset()
		}

		name, args, found := strings.Cut(fullLine, " ")
		if !found {
			if idx := strings.IndexFunc(fullLine, isSpace); idx >= 0 {
				name, args = fullLine[:idx], fullLine[idx+1:]
			} else {
				name, args = fullLine, ""
			}
		}

		instructions = append(instructions, Instruction{
			Name:      strings.ToUpper(name),
			Arguments: strings.TrimSpace(args),
			Line:      lineStart,
		})
	}

	return instructions
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}

func checkBaseImage(instructions []Instruction) []Finding {
	var findings []Finding
	for _, instr := range instructions {
		if instr.Name != "FROM" {
			continue
		}
		image := firstField(instr.Arguments)
		lower := strings.ToLower(image)

		isBaseEcosystem := strings.HasPrefix(lower, "node:") || strings.HasPrefix(lower, "python:") ||
			strings.HasPrefix(lower, "ruby:") || strings.HasPrefix(lower, "golang:")
		if !isBaseEcosystem || strings.Contains(lower, "slim") || strings.Contains(lower, "alpine") || strings.Contains(lower, "distroless") {
			continue
		}

		base, _, _ := strings.Cut(image, ":")
		findings = append(findings, Finding{
			Severity:    SeverityWarning,
			Title:       "Non-slim base image",
			Description: fmt.Sprintf("Using %q — the full image is much larger than needed. Slim variants are 3-5x smaller and build faster.", image),
			Line:        instr.Line,
			Fix:         fmt.Sprintf("Use %q or %q instead.", base+"-slim", base+"-alpine"),
		})
	}
	return findings
}

func checkCopyBeforeInstall(instructions []Instruction) []Finding {
	seenCopyAll := false
	copyAllLine := 0

	for _, instr := range instructions {
		if instr.Name == "COPY" && isCopyAll(instr.Arguments) {
			seenCopyAll = true
			copyAllLine = instr.Line
		}

		if seenCopyAll && instr.Name == "RUN" {
			cmd := strings.ToLower(instr.Arguments)
			if containsAny(cmd, "npm ci", "npm install", "pip install", "yarn install", "bundle install", "composer install", "go mod download", "cargo build") {
				return []Finding{{
					Severity:    SeverityCritical,
					Title:       "COPY . . before dependency install busts cache",
					Description: fmt.Sprintf("Line %d: COPY . . copies all files before installing dependencies. Any source code change invalidates the cache for dependency installation. Copy only lockfiles first, install deps, then copy the rest.", copyAllLine),
					Line:        copyAllLine,
					Fix:         "Copy only package.json/lockfile first, run install, then COPY . .",
				}}
			}
		}
	}
	return nil
}

func isCopyAll(args string) bool {
	return strings.HasPrefix(args, ". ") || args == "." || strings.HasPrefix(args, "./ ")
}

func checkMultiStage(instructions []Instruction) []Finding {
	fromCount := 0
	hasBuildStep := false
	for _, instr := range instructions {
		if instr.Name == "FROM" {
			fromCount++
		}
		if instr.Name == "RUN" {
			cmd := strings.ToLower(instr.Arguments)
			if containsAny(cmd, "npm run build", "yarn build", "cargo build", "go build", "mvn package", "gradle build") {
				hasBuildStep = true
			}
		}
	}
	if fromCount > 1 || !hasBuildStep {
		return nil
	}
	return []Finding{{
		Severity:    SeverityWarning,
		Title:       "No multi-stage build",
		Description: "This Dockerfile builds the application but uses a single stage. Multi-stage builds separate build dependencies from the runtime image, resulting in much smaller final images.",
		Fix:         "Use a multi-stage build: build in one stage, copy only artifacts to a slim runtime stage.",
	}}
}

func checkUser(instructions []Instruction) []Finding {
	for _, instr := range instructions {
		if instr.Name == "USER" {
			return nil
		}
	}
	return []Finding{{
		Severity:    SeverityWarning,
		Title:       "Container runs as root",
		Description: "No USER instruction found. The container will run as root, which is a security risk.",
		Fix:         "Add 'USER node' (or appropriate non-root user) before CMD.",
	}}
}

func checkAptCleanup(instructions []Instruction) []Finding {
	for _, instr := range instructions {
		if instr.Name != "RUN" {
			continue
		}
		cmd := instr.Arguments
		if containsAny(cmd, "apt-get install", "apt install") && !strings.Contains(cmd, "rm -rf /var/lib/apt") && !strings.Contains(cmd, "apt-get clean") {
			return []Finding{{
				Severity:    SeverityInfo,
				Title:       "apt-get install without cleanup",
				Description: "Package cache is not cleaned after apt-get install, bloating the image layer.",
				Line:        instr.Line,
				Fix:         "Add '&& rm -rf /var/lib/apt/lists/*' after apt-get install.",
			}}
		}
	}
	return nil
}

func checkCmdOptimization(instructions []Instruction) []Finding {
	var findings []Finding
	for _, instr := range instructions {
		if instr.Name != "CMD" && instr.Name != "ENTRYPOINT" {
			continue
		}
		args := strings.ToLower(instr.Arguments)
		if strings.Contains(args, "npm start") || strings.Contains(args, "npm run start") ||
			(strings.Contains(args, "npm") && strings.Contains(args, "start")) {
			findings = append(findings, Finding{
				Severity:    SeverityInfo,
				Title:       "Using npm to start the application",
				Description: "CMD uses npm start, which spawns an extra process and doesn't forward signals properly. Use 'node' directly for faster startup and proper graceful shutdown.",
				Line:        instr.Line,
				Fix:         `Use CMD ["node", "dist/index.js"] instead of CMD ["npm", "start"].`,
			})
		}
	}
	return findings
}

func checkDockerignore(instructions []Instruction) []Finding {
	for _, instr := range instructions {
		if instr.Name == "COPY" && (strings.HasPrefix(instr.Arguments, ". ") || strings.HasPrefix(instr.Arguments, "./ ")) {
			return []Finding{{
				Severity:    SeverityInfo,
				Title:       "Ensure .dockerignore exists",
				Description: "COPY . . is used — make sure .dockerignore excludes node_modules, .git, and other unnecessary files to speed up the build context transfer.",
				Fix:         "Create a .dockerignore with: node_modules, .git, *.md, .env, dist, coverage",
			}}
		}
	}
	return nil
}

func checkRunConsolidation(instructions []Instruction) []Finding {
	var findings []Finding
	consecutiveRuns := 0
	firstRunLine := 0

	flush := func(endLine int) {
		if consecutiveRuns > 2 {
			findings = append(findings, Finding{
				Severity:    SeverityInfo,
				Title:       fmt.Sprintf("%d consecutive RUN instructions", consecutiveRuns),
				Description: fmt.Sprintf("Lines %d-%d: Multiple RUN instructions create separate layers. Combining them with '&&' reduces image size.", firstRunLine, endLine),
				Line:        firstRunLine,
				Fix:         `Combine RUN instructions using '&&' and line continuations '\'.`,
			})
		}
		consecutiveRuns = 0
	}

	for _, instr := range instructions {
		if instr.Name == "RUN" {
			if consecutiveRuns == 0 {
				firstRunLine = instr.Line
			}
			consecutiveRuns++
		} else {
			flush(instr.Line - 1)
		}
	}
	flush(firstRunLine + consecutiveRuns - 1)

	return findings
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasFindingTitled(findings []Finding, substr string) bool {
	for _, f := range findings {
		if strings.Contains(f.Title, substr) {
			return true
		}
	}
	return false
}

func estimateBuildTime(instructions []Instruction, optimized bool) float64 {
	total := 0.0
	for _, instr := range instructions {
		switch instr.Name {
		case "RUN":
			cmd := strings.ToLower(instr.Arguments)
			switch {
			case containsAny(cmd, "npm ci", "npm install"):
				total += pick(optimized, 15, 180)
			case strings.Contains(cmd, "npm run build"):
				total += pick(optimized, 60, 240)
			case strings.Contains(cmd, "pip install"):
				total += pick(optimized, 10, 120)
			case strings.Contains(cmd, "cargo build"):
				total += pick(optimized, 60, 300)
			case strings.Contains(cmd, "go build"):
				total += pick(optimized, 30, 120)
			case containsAny(cmd, "apt-get", "apk add"):
				total += 30
			default:
				total += 10
			}
		case "COPY":
			total += pick(optimized, 2, 5)
		}
	}
	return total
}

func pick(optimized bool, ifTrue, ifFalse float64) float64 {
	if optimized {
		return ifTrue
	}
	return ifFalse
}
