package dockerrewrite

import (
	"fmt"
	"strings"
)

// generateOptimized picks an ecosystem-specific canonical multi-stage
// template when the detected ecosystem and findings warrant a rewrite,
// else falls back to an annotated, line-patched copy of the original.
func generateOptimized(instructions []Instruction, findings []Finding) string {
	hasCopyBeforeInstall := hasFindingTitled(findings, "COPY . . before dependency install")
	hasNonSlim := hasFindingTitled(findings, "Non-slim base image")
	hasNoMultistage := hasFindingTitled(findings, "No multi-stage build")
	hasNoUser := hasFindingTitled(findings, "runs as root")

	isNode := hasEcosystemHint(instructions, "FROM", "node") || hasEcosystemHint(instructions, "RUN", "npm")
	isPython := hasEcosystemHint(instructions, "FROM", "python") || hasEcosystemHint(instructions, "RUN", "pip")
	isGo := hasEcosystemHint(instructions, "FROM", "golang") || hasEcosystemHint(instructions, "RUN", "go build")

	switch {
	case isNode && (hasCopyBeforeInstall || hasNoMultistage):
		return generateNodeDockerfile(instructions)
	case isPython && (hasCopyBeforeInstall || hasNoMultistage):
		return generatePythonDockerfile(instructions)
	case isGo && hasNoMultistage:
		return generateGoDockerfile()
	}

	var lines []string
	lines = append(lines, "# Optimized by PipelineX")
	for _, instr := range instructions {
		if instr.Name == "FROM" && hasNonSlim {
			if base, tag, ok := strings.Cut(instr.Arguments, ":"); ok && !strings.Contains(tag, "slim") && !strings.Contains(tag, "alpine") {
				lines = append(lines, fmt.Sprintf("FROM %s-slim:%s", base, tag))
				continue
			}
		}
		lines = append(lines, strings.TrimSpace(instr.Name+" "+instr.Arguments))
	}
	if hasNoUser && isNode {
		lines = append(lines, "USER node")
	}
	return strings.Join(lines, "\n")
}

func hasEcosystemHint(instructions []Instruction, name, needle string) bool {
	for _, instr := range instructions {
		if instr.Name == name && strings.Contains(strings.ToLower(instr.Arguments), needle) {
			return true
		}
	}
	return false
}

func findFirst(instructions []Instruction, name string) (Instruction, bool) {
	for _, instr := range instructions {
		if instr.Name == name {
			return instr, true
		}
	}
	return Instruction{}, false
}

func generateNodeDockerfile(instructions []Instruction) string {
	baseImage := "node:20-slim"
	if from, ok := findFirst(instructions, "FROM"); ok {
		img := firstField(from.Arguments)
		if img == "" {
			img = "node:20"
		}
		if strings.Contains(img, "slim") || strings.Contains(img, "alpine") {
			baseImage = img
		} else {
			baseImage = img + "-slim"
		}
	}

	workdir := "/app"
	if wd, ok := findFirst(instructions, "WORKDIR"); ok {
		workdir = wd.Arguments
	}

	expose := "EXPOSE 3000"
	if ex, ok := findFirst(instructions, "EXPOSE"); ok {
		expose = "EXPOSE " + ex.Arguments
	}

	return fmt.Sprintf(`# Optimized by PipelineX — multi-stage Node.js build
# Estimated build time: ~45s (cached), ~2:30 (cold)

# Stage 1: Install dependencies
FROM %[1]s AS deps
WORKDIR %[2]s
COPY package.json package-lock.json* yarn.lock* pnpm-lock.yaml* ./
RUN npm ci

# Stage 2: Build application
FROM deps AS build
COPY . .
RUN npm run build
RUN npm prune --production

# Stage 3: Production runtime
FROM %[1]s AS runtime
WORKDIR %[2]s
COPY --from=build %[2]s/node_modules ./node_modules
COPY --from=build %[2]s/dist ./dist
COPY --from=build %[2]s/package.json .
%[3]s
USER node
CMD ["node", "dist/index.js"]
`, baseImage, workdir, expose)
}

func generatePythonDockerfile(instructions []Instruction) string {
	baseImage := "python:3.12-slim"
	if from, ok := findFirst(instructions, "FROM"); ok {
		img := firstField(from.Arguments)
		if img == "" {
			img = "python:3.12"
		}
		if strings.Contains(img, "slim") || strings.Contains(img, "alpine") {
			baseImage = img
		} else {
			baseImage = img + "-slim"
		}
	}

	return fmt.Sprintf(`# Optimized by PipelineX — Python multi-stage build

# Stage 1: Install dependencies
FROM %[1]s AS deps
WORKDIR /app
RUN pip install --upgrade pip
COPY requirements*.txt ./
RUN pip install --no-cache-dir -r requirements.txt

# Stage 2: Runtime
FROM %[1]s AS runtime
WORKDIR /app
COPY --from=deps /usr/local/lib/python3.12/site-packages /usr/local/lib/python3.12/site-packages
COPY --from=deps /usr/local/bin /usr/local/bin
COPY . .
RUN useradd -m appuser
USER appuser
EXPOSE 8000
CMD ["python", "-m", "gunicorn", "app:app", "--bind", "0.0.0.0:8000"]
`, baseImage)
}

func generateGoDockerfile() string {
	return `# Optimized by PipelineX — Go multi-stage build

# Stage 1: Build
FROM golang:1.22-alpine AS build
WORKDIR /app
COPY go.mod go.sum ./
RUN go mod download
COPY . .
RUN CGO_ENABLED=0 GOOS=linux go build -ldflags="-s -w" -o /app/server .

# Stage 2: Runtime (distroless for minimal attack surface)
FROM gcr.io/distroless/static-debian12
COPY --from=build /app/server /server
EXPOSE 8080
USER nonroot
ENTRYPOINT ["/server"]
`
}
