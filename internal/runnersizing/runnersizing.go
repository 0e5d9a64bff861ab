// Package runnersizing infers compute/memory/IO pressure for each job
// and recommends a runner size class (SPEC_FULL.md §4.12, grounded on
// runner_sizing.rs).
package runnersizing

import (
	"strings"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// SizeClass is a coarse runner tier, ordered smallest to largest.
type SizeClass string

const (
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
	SizeXLarge SizeClass = "xlarge"
)

// JobRunnerRecommendation is one job's pressure profile and sizing
// recommendation.
type JobRunnerRecommendation struct {
	JobID           string
	CurrentRunner   string
	CurrentClass    SizeClass
	CPUPressure     int // 0-10
	MemoryPressure  int // 0-10
	IOPressure      int // 0-10
	RecommendedClass SizeClass
}

// ShouldResize reports whether the current and recommended classes
// differ.
func (r JobRunnerRecommendation) ShouldResize() bool {
	return r.CurrentClass != r.RecommendedClass
}

// Report is the full per-pipeline sizing profile.
type Report struct {
	Jobs []JobRunnerRecommendation
}

var (
	cpuMarkers    = []string{"build", "compile", "webpack", "cargo build", "go build", "make", "tsc"}
	memoryMarkers = []string{"integration", "e2e", "selenium", "docker-compose up", "jvm", "-xmx"}
	ioMarkers     = []string{"npm install", "npm ci", "pip install", "apt-get install", "docker pull", "upload-artifact", "download-artifact", "rsync"}
)

// Profile classifies every job's resource pressure and recommended
// runner size (grounded on runner_sizing.rs::profile_pipeline).
func Profile(dag *pipedag.PipelineDag) Report {
	var recs []JobRunnerRecommendation
	for _, job := range dag.Jobs() {
		text := jobText(job)
		cpu := scorePressure(text, cpuMarkers)
		mem := scorePressure(text, memoryMarkers)
		io := scorePressure(text, ioMarkers)

		if job.Matrix != nil && job.Matrix.TotalCombinations > 1 {
			cpu = clamp10(cpu + job.Matrix.TotalCombinations/2)
		}
		if job.EstimatedDurationSecs > 900 {
			cpu = clamp10(cpu + 2)
		}

		recs = append(recs, JobRunnerRecommendation{
			JobID:            job.ID,
			CurrentRunner:    job.RunsOn,
			CurrentClass:     classifyCurrent(job.RunsOn),
			CPUPressure:      cpu,
			MemoryPressure:   mem,
			IOPressure:       io,
			RecommendedClass: recommendClass(cpu, mem, io),
		})
	}
	return Report{Jobs: recs}
}

func jobText(job *pipedag.JobNode) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(job.ID + " " + job.DisplayName))
	for _, s := range job.Steps {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(s.Name + " " + s.Run + " " + s.Uses))
	}
	return b.String()
}

func scorePressure(text string, markers []string) int {
	score := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			score += 3
		}
	}
	return clamp10(score)
}

func clamp10(v int) int {
	if v > 10 {
		return 10
	}
	if v < 0 {
		return 0
	}
	return v
}

func classifyCurrent(runsOn string) SizeClass {
	lower := strings.ToLower(runsOn)
	switch {
	case strings.Contains(lower, "xlarge") || strings.Contains(lower, "4xlarge"):
		return SizeXLarge
	case strings.Contains(lower, "large"):
		return SizeLarge
	case strings.Contains(lower, "medium"):
		return SizeMedium
	default:
		return SizeSmall
	}
}

// recommendClass maps the max pressure dimension to a size class,
// mirroring runner_sizing.rs's thresholds.
func recommendClass(cpu, mem, io int) SizeClass {
	max := cpu
	if mem > max {
		max = mem
	}
	if io > max {
		max = io
	}
	switch {
	case max >= 8:
		return SizeXLarge
	case max >= 5:
		return SizeLarge
	case max >= 2:
		return SizeMedium
	default:
		return SizeSmall
	}
}
