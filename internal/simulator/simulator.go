// Package simulator runs a Monte Carlo longest-path simulation over a
// pipeline DAG (spec.md §4.4).
package simulator

import (
	"math"
	"sort"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// DefaultSeed is the fixed constant used when no seed is supplied, so
// repeat invocations with the same inputs produce identical outputs
// (spec.md §4.4).
const DefaultSeed = 42

// HistogramBucket is one equal-width bucket of the total-duration
// histogram.
type HistogramBucket struct {
	RangeStart float64
	RangeEnd   float64
	Count      int
}

// JobSimStats summarizes one job's behavior across all simulation runs.
type JobSimStats struct {
	JobID             string
	MeanSecs          float64
	P50Secs           float64
	P90Secs           float64
	OnCriticalPathFrac float64
}

// Result is the full output of a simulation run (spec.md §4.4 Outputs).
type Result struct {
	Runs        int
	MinSecs     float64
	MaxSecs     float64
	MeanSecs    float64
	StdDevSecs  float64
	P50Secs     float64
	P75Secs     float64
	P90Secs     float64
	P99Secs     float64
	Histogram   []HistogramBucket
	PerJob      []JobSimStats
}

// Params configures a simulation run.
type Params struct {
	Runs           int     // N, >= 1
	VarianceFactor float64 // v in [0, 1]
	Seed           uint64  // 0 means DefaultSeed
}

// Simulate runs Params.Runs Monte Carlo trials over dag and returns the
// aggregated result. A cyclic DAG returns an all-zero result with no
// histogram (spec.md §7 Simulator errors).
func Simulate(dag *pipedag.PipelineDag, params Params) Result {
	order, err := dag.TopoOrder()
	if err != nil {
		return emptyResult(params.Runs)
	}
	if len(order) == 0 {
		return emptyResult(params.Runs)
	}

	seed := params.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	rng := newXorshift64(seed)

	totals := make([]float64, params.Runs)
	jobCriticalCount := map[string]int{}
	jobFinishSamples := map[string][]float64{}

	for run := 0; run < params.Runs; run++ {
		finish := make(map[string]float64, len(order))
		pred := make(map[string]string, len(order))
		sampled := make(map[string]float64, len(order))

		for _, id := range order {
			job, _ := dag.GetJob(id)
			d := rng.sampleDuration(job.EstimatedDurationSecs, params.VarianceFactor)
			sampled[id] = d

			best := 0.0
			bestPred := ""
			have := false
			for _, p := range dag.Predecessors(id) {
				cand := finish[p]
				if !have || cand > best {
					best = cand
					bestPred = p
					have = true
				}
			}
			finish[id] = best + d
			if bestPred != "" {
				pred[id] = bestPred
			}
			jobFinishSamples[id] = append(jobFinishSamples[id], d)
		}

		// total = max finish across all nodes; find the node achieving it,
		// tie-break by id, then walk back its predecessor chain.
		total := -1.0
		endNode := ""
		ids := append([]string(nil), order...)
		sort.Strings(ids)
		for _, id := range ids {
			if finish[id] > total {
				total = finish[id]
				endNode = id
			}
		}
		totals[run] = total

		cur := endNode
		for cur != "" {
			jobCriticalCount[cur]++
			cur = pred[cur]
		}
	}

	sortedTotals := append([]float64(nil), totals...)
	sort.Float64s(sortedTotals)

	mean := meanOf(totals)
	stddev := stddevOf(totals, mean)

	var perJob []JobSimStats
	for _, id := range order {
		samples := append([]float64(nil), jobFinishSamples[id]...)
		sort.Float64s(samples)
		perJob = append(perJob, JobSimStats{
			JobID:              id,
			MeanSecs:           meanOf(jobFinishSamples[id]),
			P50Secs:            percentile(samples, 0.5),
			P90Secs:            percentile(samples, 0.9),
			OnCriticalPathFrac: float64(jobCriticalCount[id]) / float64(params.Runs),
		})
	}

	return Result{
		Runs:       params.Runs,
		MinSecs:    sortedTotals[0],
		MaxSecs:    sortedTotals[len(sortedTotals)-1],
		MeanSecs:   mean,
		StdDevSecs: stddev,
		P50Secs:    percentile(sortedTotals, 0.5),
		P75Secs:    percentile(sortedTotals, 0.75),
		P90Secs:    percentile(sortedTotals, 0.9),
		P99Secs:    percentile(sortedTotals, 0.99),
		Histogram:  buildHistogram(sortedTotals, 20),
		PerJob:     perJob,
	}
}

func emptyResult(runs int) Result {
	return Result{Runs: runs}
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// percentile uses nearest-rank on a pre-sorted ascending slice, matching
// simulator/mod.rs's `round(pct/100 * (n-1))` index (spec.md §4.4).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Round(p * float64(len(sorted)-1)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func buildHistogram(sorted []float64, buckets int) []HistogramBucket {
	if len(sorted) == 0 {
		return nil
	}
	min, max := sorted[0], sorted[len(sorted)-1]
	width := (max - min) / float64(buckets)
	if width == 0 {
		return []HistogramBucket{{RangeStart: min, RangeEnd: max, Count: len(sorted)}}
	}

	out := make([]HistogramBucket, buckets)
	for i := range out {
		out[i] = HistogramBucket{
			RangeStart: min + float64(i)*width,
			RangeEnd:   min + float64(i+1)*width,
		}
	}
	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		out[idx].Count++
	}
	return out
}
