// Package graphalg implements the pure graph algorithms analysis passes
// and the simulator build on: topological order, critical path, and max
// parallelism (spec.md §4.2). All three take an immutable DAG and return
// values; none mutates their input.
package graphalg

import (
	"sort"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// CriticalPath is the longest-duration chain of dependent jobs.
type CriticalPath struct {
	JobIDs      []string
	DurationSecs float64
}

// FindCriticalPath performs forward relaxation in topological order,
// storing dist[n] = max(dist[p] + dur[p]) over predecessors p, then
// backtracks from the leaf maximizing dist[n] + dur[n] (spec.md §4.2 item
// 2). Ties are broken by ascending job id.
func FindCriticalPath(dag *pipedag.PipelineDag) (CriticalPath, error) {
	order, err := dag.TopoOrder()
	if err != nil {
		return CriticalPath{}, err
	}
	if len(order) == 0 {
		return CriticalPath{}, nil
	}

	dist := make(map[string]float64, len(order))
	pred := make(map[string]string, len(order))

	for _, id := range order {
		preds := append([]string(nil), dag.Predecessors(id)...)
		sort.Strings(preds)

		best := 0.0
		bestPred := ""
		haveCandidate := false
		for _, p := range preds {
			cand := dist[p] + predDuration(dag, p)
			if !haveCandidate || cand > best {
				best = cand
				bestPred = p
				haveCandidate = true
			}
		}
		dist[id] = best
		if bestPred != "" {
			pred[id] = bestPred
		}
	}

	// pick the end node maximizing dist[n] + dur[n], tie-break by id.
	end := ""
	endTotal := -1.0
	ids := append([]string(nil), order...)
	sort.Strings(ids)
	for _, id := range ids {
		job, _ := dag.GetJob(id)
		total := dist[id] + job.EstimatedDurationSecs
		if total > endTotal {
			endTotal = total
			end = id
		}
	}

	var chain []string
	cur := end
	for cur != "" {
		chain = append([]string{cur}, chain...)
		cur = pred[cur]
	}

	return CriticalPath{JobIDs: chain, DurationSecs: endTotal}, nil
}

func predDuration(dag *pipedag.PipelineDag, id string) float64 {
	if id == "" {
		return 0
	}
	job, ok := dag.GetJob(id)
	if !ok {
		return 0
	}
	return job.EstimatedDurationSecs
}

// MaxParallelism returns the size of the largest BFS-depth class
// (spec.md §4.2 item 3); delegates to the DAG's own level computation.
func MaxParallelism(dag *pipedag.PipelineDag) (int, error) {
	return dag.MaxParallelism()
}

// TotalDuration sums every job's estimated duration.
func TotalDuration(dag *pipedag.PipelineDag) float64 {
	total := 0.0
	for _, j := range dag.Jobs() {
		total += j.EstimatedDurationSecs
	}
	return total
}
