// Package pipedag implements the provider-agnostic pipeline DAG that every
// provider parser normalizes into and every analysis pass reads.
package pipedag

import (
	"fmt"
	"sort"
	"strings"
)

// EdgeKind distinguishes a plain ordering constraint from one that also
// represents a data hand-off between jobs.
type EdgeKind string

const (
	EdgeDependency EdgeKind = "dependency"
	EdgeArtifact   EdgeKind = "artifact"
)

// Edge connects two jobs by id.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// Trigger describes a single event that can start the pipeline.
type Trigger struct {
	Event        string
	Branches     []string
	BranchesExc  []string
	Paths        []string
	PathsIgnore  []string
}

// HasPathFilter reports whether this trigger carries any include or
// exclude path pattern.
func (t Trigger) HasPathFilter() bool {
	return len(t.Paths) > 0 || len(t.PathsIgnore) > 0
}

// CacheConfig describes a detected or explicit cache-providing step.
type CacheConfig struct {
	Path         string
	KeyPattern   string
	RestoreKeys  []string
}

// MatrixStrategy is a Cartesian-product job expansion.
type MatrixStrategy struct {
	Variables         map[string][]string
	VariableOrder     []string // preserves parse order for deterministic output
	TotalCombinations int
}

// NewMatrixStrategy computes TotalCombinations as the product of each
// variable's value-list length, per spec.md §3.
func NewMatrixStrategy(order []string, vars map[string][]string) MatrixStrategy {
	total := 1
	for _, name := range order {
		n := len(vars[name])
		if n == 0 {
			n = 1
		}
		total *= n
	}
	return MatrixStrategy{Variables: vars, VariableOrder: order, TotalCombinations: total}
}

// Step is an ordered sub-unit of a job.
type Step struct {
	Name                  string
	Uses                  string // third-party action reference, if any
	Run                   string // shell/script body, if any
	EstimatedDurationSecs float64
	FetchDepthSet         bool // true if a shallow-clone depth hint is already present
	HasCacheHint          bool // true if this step is itself a cache action/block
	HasDockerCacheFrom    bool // true if a docker build step already specifies --cache-from or a cache action
}

// IsCheckout reports whether this step checks out source code, across
// providers' differing conventions (an action reference or a git command).
func (s Step) IsCheckout() bool {
	lower := strings.ToLower(s.Uses + " " + s.Run)
	return strings.Contains(lower, "checkout") || strings.Contains(lower, "git clone")
}

// IsDockerBuild reports whether this step builds a container image.
func (s Step) IsDockerBuild() bool {
	lower := strings.ToLower(s.Run)
	return strings.Contains(lower, "docker build") || strings.Contains(lower, "docker-compose build")
}

// JobNode is the canonical unit of concurrent execution.
type JobNode struct {
	ID                    string
	DisplayName           string
	RunsOn                string
	Needs                 []string
	Steps                 []Step
	Caches                []CacheConfig
	Matrix                *MatrixStrategy
	Condition             string
	Env                   map[string]string
	PathsFilter           []string
	PathsIgnore           []string
	EstimatedDurationSecs float64
}

// DurationFloorSecs is the provider-appropriate floor applied to jobs with
// no step estimates (spec.md §3 invariant 4).
const DurationFloorSecs = 10.0

// PipelineDag is the canonical, provider-agnostic representation every
// parser produces and every analysis pass consumes.
type PipelineDag struct {
	Name       string
	SourceFile string
	Provider   string
	Triggers   []Trigger
	Env        map[string]string
	// HasConcurrencyControl records whether the source config already
	// declares a workflow-level cancel-in-progress concurrency group
	// (spec.md §4.3 pass 9, a GitHub-Actions-specific construct).
	HasConcurrencyControl bool

	nodes   []*JobNode
	index   map[string]int
	outEdge map[string][]Edge
	inEdge  map[string][]Edge
}

// New creates an empty DAG.
func New(name, sourceFile, provider string) *PipelineDag {
	return &PipelineDag{
		Name:       name,
		SourceFile: sourceFile,
		Provider:   provider,
		Env:        map[string]string{},
		index:      map[string]int{},
		outEdge:    map[string][]Edge{},
		inEdge:     map[string][]Edge{},
	}
}

// AddJob inserts a job, rejecting duplicate ids (spec.md §3 invariant 3).
func (d *PipelineDag) AddJob(job JobNode) error {
	if _, exists := d.index[job.ID]; exists {
		return &ParseError{Kind: DuplicateJobID, JobID: job.ID}
	}
	if job.EstimatedDurationSecs <= 0 {
		job.EstimatedDurationSecs = DurationFloorSecs
	}
	d.index[job.ID] = len(d.nodes)
	jobCopy := job
	d.nodes = append(d.nodes, &jobCopy)
	return nil
}

// AddDependency records that `from` must finish before `to`. Both ids must
// already exist in the DAG.
func (d *PipelineDag) AddDependency(from, to string) error {
	return d.addEdge(from, to, EdgeDependency)
}

// AddArtifactEdge records a dependency edge that also represents a data
// hand-off between jobs.
func (d *PipelineDag) AddArtifactEdge(from, to string) error {
	return d.addEdge(from, to, EdgeArtifact)
}

func (d *PipelineDag) addEdge(from, to string, kind EdgeKind) error {
	if _, ok := d.index[from]; !ok {
		return &ParseError{Kind: UnresolvedDependency, From: from, To: to}
	}
	if _, ok := d.index[to]; !ok {
		return &ParseError{Kind: UnresolvedDependency, From: from, To: to}
	}
	for _, e := range d.outEdge[from] {
		if e.To == to {
			return nil // edge already present; idempotent
		}
	}
	edge := Edge{From: from, To: to, Kind: kind}
	d.outEdge[from] = append(d.outEdge[from], edge)
	d.inEdge[to] = append(d.inEdge[to], edge)

	toJob := d.nodes[d.index[to]]
	for _, n := range toJob.Needs {
		if n == from {
			return nil
		}
	}
	toJob.Needs = append(toJob.Needs, from)
	return nil
}

// RemoveDependency deletes the dependency edge from->to, if present, from
// both edge indexes and from the downstream job's Needs list. A no-op if
// the edge doesn't exist. Intended for use on a Clone(), not the live
// analysis DAG (spec.md §9 "mutate a fresh tree" discipline).
func (d *PipelineDag) RemoveDependency(from, to string) {
	d.outEdge[from] = filterEdges(d.outEdge[from], to, true)
	d.inEdge[to] = filterEdges(d.inEdge[to], from, false)

	toJob, ok := d.GetJob(to)
	if !ok {
		return
	}
	needs := toJob.Needs[:0:0]
	for _, n := range toJob.Needs {
		if n != from {
			needs = append(needs, n)
		}
	}
	toJob.Needs = needs
}

func filterEdges(edges []Edge, other string, matchTo bool) []Edge {
	out := edges[:0:0]
	for _, e := range edges {
		if matchTo && e.To == other {
			continue
		}
		if !matchTo && e.From == other {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RemoveJob deletes a job and reconnects its predecessors directly to its
// successors (so downstream jobs aren't orphaned), preserving dependency
// edges but dropping any artifact-edge semantics the removed job carried.
// Intended for use on a Clone(), not the live analysis DAG.
func (d *PipelineDag) RemoveJob(id string) error {
	idx, ok := d.index[id]
	if !ok {
		return &ParseError{Kind: UnresolvedDependency, From: id}
	}

	preds := d.Predecessors(id)
	succs := d.Successors(id)

	for _, p := range preds {
		d.outEdge[p] = filterEdges(d.outEdge[p], id, true)
	}
	for _, s := range succs {
		d.inEdge[s] = filterEdges(d.inEdge[s], id, false)
		job, _ := d.GetJob(s)
		needs := job.Needs[:0:0]
		for _, n := range job.Needs {
			if n != id {
				needs = append(needs, n)
			}
		}
		job.Needs = needs
	}
	for _, p := range preds {
		for _, s := range succs {
			if err := d.AddDependency(p, s); err != nil {
				return err
			}
		}
	}

	delete(d.outEdge, id)
	delete(d.inEdge, id)
	delete(d.index, id)
	d.nodes = append(d.nodes[:idx], d.nodes[idx+1:]...)
	for i := idx; i < len(d.nodes); i++ {
		d.index[d.nodes[i].ID] = i
	}
	return nil
}

// GetJob returns the job with the given id, if present.
func (d *PipelineDag) GetJob(id string) (*JobNode, bool) {
	idx, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.nodes[idx], true
}

// Jobs returns all jobs in insertion order.
func (d *PipelineDag) Jobs() []*JobNode {
	return d.nodes
}

// JobIDs returns all job ids in ascending (stable) order.
func (d *PipelineDag) JobIDs() []string {
	ids := make([]string, 0, len(d.nodes))
	for _, n := range d.nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}

// JobCount returns the number of jobs.
func (d *PipelineDag) JobCount() int { return len(d.nodes) }

// StepCount returns the total number of steps across all jobs.
func (d *PipelineDag) StepCount() int {
	total := 0
	for _, n := range d.nodes {
		total += len(n.Steps)
	}
	return total
}

// Predecessors returns the ids of jobs that must finish before id.
func (d *PipelineDag) Predecessors(id string) []string {
	var out []string
	for _, e := range d.inEdge[id] {
		out = append(out, e.From)
	}
	sort.Strings(out)
	return out
}

// Successors returns the ids of jobs that depend on id.
func (d *PipelineDag) Successors(id string) []string {
	var out []string
	for _, e := range d.outEdge[id] {
		out = append(out, e.To)
	}
	sort.Strings(out)
	return out
}

// RootJobs returns jobs with no incoming edges, in ascending id order.
func (d *PipelineDag) RootJobs() []string {
	var out []string
	for _, n := range d.nodes {
		if len(d.inEdge[n.ID]) == 0 {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}

// LeafJobs returns jobs with no outgoing edges, in ascending id order.
func (d *PipelineDag) LeafJobs() []string {
	var out []string
	for _, n := range d.nodes {
		if len(d.outEdge[n.ID]) == 0 {
			out = append(out, n.ID)
		}
	}
	sort.Strings(out)
	return out
}

// ComputeLevels assigns each job its BFS depth from the roots (roots = 0,
// otherwise 1 + max predecessor depth). Returns an error if the graph
// contains a cycle.
func (d *PipelineDag) ComputeLevels() (map[string]int, error) {
	order, err := d.TopoOrder()
	if err != nil {
		return nil, err
	}
	levels := make(map[string]int, len(d.nodes))
	for _, id := range order {
		maxPred := -1
		for _, p := range d.Predecessors(id) {
			if levels[p] > maxPred {
				maxPred = levels[p]
			}
		}
		levels[id] = maxPred + 1
	}
	return levels, nil
}

// MaxParallelism returns the size of the largest depth class (spec.md §3
// glossary, §4.2 item 3). Empty DAGs return 0.
func (d *PipelineDag) MaxParallelism() (int, error) {
	if len(d.nodes) == 0 {
		return 0, nil
	}
	levels, err := d.ComputeLevels()
	if err != nil {
		return 0, err
	}
	counts := map[int]int{}
	max := 0
	for _, lvl := range levels {
		counts[lvl]++
		if counts[lvl] > max {
			max = counts[lvl]
		}
	}
	return max, nil
}

// TopoOrder runs Kahn's algorithm, breaking ties by ascending id so the
// order is stable across runs (spec.md §4.2 item 1).
func (d *PipelineDag) TopoOrder() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for _, n := range d.nodes {
		inDegree[n.ID] = len(d.inEdge[n.ID])
	}

	ready := make([]string, 0)
	for _, n := range d.nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var newlyReady []string
		for _, e := range d.outEdge[id] {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				newlyReady = append(newlyReady, e.To)
			}
		}
		ready = append(ready, newlyReady...)
	}

	if len(order) != len(d.nodes) {
		return nil, &ParseError{Kind: CycleDetected}
	}
	return order, nil
}

// Clone returns a deep copy suitable for the rewrite engine's "mutate a
// fresh tree, never the analysis DAG" discipline (spec.md §9).
func (d *PipelineDag) Clone() *PipelineDag {
	clone := New(d.Name, d.SourceFile, d.Provider)
	for k, v := range d.Env {
		clone.Env[k] = v
	}
	clone.Triggers = append([]Trigger(nil), d.Triggers...)
	for _, n := range d.nodes {
		nc := *n
		nc.Needs = append([]string(nil), n.Needs...)
		nc.Steps = append([]Step(nil), n.Steps...)
		nc.Caches = append([]CacheConfig(nil), n.Caches...)
		if n.Env != nil {
			nc.Env = make(map[string]string, len(n.Env))
			for k, v := range n.Env {
				nc.Env[k] = v
			}
		}
		clone.index[nc.ID] = len(clone.nodes)
		clone.nodes = append(clone.nodes, &nc)
	}
	for from, edges := range d.outEdge {
		clone.outEdge[from] = append([]Edge(nil), edges...)
	}
	for to, edges := range d.inEdge {
		clone.inEdge[to] = append([]Edge(nil), edges...)
	}
	return clone
}

func (j JobNode) String() string {
	return fmt.Sprintf("Job(%s, needs=%v, dur=%.0fs)", j.ID, j.Needs, j.EstimatedDurationSecs)
}
