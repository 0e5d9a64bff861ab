// Package multirepo aggregates already-parsed pipeline DAGs from several
// repositories to detect cross-repository orchestration, duplicated CI
// work, and monorepo path-filter risk (SPEC_FULL.md §4.11, grounded on
// multi_repo/mod.rs). It performs no repository discovery, cloning, or
// network fetch of its own: callers supply the parsed DAGs.
package multirepo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dagucloud/pipelinex/internal/graphalg"
	"github.com/dagucloud/pipelinex/internal/pipedag"
)

// RepoPipeline pairs a repository name with its parsed DAG.
type RepoPipeline struct {
	Repo string
	Dag  *pipedag.PipelineDag
}

// RepoSummary is the per-repository rollup.
type RepoSummary struct {
	Repo               string
	WorkflowCount       int
	JobCount            int
	CriticalPathSecs    float64
	Provider            string
}

// OrchestrationEdge is a detected cross-repo dispatch relationship.
type OrchestrationEdge struct {
	FromRepo string
	ToRepo   string
	JobID    string
}

// Finding mirrors analyzer.Finding's shape closely enough to render the
// same way, without creating an import cycle back through analyzer
// (multirepo operates over many DAGs at once, a different unit than a
// single-DAG analyzer.Finding).
type Finding struct {
	Severity     string
	Title        string
	Description  string
	AffectedRepos []string
}

// Report is the full cross-repository analysis result.
type Report struct {
	Summaries    []RepoSummary
	Orchestration []OrchestrationEdge
	Findings     []Finding
}

var dispatchRe = regexp.MustCompile(`(?i)(workflow_dispatch|repository_dispatch|gh\s+workflow\s+run|/dispatches|/pipelines)\s*[:\(]?\s*['"]?([a-zA-Z0-9_.\-]+/[a-zA-Z0-9_.\-]+)`)

// Analyze computes per-repo summaries, cross-repo orchestration edges,
// and cross-repo risk findings (grounded on
// multi_repo/mod.rs::analyze_multi_repo).
func Analyze(pipelines []RepoPipeline) Report {
	var summaries []RepoSummary
	critical := map[string]float64{}
	dispatchCounts := map[string]int{} // repo -> number of repos it dispatches to
	receiveCounts := map[string]int{}  // repo -> number of repos dispatching to it
	var edges []OrchestrationEdge
	commandToRepos := map[string]map[string]bool{}

	for _, rp := range pipelines {
		cp, err := graphalg.FindCriticalPath(rp.Dag)
		dur := 0.0
		if err == nil {
			dur = cp.DurationSecs
		}
		critical[rp.Repo] = dur
		summaries = append(summaries, RepoSummary{
			Repo:             rp.Repo,
			WorkflowCount:    1,
			JobCount:         rp.Dag.JobCount(),
			CriticalPathSecs: dur,
			Provider:         rp.Dag.Provider,
		})

		targets := map[string]bool{}
		for _, job := range rp.Dag.Jobs() {
			for _, s := range job.Steps {
				for _, m := range dispatchRe.FindAllStringSubmatch(s.Run+" "+s.Uses, -1) {
					target := m[2]
					if target == rp.Repo || targets[target] {
						continue
					}
					targets[target] = true
					edges = append(edges, OrchestrationEdge{FromRepo: rp.Repo, ToRepo: target, JobID: job.ID})
				}
				cmd := normalizeCommand(s.Run)
				if cmd == "" {
					continue
				}
				if commandToRepos[cmd] == nil {
					commandToRepos[cmd] = map[string]bool{}
				}
				commandToRepos[cmd][rp.Repo] = true
			}
		}
		dispatchCounts[rp.Repo] = len(targets)
		for t := range targets {
			receiveCounts[t]++
		}
	}

	var findings []Finding
	findings = append(findings, fanOutFindings(dispatchCounts)...)
	findings = append(findings, fanInFindings(receiveCounts)...)
	findings = append(findings, duplicateCommandFindings(commandToRepos)...)
	findings = append(findings, monorepoFindings(pipelines)...)
	findings = append(findings, durationSkewFindings(critical)...)

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Repo < summaries[j].Repo })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromRepo != edges[j].FromRepo {
			return edges[i].FromRepo < edges[j].FromRepo
		}
		return edges[i].ToRepo < edges[j].ToRepo
	})

	return Report{Summaries: summaries, Orchestration: edges, Findings: findings}
}

func fanOutFindings(dispatchCounts map[string]int) []Finding {
	var out []Finding
	for _, repo := range sortedIntKeys(dispatchCounts) {
		n := dispatchCounts[repo]
		if n >= 2 {
			out = append(out, Finding{
				Severity:      "medium",
				Title:         fmt.Sprintf("%q is an orchestration hub", repo),
				Description:   fmt.Sprintf("%q dispatches CI runs to %d other repositories.", repo, n),
				AffectedRepos: []string{repo},
			})
		}
	}
	return out
}

func fanInFindings(receiveCounts map[string]int) []Finding {
	var out []Finding
	for _, repo := range sortedIntKeys(receiveCounts) {
		n := receiveCounts[repo]
		if n >= 2 {
			out = append(out, Finding{
				Severity:      "medium",
				Title:         fmt.Sprintf("%q receives dispatches from %d repositories", repo, n),
				Description:   "Concurrent cross-repo triggers into this repo risk colliding runs.",
				AffectedRepos: []string{repo},
			})
		}
	}
	return out
}

func duplicateCommandFindings(commandToRepos map[string]map[string]bool) []Finding {
	var out []Finding
	cmds := make([]string, 0, len(commandToRepos))
	for c := range commandToRepos {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	for _, cmd := range cmds {
		repos := commandToRepos[cmd]
		if len(repos) < 2 {
			continue
		}
		names := make([]string, 0, len(repos))
		for r := range repos {
			names = append(names, r)
		}
		sort.Strings(names)
		out = append(out, Finding{
			Severity:      "low",
			Title:         "Duplicated CI command across repositories",
			Description:   fmt.Sprintf("The command %q appears verbatim in %d repos: %v.", cmd, len(repos), names),
			AffectedRepos: names,
		})
	}
	return out
}

func monorepoFindings(pipelines []RepoPipeline) []Finding {
	byRepo := map[string][]*pipedag.PipelineDag{}
	for _, rp := range pipelines {
		byRepo[rp.Repo] = append(byRepo[rp.Repo], rp.Dag)
	}
	var out []Finding
	repos := make([]string, 0, len(byRepo))
	for r := range byRepo {
		repos = append(repos, r)
	}
	sort.Strings(repos)
	for _, repo := range repos {
		dags := byRepo[repo]
		if len(dags) < 3 {
			continue
		}
		unfiltered := 0
		for _, d := range dags {
			for _, t := range d.Triggers {
				if (t.Event == "push" || t.Event == "pull_request") && !t.HasPathFilter() {
					unfiltered++
					break
				}
			}
		}
		if unfiltered >= 2 {
			out = append(out, Finding{
				Severity:      "medium",
				Title:         fmt.Sprintf("%q looks like an unfiltered monorepo", repo),
				Description:   fmt.Sprintf("%d of %d workflows in this repo have no path filter on push/PR triggers.", unfiltered, len(dags)),
				AffectedRepos: []string{repo},
			})
		}
	}
	return out
}

func durationSkewFindings(critical map[string]float64) []Finding {
	var durations []float64
	for _, d := range critical {
		if d > 0 {
			durations = append(durations, d)
		}
	}
	if len(durations) < 3 {
		return nil
	}
	sort.Float64s(durations)
	median := durations[len(durations)/2]
	if median <= 0 {
		return nil
	}

	var out []Finding
	for _, repo := range sortedFloatKeys(critical) {
		d := critical[repo]
		if d > median*1.8 {
			out = append(out, Finding{
				Severity:      "low",
				Title:         fmt.Sprintf("%q's pipeline is far slower than its peers", repo),
				Description:   fmt.Sprintf("Critical path %.0fs is %.1fx the cross-repo median of %.0fs.", d, d/median, median),
				AffectedRepos: []string{repo},
			})
		}
	}
	return out
}

func normalizeCommand(run string) string {
	run = strings.TrimSpace(run)
	if run == "" || len(strings.Fields(run)) < 2 {
		return ""
	}
	return run
}

func sortedIntKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFloatKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
