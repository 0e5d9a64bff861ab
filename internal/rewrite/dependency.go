package rewrite

import (
	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
)

// removeFalseDependencies drops a dependent job's `needs` entry naming a
// serial-bottleneck finding's parent job, deleting the `needs` key
// entirely if it becomes empty (spec.md §4.5). Findings are produced with
// AffectedJobs = [dependent, dependency].
func removeFalseDependencies(jobs *yaml.Node, findings []analyzer.Finding) int {
	applied := 0
	for _, f := range findings {
		if f.Category != analyzer.CategorySerialBottleneck || !f.AutoFixable || len(f.AffectedJobs) != 2 {
			continue
		}
		dependent, parent := f.AffectedJobs[0], f.AffectedJobs[1]

		job, ok := mapGet(jobs, dependent)
		if !ok {
			continue
		}
		needs, ok := mapGet(job, "needs")
		if !ok {
			continue
		}

		switch needs.Kind {
		case yaml.ScalarNode:
			if needs.Value != parent {
				continue
			}
			mapDelete(job, "needs")
			applied++
		case yaml.SequenceNode:
			kept, removed := dropValue(needs.Content, parent)
			if !removed {
				continue
			}
			switch len(kept) {
			case 0:
				mapDelete(job, "needs")
			case 1:
				mapSet(job, "needs", kept[0])
			default:
				needs.Content = kept
			}
			applied++
		}
	}
	return applied
}

func dropValue(nodes []*yaml.Node, value string) ([]*yaml.Node, bool) {
	var kept []*yaml.Node
	removed := false
	for _, n := range nodes {
		if n.Value == value {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	return kept, removed
}
