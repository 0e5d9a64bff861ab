package rewrite

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// shallowClone adds fetch-depth: 1 to every checkout step lacking a
// fetch-depth hint (spec.md §4.5).
func shallowClone(jobs *yaml.Node) int {
	applied := 0
	for i := 0; i+1 < len(jobs.Content); i += 2 {
		job := jobs.Content[i+1]
		steps, ok := mapGet(job, "steps")
		if !ok || steps.Kind != yaml.SequenceNode {
			continue
		}
		for _, step := range steps.Content {
			uses, ok := mapGet(step, "uses")
			if !ok || !strings.Contains(strings.ToLower(uses.Value), "actions/checkout") {
				continue
			}
			with, ok := mapGet(step, "with")
			if !ok || with.Kind != yaml.MappingNode {
				with = newMap()
				mapSet(step, "with", with)
			}
			if _, has := mapGet(with, "fetch-depth"); has {
				continue
			}
			mapSet(with, "fetch-depth", intScalar(1))
			applied++
		}
	}
	return applied
}
