package rewrite

import (
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dagucloud/pipelinex/internal/analyzer"
)

var shardCountRe = regexp.MustCompile(`(\d+)-way shard`)

const defaultShardCount = 4

// injectShards adds a shard matrix strategy to a test-sharding finding's
// job, skipping jobs that already declare a strategy (spec.md §4.5). The
// shard count is read back out of the finding's recommendation text
// (passSerialBottleneck.passTestSharding's "Add a N-way shard matrix..."
// phrasing), falling back to a default when absent.
func injectShards(jobs *yaml.Node, findings []analyzer.Finding) int {
	applied := 0
	for _, f := range findings {
		if f.Category != analyzer.CategoryTestSharding || !f.AutoFixable || len(f.AffectedJobs) == 0 {
			continue
		}
		job, ok := mapGet(jobs, f.AffectedJobs[0])
		if !ok {
			continue
		}
		if _, has := mapGet(job, "strategy"); has {
			continue
		}

		n := defaultShardCount
		if m := shardCountRe.FindStringSubmatch(f.Recommendation); m != nil {
			if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}

		shards := make([]*yaml.Node, n)
		for i := range shards {
			shards[i] = intScalar(i + 1)
		}

		mapSet(job, "strategy", newMap(
			scalarKey("matrix"), newMap(
				scalarKey("shard"), newSeq(shards...),
			),
		))
		applied++
	}
	return applied
}
