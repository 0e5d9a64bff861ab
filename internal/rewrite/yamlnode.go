package rewrite

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

func mapIndex(m *yaml.Node, key string) int {
	if m == nil || m.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func mapGet(m *yaml.Node, key string) (*yaml.Node, bool) {
	idx := mapIndex(m, key)
	if idx < 0 {
		return nil, false
	}
	return m.Content[idx+1], true
}

func mapSet(m *yaml.Node, key string, value *yaml.Node) {
	idx := mapIndex(m, key)
	if idx >= 0 {
		m.Content[idx+1] = value
		return
	}
	m.Content = append(m.Content, scalarKey(key), value)
}

func mapDelete(m *yaml.Node, key string) bool {
	idx := mapIndex(m, key)
	if idx < 0 {
		return false
	}
	m.Content = append(m.Content[:idx], m.Content[idx+2:]...)
	return true
}

func scalarKey(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func strScalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intScalar(n int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)}
}

func boolScalar(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func newSeq(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func strSeq(items ...string) *yaml.Node {
	nodes := make([]*yaml.Node, len(items))
	for i, s := range items {
		nodes[i] = strScalar(s)
	}
	return newSeq(nodes...)
}

func newMap(pairs ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: pairs}
}
