// Package yamlutil provides small, defensive accessors over the
// map[string]any / []any trees goccy/go-yaml produces, shared by every
// YAML-based provider parser so each one doesn't hand-roll type
// assertions (spec.md §4.1: "parsers must share... rules so downstream
// analyses see uniform data").
package yamlutil

import "fmt"

// Map coerces a decoded YAML value into a string-keyed map, tolerating
// both map[string]any (goccy's default) and map[any]any.
func Map(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Get looks up a key in a decoded mapping.
func Get(v any, key string) (any, bool) {
	m, ok := Map(v)
	if !ok {
		return nil, false
	}
	val, ok := m[key]
	return val, ok
}

// GetMap looks up a key and coerces the result to a map.
func GetMap(v any, key string) (map[string]any, bool) {
	val, ok := Get(v, key)
	if !ok {
		return nil, false
	}
	return Map(val)
}

// Slice coerces a decoded YAML value into a []any.
func Slice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// GetSlice looks up a key and coerces the result to a slice.
func GetSlice(v any, key string) ([]any, bool) {
	val, ok := Get(v, key)
	if !ok {
		return nil, false
	}
	return Slice(val)
}

// Str coerces a decoded YAML scalar into a string, accepting numbers and
// bools via their canonical string form (spec.md §4.1 matrix parsing:
// "Values that are numbers or booleans coerce to their canonical string
// form.").
func Str(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return fmt.Sprintf("%d", s), true
	case int64:
		return fmt.Sprintf("%d", s), true
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s)), true
		}
		return fmt.Sprintf("%v", s), true
	case bool:
		return fmt.Sprintf("%t", s), true
	default:
		return "", false
	}
}

// GetStr looks up a key and coerces the result to a string.
func GetStr(v any, key string) (string, bool) {
	val, ok := Get(v, key)
	if !ok {
		return "", false
	}
	return Str(val)
}

// StrSlice coerces a decoded YAML value into a []string. A bare scalar is
// treated as a single-element list (many providers accept `needs: foo` as
// shorthand for `needs: [foo]`).
func StrSlice(v any) []string {
	if v == nil {
		return nil
	}
	if s, ok := Slice(v); ok {
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := Str(item); ok {
				out = append(out, str)
			}
		}
		return out
	}
	if s, ok := Str(v); ok {
		return []string{s}
	}
	return nil
}

// GetStrSlice looks up a key and coerces the result to a []string.
func GetStrSlice(v any, key string) []string {
	val, ok := Get(v, key)
	if !ok {
		return nil
	}
	return StrSlice(val)
}

// StrMap coerces a decoded YAML mapping into map[string]string, dropping
// non-scalar values.
func StrMap(v any) map[string]string {
	m, ok := Map(v)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := Str(val); ok {
			out[k] = s
		}
	}
	return out
}

// GetStrMapOr looks up a key and coerces it to map[string]string, never
// returning nil (callers can range over the result unconditionally).
func GetStrMapOr(v any, key string) map[string]string {
	val, ok := Get(v, key)
	if !ok {
		return map[string]string{}
	}
	m := StrMap(val)
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Keys returns the top-level keys of a decoded mapping, in no particular
// order (callers that need stable order must sort).
func Keys(v any) []string {
	m, ok := Map(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
