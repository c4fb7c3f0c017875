// Package webform decodes Bitrix webhook bodies, which arrive as flat
// form fields with bracket-annotated keys (PHP style), into nested maps.
package webform

import "strings"

// Decode turns a flat bracket-keyed field map into a nested tree.
//
// A key like "data[FIELDS_AFTER][ID]" becomes one nesting level per
// bracket segment with the final segment as the leaf key:
//
//	{"data": {"FIELDS_AFTER": {"ID": "42"}}}
//
// Keys without brackets stay top-level scalars. Keys sharing segments
// merge into the same sub-map, so the result is identical for any
// ordering of the input. A scalar sitting where a later key needs a
// sub-map is replaced by that sub-map.
func Decode(fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		parts := strings.Split(key, "[")
		node := out
		for _, part := range parts[:len(parts)-1] {
			part = strings.TrimSuffix(part, "]")
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		leaf := strings.TrimSuffix(parts[len(parts)-1], "]")
		node[leaf] = value
	}
	return out
}

// Lookup walks a decoded tree along the given path and returns the
// string leaf, or "" when any step is missing or not a map.
func Lookup(tree map[string]any, path ...string) string {
	node := tree
	for i, part := range path {
		if i == len(path)-1 {
			s, _ := node[part].(string)
			return s
		}
		child, ok := node[part].(map[string]any)
		if !ok {
			return ""
		}
		node = child
	}
	return ""
}

// Subtree walks a decoded tree along the given path and returns the
// nested map at that position, or nil when absent.
func Subtree(tree map[string]any, path ...string) map[string]any {
	node := tree
	for _, part := range path {
		child, ok := node[part].(map[string]any)
		if !ok {
			return nil
		}
		node = child
	}
	return node
}
