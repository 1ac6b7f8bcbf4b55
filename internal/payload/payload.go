// Package payload reads fields out of decoded provider JSON. Callers declare
// the paths they expect; FindKey is a bounded breadth-first search kept for
// payloads whose layout varies between endpoints.
package payload

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// MaxSearchDepth bounds FindKey. Depth 0 is the document root.
const MaxSearchDepth = 4

// Doc is a decoded JSON object.
type Doc = map[string]any

// Decode unmarshals raw JSON into a generic document, preserving numbers as
// json.Number so large identifiers survive.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Get follows a dotted path through objects and arrays. Numeric segments
// index arrays. Object keys match case-insensitively when no exact key
// exists. Returns nil when any segment is missing.
func Get(doc any, path string) any {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				v, ok = lookupFold(node, seg)
			}
			if !ok {
				return nil
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

// First returns the first path whose value is present and non-empty.
func First(doc any, paths ...string) any {
	for _, p := range paths {
		if v := Get(doc, p); !empty(v) {
			return v
		}
	}
	return nil
}

// Object returns the object at path, or nil.
func Object(doc any, path string) map[string]any {
	m, _ := Get(doc, path).(map[string]any)
	return m
}

// Array returns the array at path, or nil.
func Array(doc any, path string) []any {
	a, _ := Get(doc, path).([]any)
	return a
}

type queued struct {
	node  any
	depth int
}

// FindKey searches doc breadth-first for an object key matching one of keys
// (case-insensitive, earlier keys preferred) whose value is non-empty,
// descending at most maxDepth levels. Siblings are visited in key order and
// shared sub-objects only once.
func FindKey(doc any, keys []string, maxDepth int) (any, bool) {
	if doc == nil || len(keys) == 0 {
		return nil, false
	}
	visited := make(map[uintptr]bool)
	queue := []queued{{node: doc}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		switch node := item.node.(type) {
		case map[string]any:
			ptr := reflect.ValueOf(node).Pointer()
			if visited[ptr] {
				continue
			}
			visited[ptr] = true
			for _, k := range keys {
				v, ok := node[k]
				if !ok {
					v, ok = lookupFold(node, k)
				}
				if ok && !empty(v) {
					return v, true
				}
			}
			if item.depth < maxDepth {
				children := make([]string, 0, len(node))
				for k := range node {
					children = append(children, k)
				}
				sort.Strings(children)
				for _, k := range children {
					queue = append(queue, queued{node: node[k], depth: item.depth + 1})
				}
			}
		case []any:
			if len(node) == 0 {
				continue
			}
			ptr := reflect.ValueOf(node).Pointer()
			if visited[ptr] {
				continue
			}
			visited[ptr] = true
			if item.depth < maxDepth {
				for _, v := range node {
					queue = append(queue, queued{node: v, depth: item.depth + 1})
				}
			}
		}
	}
	return nil, false
}

func lookupFold(m map[string]any, key string) (any, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
