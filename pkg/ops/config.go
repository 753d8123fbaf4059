// Package ops implements the graph operations named in §4.7: merge,
// revise, map, link, enumerate, split, collapse, check, filter, time,
// chunk, align, and edit. Each operation is a module.GraphOperation that
// reads the graph through a query.Evaluator and returns the update log the
// scheduler will apply; none mutates g directly, per §5's "operations
// never mutate the live graph directly."
//
// Grounded on the teacher's apoc/merge, apoc/diff, and apoc/refactor
// (config-driven graph rewrites expressed as plain map[string]any
// parameters, no reflection-based decoding) and apoc/registry's init-time
// self-registration pattern.
package ops

import (
	"fmt"

	"github.com/brannveig/corpusgraph/pkg/engine"
	"github.com/brannveig/corpusgraph/pkg/graph"
)

// configError reports a malformed operation config; it unwraps to
// engine.ErrConfig.
type configError struct {
	field string
	msg   string
}

func (e *configError) Error() string { return fmt.Sprintf("ops: field %q: %s", e.field, e.msg) }

func (e *configError) Unwrap() error { return engine.ErrConfig }

func errField(field, msg string) error { return &configError{field: field, msg: msg} }

func strField(cfg map[string]any, key string) (string, error) {
	v, ok := cfg[key]
	if !ok {
		return "", errField(key, "required")
	}
	s, ok := v.(string)
	if !ok {
		return "", errField(key, "must be a string")
	}
	return s, nil
}

func optStrField(cfg map[string]any, key, def string) string {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func intField(cfg map[string]any, key string, def int) int {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func boolField(cfg map[string]any, key string, def bool) bool {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func strSliceField(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errField(key, "must be a list")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, errField(key, "every element must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func intSliceField(cfg map[string]any, key string) ([]int, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errField(key, "must be a list")
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		default:
			return nil, errField(key, "every element must be an integer")
		}
	}
	return out, nil
}

func mapSliceField(cfg map[string]any, key string) ([]map[string]any, error) {
	v, ok := cfg[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errField(key, "must be a list")
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errField(key, "every element must be a table")
		}
		out = append(out, m)
	}
	return out, nil
}

// edgeExists reports whether component comp already carries an edge from
// source to target, so callers that reroute or link edges can skip an
// AddEdge that would otherwise collide with one already present and fail
// Apply's duplicate-edge validation.
func edgeExists(g graph.Engine, source, target graph.NodeName, comp graph.ComponentRef) bool {
	for _, e := range g.OutgoingEdges(source, comp) {
		if e.Target == target {
			return true
		}
	}
	return false
}

// parseAnnoKey splits "ns::name" into a graph.AnnoKey.
func parseAnnoKey(field, s string) (graph.AnnoKey, error) {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return graph.AnnoKey{Namespace: s[:i], Name: s[i+2:]}, nil
		}
	}
	return graph.AnnoKey{}, errField(field, fmt.Sprintf("%q is not a ns::name annotation key", s))
}

// parseComponentRef reads cfg[field] as the canonical nested
// { ctype = "...", layer = "...", name = "..." } component table. The
// legacy flat "Type/layer/name" string form is rejected outright, wrapped
// in engine.ErrConfig, rather than accepted alongside it.
func parseComponentRef(cfg map[string]any, field string) (graph.ComponentRef, error) {
	v, ok := cfg[field]
	if !ok {
		return graph.ComponentRef{}, errField(field, "required")
	}
	return decodeComponentRef(field, v)
}

// optComponentRefField is parseComponentRef with a default for an absent
// field; a present-but-legacy-flat value is still rejected.
func optComponentRefField(cfg map[string]any, field string, def graph.ComponentRef) (graph.ComponentRef, error) {
	v, ok := cfg[field]
	if !ok {
		return def, nil
	}
	return decodeComponentRef(field, v)
}

func decodeComponentRef(field string, v any) (graph.ComponentRef, error) {
	if s, isStr := v.(string); isStr {
		return graph.ComponentRef{}, engine.Wrapf(engine.ErrConfig, "ops", field,
			"%q: flat \"Type/layer/name\" component strings are no longer accepted; use { ctype, layer, name }", s)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return graph.ComponentRef{}, errField(field, "must be a { ctype, layer, name } table")
	}
	ctype, err := strField(m, "ctype")
	if err != nil {
		return graph.ComponentRef{}, err
	}
	layer, err := strField(m, "layer")
	if err != nil {
		return graph.ComponentRef{}, err
	}
	name, err := strField(m, "name")
	if err != nil {
		return graph.ComponentRef{}, err
	}
	return graph.ComponentRef{Type: graph.ComponentType(ctype), Layer: layer, Name: name}, nil
}
