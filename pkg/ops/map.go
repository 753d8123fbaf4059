package ops

import (
	"context"
	"regexp"
	"strings"

	"github.com/brannveig/corpusgraph/pkg/engine"
	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("map", func() module.GraphOperation { return &MapOp{} })
}

// MapOp creates or updates annotations from a list of rules, per §4.7's
// map contract. Each rule runs its query and, for every match, writes (or
// deletes) one annotation per matched tuple.
//
// Config:
//
//	repetition     = "until_unchanged"  // "fixed" | "until_unchanged", default "fixed"
//	n              = 1                  // pass count for "fixed"
//	max_iterations = 1000               // safety cap for "until_unchanged"
//	rules = [
//	  { query = "tok", target = 1, key = "norm::lemma", value = "go" },
//	  { query = "tok", target = 1, key = "norm::lemma", copy = [1] },
//	  { query = "tok", target = 1, key = "norm::lemma", copy = [1, 2] },
//	  { query = "tok", target = 1, key = "norm::lemma", regex = { target = 1, replacements = [["a", "b"]] } },
//	  { query = "tok", target = [1, 2], key = "span::kind", value = "phrase" },
//	  { query = "tok", target = 1, delete = ["norm::lemma"] },
//	]
type MapOp struct{}

func (MapOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	rules, err := mapSliceField(config, "rules")
	if err != nil {
		return graph.Log{}, nil, err
	}
	repetition := optStrField(config, "repetition", "fixed")
	maxIter := intField(config, "max_iterations", engine.LoadFromEnv().MaxIterations)

	scratch := cloneGraph(g)
	var total graph.Log

	switch repetition {
	case "until_unchanged":
		for i := 0; i < maxIter; i++ {
			passLog, err := mapPass(scratch, rules)
			if err != nil {
				return graph.Log{}, nil, err
			}
			if passLog.Len() == 0 {
				return total, nil, nil
			}
			if err := scratch.Apply(passLog); err != nil {
				return graph.Log{}, nil, errField("map", "pass application failed: "+err.Error())
			}
			total.Concat(passLog)
		}
		return graph.Log{}, nil, errField("repetition", "until_unchanged did not reach a fixed point within max_iterations")
	default:
		n := intField(config, "n", 1)
		for i := 0; i < n; i++ {
			passLog, err := mapPass(scratch, rules)
			if err != nil {
				return graph.Log{}, nil, err
			}
			if err := scratch.Apply(passLog); err != nil {
				return graph.Log{}, nil, errField("map", "pass application failed: "+err.Error())
			}
			total.Concat(passLog)
		}
		return total, nil, nil
	}
}

func mapPass(g *graph.Graph, rules []map[string]any) (graph.Log, error) {
	ev := query.New(g)
	var log graph.Log
	for _, rule := range rules {
		q, err := strField(rule, "query")
		if err != nil {
			return graph.Log{}, err
		}
		var tupleErr error
		findErr := ev.Find(q, func(t query.Tuple) bool {
			tupleErr = mapApplyTuple(g, &log, rule, t)
			return tupleErr == nil
		})
		if findErr != nil {
			return graph.Log{}, findErr
		}
		if tupleErr != nil {
			return graph.Log{}, tupleErr
		}
	}
	return log, nil
}

func mapApplyTuple(g *graph.Graph, log *graph.Log, rule map[string]any, t query.Tuple) error {
	if deletes, err := strSliceField(rule, "delete"); err != nil {
		return err
	} else if len(deletes) > 0 {
		targetName, err := mapTargetNode(g, rule, t, log)
		if err != nil {
			return err
		}
		for _, d := range deletes {
			key, err := parseAnnoKey("delete", d)
			if err != nil {
				return err
			}
			if n, err := g.GetNode(targetName); err == nil {
				if _, has := n.Anno(key); !has {
					continue // already absent: not a change, keeps until_unchanged convergent
				}
			}
			log.Append(graph.DeleteNodeLabel(targetName, key))
		}
		return nil
	}

	keyStr, err := strField(rule, "key")
	if err != nil {
		return err
	}
	key, err := parseAnnoKey("key", keyStr)
	if err != nil {
		return err
	}
	value, err := mapResolveValue(g, rule, t, key)
	if err != nil {
		return err
	}
	targetName, err := mapTargetNode(g, rule, t, log)
	if err != nil {
		return err
	}
	if n, err := g.GetNode(targetName); err == nil {
		if cur, has := n.Anno(key); has && cur == value {
			return nil // value already set: not a change, keeps until_unchanged convergent
		}
	}
	log.Append(graph.AddNodeLabel(targetName, key, value))
	return nil
}

// mapTargetNode resolves the rule's "target" field. A single 1-based
// index names an existing matched node; a list of indices creates (or
// reuses) a span node covering the coverage-terminal tokens of every
// named index, per map's "list for span creation".
func mapTargetNode(g *graph.Graph, rule map[string]any, t query.Tuple, log *graph.Log) (graph.NodeName, error) {
	if _, isList := rule["target"].([]any); isList {
		indices, err := intSliceField(rule, "target")
		if err != nil {
			return "", err
		}
		var parts []string
		var members []graph.NodeName
		for _, idx := range indices {
			i := idx - 1
			if i < 0 || i >= len(t.Nodes) || t.Nodes[i] == nil {
				continue
			}
			members = append(members, t.Nodes[i].Name)
			parts = append(parts, string(t.Nodes[i].Name))
		}
		spanName := graph.NodeName("span::" + strings.Join(parts, "+"))
		if !g.HasNode(spanName) {
			log.Append(graph.AddNode(spanName))
			for _, m := range members {
				log.Append(graph.AddEdge(spanName, m, graph.ComponentRef{Type: graph.Coverage}))
			}
		}
		return spanName, nil
	}

	idx := intField(rule, "target", 0)
	i := idx - 1
	if i < 0 || i >= len(t.Nodes) || t.Nodes[i] == nil {
		return "", errField("target", "index out of range or unmatched optional node")
	}
	return t.Nodes[i].Name, nil
}

func mapResolveValue(g *graph.Graph, rule map[string]any, t query.Tuple, key graph.AnnoKey) (string, error) {
	if v, ok := rule["value"]; ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", errField("value", "must be a string")
	}
	if indices, err := intSliceField(rule, "copy"); err != nil {
		return "", err
	} else if len(indices) > 0 {
		parts := make([]string, 0, len(indices))
		for _, idx := range indices {
			i := idx - 1
			if i < 0 || i >= len(t.Nodes) || t.Nodes[i] == nil {
				continue
			}
			v, _ := t.Nodes[i].Anno(key)
			parts = append(parts, v)
		}
		return strings.Join(parts, " "), nil
	}
	if raw, ok := rule["regex"]; ok {
		spec, ok := raw.(map[string]any)
		if !ok {
			return "", errField("regex", "must be a table")
		}
		idx := intField(spec, "target", 0)
		i := idx - 1
		if i < 0 || i >= len(t.Nodes) || t.Nodes[i] == nil {
			return "", errField("regex.target", "index out of range or unmatched optional node")
		}
		value, _ := t.Nodes[i].Anno(key)
		rawRepls, ok := spec["replacements"].([]any)
		if !ok {
			return "", errField("replacements", "must be a list of [pattern, replacement] pairs")
		}
		for _, pairRaw := range rawRepls {
			pair, ok := pairRaw.([]any)
			if !ok || len(pair) != 2 {
				return "", errField("replacements", "each entry must be a [pattern, replacement] pair")
			}
			pat, _ := pair[0].(string)
			repl, _ := pair[1].(string)
			re, err := regexp.Compile(pat)
			if err != nil {
				return "", errField("replacements", err.Error())
			}
			value = re.ReplaceAllString(value, repl)
		}
		return value, nil
	}
	return "", errField("value", "rule must set one of value, copy, regex")
}
