package ops

import (
	"context"
	"strings"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("link", func() module.GraphOperation { return &LinkOp{} })
}

// LinkOp builds edges between two node sets determined by independent
// queries, matching a source tuple to a target tuple whenever their
// concatenated key-annotation values agree, per §4.7's link contract.
//
// Config:
//
//	source_query      = "..."
//	source_endpoint   = 1
//	source_key        = [{index = 2, key = "norm::lemma"}, {index = 3, key = "norm::pos"}]
//	target_query      = "..."
//	target_endpoint   = 1
//	target_key        = [{index = 1, key = "norm::lemma"}]
//	separator         = "_"     // default "_"
//	component         = { ctype = "Pointing", layer = "dep", name = "link" }
//	copy_source_annos = ["ns::key"]
//	copy_target_annos = ["ns::key"]
type LinkOp struct{}

func (LinkOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	sourceQuery, err := strField(config, "source_query")
	if err != nil {
		return graph.Log{}, nil, err
	}
	targetQuery, err := strField(config, "target_query")
	if err != nil {
		return graph.Log{}, nil, err
	}
	sourceEndpoint := intField(config, "source_endpoint", 1)
	targetEndpoint := intField(config, "target_endpoint", 1)
	sourceKeySpec, err := parseKeySelectors(config, "source_key")
	if err != nil {
		return graph.Log{}, nil, err
	}
	targetKeySpec, err := parseKeySelectors(config, "target_key")
	if err != nil {
		return graph.Log{}, nil, err
	}
	separator := optStrField(config, "separator", "_")
	comp, err := parseComponentRef(config, "component")
	if err != nil {
		return graph.Log{}, nil, err
	}
	copySourceAnnos, err := strSliceField(config, "copy_source_annos")
	if err != nil {
		return graph.Log{}, nil, err
	}
	copyTargetAnnos, err := strSliceField(config, "copy_target_annos")
	if err != nil {
		return graph.Log{}, nil, err
	}

	ev := query.New(g)
	sourceByKey := map[string][]*graph.Node{}
	if err := ev.Find(sourceQuery, func(t query.Tuple) bool {
		endpoint := tupleNode(t, sourceEndpoint)
		if endpoint == nil {
			return true
		}
		key := concatKeyValues(t, sourceKeySpec, separator)
		sourceByKey[key] = append(sourceByKey[key], endpoint)
		return true
	}); err != nil {
		return graph.Log{}, nil, err
	}

	var log graph.Log
	if err := ev.Find(targetQuery, func(t query.Tuple) bool {
		endpoint := tupleNode(t, targetEndpoint)
		if endpoint == nil {
			return true
		}
		key := concatKeyValues(t, targetKeySpec, separator)
		for _, source := range sourceByKey[key] {
			if !edgeExists(g, source.Name, endpoint.Name, comp) {
				log.Append(graph.AddEdge(source.Name, endpoint.Name, comp))
			}
			for _, a := range copySourceAnnos {
				ak, err := parseAnnoKey("copy_source_annos", a)
				if err != nil {
					continue
				}
				if v, ok := source.Anno(ak); ok {
					log.Append(graph.AddEdgeLabel(source.Name, endpoint.Name, comp, ak, v))
				}
			}
			for _, a := range copyTargetAnnos {
				ak, err := parseAnnoKey("copy_target_annos", a)
				if err != nil {
					continue
				}
				if v, ok := endpoint.Anno(ak); ok {
					log.Append(graph.AddEdgeLabel(source.Name, endpoint.Name, comp, ak, v))
				}
			}
		}
		return true
	}); err != nil {
		return graph.Log{}, nil, err
	}
	return log, nil, nil
}

func tupleNode(t query.Tuple, oneBased int) *graph.Node {
	i := oneBased - 1
	if i < 0 || i >= len(t.Nodes) {
		return nil
	}
	return t.Nodes[i]
}

// keySelector names one node index and the annotation key whose value
// contributes to a link matching key.
type keySelector struct {
	index int
	key   graph.AnnoKey
}

func parseKeySelectors(config map[string]any, field string) ([]keySelector, error) {
	rules, err := mapSliceField(config, field)
	if err != nil {
		return nil, err
	}
	out := make([]keySelector, 0, len(rules))
	for _, rule := range rules {
		idx := intField(rule, "index", 0)
		keyStr, err := strField(rule, "key")
		if err != nil {
			return nil, err
		}
		key, err := parseAnnoKey(field, keyStr)
		if err != nil {
			return nil, err
		}
		out = append(out, keySelector{index: idx, key: key})
	}
	return out, nil
}

func concatKeyValues(t query.Tuple, selectors []keySelector, separator string) string {
	parts := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		n := tupleNode(t, sel.index)
		if n == nil {
			parts = append(parts, "")
			continue
		}
		v, _ := n.Anno(sel.key)
		parts = append(parts, v)
	}
	return strings.Join(parts, separator)
}
