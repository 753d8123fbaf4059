package ops

import (
	"context"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("filter", func() module.GraphOperation { return &FilterOp{} })
}

// FilterOp keeps or removes nodes of type "node" matching a query, per
// §4.7's filter contract. Positive mode keeps matches plus every
// coverage-terminal token; inverse mode deletes matches, tokens excepted.
//
// Config:
//
//	query  = "..."
//	target = 1
//	mode   = "positive"   // "positive" | "inverse", default "positive"
type FilterOp struct{}

func (FilterOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	q, err := strField(config, "query")
	if err != nil {
		return graph.Log{}, nil, err
	}
	target := intField(config, "target", 1)
	mode := optStrField(config, "mode", "positive")

	matched := map[graph.NodeName]bool{}
	tokens := map[graph.NodeName]bool{}

	ev := query.New(g)
	if err := ev.Find(q, func(t query.Tuple) bool {
		n := tupleNode(t, target)
		if n != nil {
			matched[n.Name] = true
		}
		return true
	}); err != nil {
		return graph.Log{}, nil, err
	}

	g.NodesByKey(graph.KeyTok, nil, func(n *graph.Node) bool {
		tokens[n.Name] = true
		return true
	})

	var log graph.Log
	for _, name := range g.AllNodeNames() {
		n, err := g.GetNode(name)
		if err != nil {
			continue
		}
		if nt, _ := n.Anno(graph.KeyNodeType); nt != graph.NodeTypeNode {
			continue
		}
		switch mode {
		case "inverse":
			if matched[name] && !tokens[name] {
				log.Append(graph.DeleteNode(name))
			}
		default:
			if !matched[name] && !tokens[name] {
				log.Append(graph.DeleteNode(name))
			}
		}
	}
	return log, nil, nil
}
