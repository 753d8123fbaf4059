package ops

import (
	"context"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("align", func() module.GraphOperation { return &AlignOp{} })
}

// AlignOp aligns two or more named Ordering chains by shared-token
// discovery: tokens at matching ordinal position with equal annis::tok
// values get a Pointing edge named "align" between them, per the align
// supplement. This mirrors link's key-matching machinery but keys by
// ordinal position instead of query index.
//
// Config:
//
//	layers = ["src", "trg"]
//	component = { ctype = "Pointing", layer = "annis", name = "align" }
type AlignOp struct{}

func (AlignOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	layers, err := strSliceField(config, "layers")
	if err != nil {
		return graph.Log{}, nil, err
	}
	if len(layers) < 2 {
		return graph.Log{}, nil, errField("layers", "align needs at least two Ordering layers")
	}
	comp, err := optComponentRefField(config, "component", graph.ComponentRef{Type: graph.Pointing, Layer: "annis", Name: "align"})
	if err != nil {
		return graph.Log{}, nil, err
	}

	chainsByLayer := make([][]graph.NodeName, len(layers))
	for i, layer := range layers {
		ordComp := graph.ComponentRef{Type: graph.Ordering, Layer: layer, Name: ""}
		chains := orderingChains(g, ordComp)
		var flat []graph.NodeName
		for _, c := range chains {
			flat = append(flat, c...)
		}
		chainsByLayer[i] = flat
	}

	var log graph.Log
	base := chainsByLayer[0]
	for pos, baseNode := range base {
		baseTok, ok := tokOf(g, baseNode)
		if !ok {
			continue
		}
		for li := 1; li < len(chainsByLayer); li++ {
			other := chainsByLayer[li]
			if pos >= len(other) {
				continue
			}
			otherTok, ok := tokOf(g, other[pos])
			if !ok || otherTok != baseTok {
				continue
			}
			log.Append(graph.AddEdge(baseNode, other[pos], comp))
		}
	}
	return log, nil, nil
}

func tokOf(g graph.Engine, name graph.NodeName) (string, bool) {
	n, err := g.GetNode(name)
	if err != nil {
		return "", false
	}
	return n.Anno(graph.KeyTok)
}
