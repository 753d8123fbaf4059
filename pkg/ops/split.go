package ops

import (
	"context"
	"strconv"
	"strings"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("split", func() module.GraphOperation { return &SplitOp{} })
}

// SplitOp splits every node's value at a given annotation key on a
// delimiter and assigns the pieces as new annotations, either by fixed
// position or by a value-to-layer mapping, per §4.7's split contract.
//
// Config:
//
//	key          = "norm::tag"
//	delimiter    = "|"
//	delete       = true
//	index_map    = { "1" = "norm::pos", "2" = "norm::infl" }
//	layer_map    = { "NOUN" = "norm::pos", "masc" = "norm::gender" }
type SplitOp struct{}

func (SplitOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	keyStr, err := strField(config, "key")
	if err != nil {
		return graph.Log{}, nil, err
	}
	key, err := parseAnnoKey("key", keyStr)
	if err != nil {
		return graph.Log{}, nil, err
	}
	delimiter, err := strField(config, "delimiter")
	if err != nil {
		return graph.Log{}, nil, err
	}
	deleteOriginal := boolField(config, "delete", false)
	indexMap := stringMapField(config, "index_map")
	layerMap := stringMapField(config, "layer_map")

	var log graph.Log
	g.NodesByKey(key, nil, func(n *graph.Node) bool {
		v, _ := n.Anno(key)
		pieces := strings.Split(v, delimiter)

		for i, piece := range pieces {
			if target, ok := indexMap[strconv.Itoa(i+1)]; ok {
				targetKey, err := parseAnnoKey("index_map", target)
				if err == nil {
					log.Append(graph.AddNodeLabel(n.Name, targetKey, piece))
				}
			}
			if target, ok := layerMap[piece]; ok {
				targetKey, err := parseAnnoKey("layer_map", target)
				if err == nil {
					log.Append(graph.AddNodeLabel(n.Name, targetKey, piece))
				}
			}
		}
		if deleteOriginal {
			log.Append(graph.DeleteNodeLabel(n.Name, key))
		}
		return true
	})
	return log, nil, nil
}

func stringMapField(config map[string]any, field string) map[string]string {
	raw, ok := config[field].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
