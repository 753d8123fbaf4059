package ops

import (
	"context"
	"strconv"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("chunk", func() module.GraphOperation { return &ChunkOp{} })
}

// ChunkOp groups an Ordering chain into spans of at most N characters and
// writes one new span node per chunk with a Coverage edge (component
// Coverage//) to each covered token and an increasing index annotation,
// per the chunk supplement. Each token counts as its annis::tok length
// plus one. When boundary_key is set, a chunk ends after a token whose
// boundary_key value is "true"; a chunk also ends before a token that would push it past max_chars, whether or
// not that is a sentence boundary; a single token longer than max_chars
// forms a chunk of its own.
//
// Config:
//
//	layer          = "annis"       // Ordering layer to walk, default "annis"
//	max_chars      = 80
//	boundary_key   = "annis::sentence_boundary"
//	index_key      = "chunk::index"
type ChunkOp struct{}

func (ChunkOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	layer := optStrField(config, "layer", "annis")
	maxChars := intField(config, "max_chars", 80)
	boundaryKeyStr := optStrField(config, "boundary_key", "")
	indexKeyStr := optStrField(config, "index_key", "chunk::index")
	indexKey, err := parseAnnoKey("index_key", indexKeyStr)
	if err != nil {
		return graph.Log{}, nil, err
	}
	var boundaryKey graph.AnnoKey
	hasBoundary := boundaryKeyStr != ""
	if hasBoundary {
		boundaryKey, err = parseAnnoKey("boundary_key", boundaryKeyStr)
		if err != nil {
			return graph.Log{}, nil, err
		}
	}

	comp := graph.ComponentRef{Type: graph.Ordering, Layer: layer, Name: ""}
	chains := orderingChains(g, comp)

	var log graph.Log
	idx := 0
	for _, chain := range chains {
		var current []graph.NodeName
		currentLen := 0
		flush := func() {
			if len(current) == 0 {
				return
			}
			span := graph.NodeName("chunk#" + strconv.Itoa(idx))
			log.Append(graph.AddNode(span))
			log.Append(graph.AddNodeLabel(span, indexKey, strconv.Itoa(idx)))
			for _, m := range current {
				log.Append(graph.AddEdge(span, m, graph.ComponentRef{Type: graph.Coverage}))
			}
			idx++
			current = nil
			currentLen = 0
		}

		for _, name := range chain {
			n, err := g.GetNode(name)
			if err != nil {
				continue
			}
			tok, _ := n.Anno(graph.KeyTok)
			atBoundary := false
			if hasBoundary {
				if v, ok := n.Anno(boundaryKey); ok && v == "true" {
					atBoundary = true
				}
			}
			if currentLen > 0 && currentLen+len(tok)+1 > maxChars {
				flush()
			}
			current = append(current, name)
			currentLen += len(tok) + 1
			if atBoundary {
				flush()
			}
		}
		flush()
	}
	return log, nil, nil
}
