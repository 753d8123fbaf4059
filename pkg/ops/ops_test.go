package ops

import (
	"context"
	"testing"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var normLemma = graph.AnnoKey{Namespace: "norm", Name: "lemma"}

func newTokenChain(t *testing.T, toks ...string) *graph.Graph {
	t.Helper()
	g := graph.New()
	var log graph.Log
	var prev graph.NodeName
	for i, tok := range toks {
		name := graph.NodeName("corpus/doc#tok_" + itoaTest(i+1))
		log.Append(graph.AddNode(name))
		log.Append(graph.AddNodeLabel(name, graph.KeyTok, tok))
		if i > 0 {
			log.Append(graph.AddEdge(prev, name, graph.DefaultOrdering))
		}
		prev = name
	}
	require.NoError(t, g.Apply(log))
	return g
}

func itoaTest(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var out []byte
	for n > 0 {
		out = append([]byte{digits[n%10]}, out...)
		n /= 10
	}
	return string(out)
}

func TestEditOp_Passthrough(t *testing.T) {
	g := graph.New()
	op := EditOp{}
	config := map[string]any{
		"records": []any{
			map[string]any{"kind": "add_node", "node": "corpus/doc#x"},
			map[string]any{"kind": "add_node_label", "node": "corpus/doc#x", "key": "norm::lemma", "value": "go"},
		},
	}
	log, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(log))
	assert.True(t, g.HasNode("corpus/doc#x"))
}

func TestMergeOp_UnifiesAndIsIdempotent(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("a#1"))
	log.Append(graph.AddNodeLabel("a#1", normLemma, "go"))
	log.Append(graph.AddNode("b#1"))
	log.Append(graph.AddNodeLabel("b#1", normLemma, "go"))
	require.NoError(t, g.Apply(log))

	op := MergeOp{}
	config := map[string]any{"key": "norm::lemma", "policy": "forward"}

	mergeLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(mergeLog))
	assert.Equal(t, 1, g.NodeCount())

	secondLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	assert.Equal(t, 0, secondLog.Len(), "merge must be idempotent")
}

func TestReviseOp_RenameAndDeleteNode(t *testing.T) {
	g := newTokenChain(t, "the", "cat")
	op := ReviseOp{}
	config := map[string]any{
		"rename_node": []any{
			map[string]any{"from": "corpus/doc#tok_1", "to": "corpus/doc#tok_1_renamed"},
		},
	}
	log, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(log))
	assert.False(t, g.HasNode("corpus/doc#tok_1"))
	assert.True(t, g.HasNode("corpus/doc#tok_1_renamed"))

	n, err := g.GetNode("corpus/doc#tok_1_renamed")
	require.NoError(t, err)
	v, _ := n.Anno(graph.KeyTok)
	assert.Equal(t, "the", v)
}

func TestReviseOp_DeleteSubgraph(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("corpus/doc"))
	log.Append(graph.AddNode("corpus/doc#tok_1"))
	log.Append(graph.AddEdge("corpus/doc#tok_1", "corpus/doc", graph.PartOfAnnis))
	require.NoError(t, g.Apply(log))

	op := ReviseOp{}
	config := map[string]any{
		"delete_subgraph": []any{map[string]any{"root": "corpus/doc"}},
	}
	reviseLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(reviseLog))
	assert.Equal(t, 0, g.NodeCount())
}

func TestMapOp_LiteralValue(t *testing.T) {
	g := newTokenChain(t, "the", "cat")
	op := MapOp{}
	config := map[string]any{
		"rules": []any{
			map[string]any{"query": "annis:tok", "target": 1, "key": "norm::checked", "value": "yes"},
		},
	}
	log, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(log))

	n, err := g.GetNode("corpus/doc#tok_1")
	require.NoError(t, err)
	v, ok := n.Anno(graph.AnnoKey{Namespace: "norm", Name: "checked"})
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestMapOp_UntilUnchangedConverges(t *testing.T) {
	g := newTokenChain(t, "the")
	op := MapOp{}
	config := map[string]any{
		"repetition": "until_unchanged",
		"rules": []any{
			map[string]any{"query": "annis:tok", "target": 1, "key": "norm::checked", "value": "yes"},
		},
	}
	log, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, log.Len(), 1)
}

func TestLinkOp_MatchesOnConcatenatedKey(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("src#1"))
	log.Append(graph.AddNodeLabel("src#1", normLemma, "go"))
	log.Append(graph.AddNode("trg#1"))
	log.Append(graph.AddNodeLabel("trg#1", normLemma, "go"))
	require.NoError(t, g.Apply(log))

	op := LinkOp{}
	config := map[string]any{
		"source_query":    "norm:lemma",
		"source_endpoint": 1,
		"source_key":      []any{map[string]any{"index": 1, "key": "norm::lemma"}},
		"target_query":    "norm:lemma",
		"target_endpoint": 1,
		"target_key":      []any{map[string]any{"index": 1, "key": "norm::lemma"}},
		"component":       map[string]any{"ctype": "Pointing", "layer": "dep", "name": "link"},
	}
	linkLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(linkLog))

	comp := graph.ComponentRef{Type: graph.Pointing, Layer: "dep", Name: "link"}
	found := false
	for _, e := range g.AllEdges(comp) {
		if e.Source == "src#1" && e.Target == "trg#1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEnumerateOp_RestartsOnGroupChange(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("a#1"))
	log.Append(graph.AddNodeLabel("a#1", normLemma, "x"))
	log.Append(graph.AddNode("a#2"))
	log.Append(graph.AddNodeLabel("a#2", normLemma, "x"))
	require.NoError(t, g.Apply(log))

	op := EnumerateOp{}
	config := map[string]any{
		"queries": []any{
			map[string]any{"query": "norm:lemma", "target": 1, "key": "enum::idx", "start": 1},
		},
	}
	enumLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	assert.Equal(t, 2, enumLog.Len())
}

func TestSplitOp_IndexMap(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("a#1"))
	log.Append(graph.AddNodeLabel("a#1", graph.AnnoKey{Namespace: "norm", Name: "tag"}, "NOUN|masc"))
	require.NoError(t, g.Apply(log))

	op := SplitOp{}
	config := map[string]any{
		"key":       "norm::tag",
		"delimiter": "|",
		"delete":    true,
		"index_map": map[string]any{"1": "norm::pos", "2": "norm::gender"},
	}
	splitLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(splitLog))

	n, err := g.GetNode("a#1")
	require.NoError(t, err)
	v, ok := n.Anno(graph.AnnoKey{Namespace: "norm", Name: "pos"})
	require.True(t, ok)
	assert.Equal(t, "NOUN", v)
	_, stillHasOriginal := n.Anno(graph.AnnoKey{Namespace: "norm", Name: "tag"})
	assert.False(t, stillHasOriginal)
}

func TestCollapseOp_ContractsEdgeIntoHypernode(t *testing.T) {
	g := graph.New()
	comp := graph.ComponentRef{Type: graph.Dominance, Layer: "const", Name: "edge"}
	var log graph.Log
	log.Append(graph.AddNode("a#1"))
	log.Append(graph.AddNode("a#2"))
	log.Append(graph.AddEdge("a#1", "a#2", comp))
	require.NoError(t, g.Apply(log))

	op := CollapseOp{}
	config := map[string]any{"component": map[string]any{"ctype": "Dominance", "layer": "const", "name": "edge"}}
	collapseLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(collapseLog))

	assert.False(t, g.HasNode("a#1"))
	assert.False(t, g.HasNode("a#2"))
	assert.Equal(t, 1, g.NodeCount())
}

func TestCheckOp_PassAndFail(t *testing.T) {
	g := newTokenChain(t, "the", "cat")
	op := CheckOp{}

	passConfig := map[string]any{
		"tests": []any{
			map[string]any{"description": "two tokens", "query": "annis:tok", "expect": 2},
		},
	}
	_, _, err := op.Apply(context.Background(), g, passConfig)
	require.NoError(t, err)

	failConfig := map[string]any{
		"tests": []any{
			map[string]any{"description": "wrong count", "query": "annis:tok", "expect": 5},
		},
	}
	_, _, err = op.Apply(context.Background(), g, failConfig)
	require.Error(t, err)
	_, isWarning := scheduler.AsWarning(err)
	assert.False(t, isWarning)
}

func TestCheckOp_LocalWarnDowngradesGlobalFail(t *testing.T) {
	g := newTokenChain(t, "the")
	op := CheckOp{}
	config := map[string]any{
		"policy": "fail",
		"tests": []any{
			map[string]any{"description": "wrong count", "query": "annis:tok", "expect": 5, "policy": "warn"},
		},
	}
	_, _, err := op.Apply(context.Background(), g, config)
	require.Error(t, err)
	_, isWarning := scheduler.AsWarning(err)
	assert.True(t, isWarning)
}

func TestFilterOp_PositiveModeKeepsTokensAndMatches(t *testing.T) {
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("corpus/doc#tok_1"))
	log.Append(graph.AddNodeLabel("corpus/doc#tok_1", graph.KeyTok, "the"))
	log.Append(graph.AddNodeLabel("corpus/doc#tok_1", graph.KeyNodeType, graph.NodeTypeNode))
	log.Append(graph.AddNode("corpus/doc#span_1"))
	log.Append(graph.AddNodeLabel("corpus/doc#span_1", graph.KeyNodeType, graph.NodeTypeNode))
	log.Append(graph.AddNodeLabel("corpus/doc#span_1", normLemma, "keepme"))
	require.NoError(t, g.Apply(log))

	op := FilterOp{}
	config := map[string]any{"query": "norm:lemma=\"keepme\"", "target": 1, "mode": "positive"}
	filterLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(filterLog))

	assert.True(t, g.HasNode("corpus/doc#tok_1"), "tokens always survive positive filter")
	assert.True(t, g.HasNode("corpus/doc#span_1"), "matched node survives positive filter")
}

func TestChunkOp_GroupsTokensIntoSpans(t *testing.T) {
	g := newTokenChain(t, "aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc")
	op := ChunkOp{}
	config := map[string]any{"max_chars": 15}
	chunkLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(chunkLog))
	assert.Greater(t, g.NodeCount(), 3, "chunking should add span nodes")
}

func TestAlignOp_AddsPointingEdgeForMatchingPosition(t *testing.T) {
	g := graph.New()
	var log graph.Log
	for _, layer := range []string{"src", "trg"} {
		first, second := graph.NodeName(layer+"#1"), graph.NodeName(layer+"#2")
		log.Append(graph.AddNode(first))
		log.Append(graph.AddNodeLabel(first, graph.KeyTok, "cat"))
		log.Append(graph.AddNode(second))
		log.Append(graph.AddNodeLabel(second, graph.KeyTok, "sat"))
		log.Append(graph.AddEdge(first, second, graph.ComponentRef{Type: graph.Ordering, Layer: layer}))
	}
	require.NoError(t, g.Apply(log))

	op := AlignOp{}
	config := map[string]any{"layers": []any{"src", "trg"}}
	alignLog, _, err := op.Apply(context.Background(), g, config)
	require.NoError(t, err)
	require.NoError(t, g.Apply(alignLog))

	comp := graph.ComponentRef{Type: graph.Pointing, Layer: "annis", Name: "align"}
	assert.Len(t, g.AllEdges(comp), 2)
	assert.Len(t, g.OutgoingEdges("src#1", comp), 1)
}
