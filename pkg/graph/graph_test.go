package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNodeAndLabel(t *testing.T) {
	g := New()

	t.Run("apply_adds_node_and_label", func(t *testing.T) {
		var log Log
		log.Append(AddNode("corpus/doc#tok_1"))
		log.Append(AddNodeLabel("corpus/doc#tok_1", KeyTok, "hello"))

		require.NoError(t, g.Apply(log))
		assert.True(t, g.HasNode("corpus/doc#tok_1"))
		assert.Equal(t, 1, g.NodeCount())

		n, err := g.GetNode("corpus/doc#tok_1")
		require.NoError(t, err)
		v, ok := n.Anno(KeyTok)
		assert.True(t, ok)
		assert.Equal(t, "hello", v)
	})

	t.Run("duplicate_add_node_fails_whole_log", func(t *testing.T) {
		var log Log
		log.Append(AddNode("corpus/doc#tok_1"))
		err := g.Apply(log)
		require.ErrorIs(t, err, ErrDuplicateNode)
	})
}

func TestGraph_Edges(t *testing.T) {
	g := New()
	comp := ComponentRef{Type: Ordering, Layer: "annis", Name: ""}

	var log Log
	log.Append(AddNode("corpus/doc#tok_1"))
	log.Append(AddNode("corpus/doc#tok_2"))
	log.Append(AddEdge("corpus/doc#tok_1", "corpus/doc#tok_2", comp))
	require.NoError(t, g.Apply(log))

	out := g.OutgoingEdges("corpus/doc#tok_1", comp)
	require.Len(t, out, 1)
	assert.Equal(t, NodeName("corpus/doc#tok_2"), out[0].Target)

	in := g.IncomingEdges("corpus/doc#tok_2", comp)
	require.Len(t, in, 1)
	assert.Equal(t, NodeName("corpus/doc#tok_1"), in[0].Source)

	all := g.AllEdges(comp)
	assert.Len(t, all, 1)

	comps := g.Components()
	assert.Contains(t, comps, comp)
}

func TestGraph_DeleteNodeCascadesEdges(t *testing.T) {
	g := New()
	comp := ComponentRef{Type: Pointing, Layer: "dep", Name: "head"}

	var log Log
	log.Append(AddNode("a"))
	log.Append(AddNode("b"))
	log.Append(AddEdge("a", "b", comp))
	require.NoError(t, g.Apply(log))

	var del Log
	del.Append(DeleteNode("a"))
	require.NoError(t, g.Apply(del))

	assert.False(t, g.HasNode("a"))
	assert.Empty(t, g.OutgoingEdges("a", comp))
	assert.Empty(t, g.IncomingEdges("b", comp))
}

func TestGraph_NodesByKey(t *testing.T) {
	g := New()
	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyNodeType, NodeTypeNode))
	log.Append(AddNode("n2"))
	log.Append(AddNodeLabel("n2", KeyNodeType, NodeTypeNode))
	log.Append(AddNode("n3"))
	log.Append(AddNodeLabel("n3", KeyNodeType, NodeTypeFile))
	require.NoError(t, g.Apply(log))

	var names []NodeName
	g.NodesByKey(KeyNodeType, nil, func(n *Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.Equal(t, []NodeName{"n1", "n2", "n3"}, names)

	want := NodeTypeFile
	names = nil
	g.NodesByKey(KeyNodeType, &want, func(n *Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.Equal(t, []NodeName{"n3"}, names)
}

func TestGraph_ApplyIsAtomic(t *testing.T) {
	g := New()
	var seed Log
	seed.Append(AddNode("x"))
	require.NoError(t, g.Apply(seed))

	var bad Log
	bad.Append(AddNode("y"))
	bad.Append(AddNode("x")) // duplicate, should fail whole batch
	err := g.Apply(bad)
	require.Error(t, err)
	assert.False(t, g.HasNode("y"), "partial log must not be applied")
}

func TestGraph_EmptyLogIsNoOp(t *testing.T) {
	g := New()
	require.NoError(t, g.Apply(AddNode("seed").asLog()))
	before := g.NodeCount()
	require.NoError(t, g.Apply(NewLog()))
	assert.Equal(t, before, g.NodeCount())
}

// asLog is a test-only helper turning a single record into a one-record Log.
func (r Record) asLog() Log { return NewLog(r) }
