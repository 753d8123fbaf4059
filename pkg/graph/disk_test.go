package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDisk(t *testing.T) *DiskGraph {
	t.Helper()
	d, err := OpenDisk(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDiskGraph_AddNodeAndLabel(t *testing.T) {
	d := openTestDisk(t)

	var log Log
	log.Append(AddNode("corpus/doc#tok_1"))
	log.Append(AddNodeLabel("corpus/doc#tok_1", KeyTok, "hello"))
	require.NoError(t, d.Apply(log))

	assert.True(t, d.HasNode("corpus/doc#tok_1"))
	assert.Equal(t, 1, d.NodeCount())

	n, err := d.GetNode("corpus/doc#tok_1")
	require.NoError(t, err)
	v, ok := n.Anno(KeyTok)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestDiskGraph_ApplyIsAtomic(t *testing.T) {
	d := openTestDisk(t)

	var seed Log
	seed.Append(AddNode("x"))
	require.NoError(t, d.Apply(seed))

	var bad Log
	bad.Append(AddNode("y"))
	bad.Append(AddNode("x"))
	err := d.Apply(bad)
	require.Error(t, err)
	assert.False(t, d.HasNode("y"))
}

func TestDiskGraph_EdgesAndComponents(t *testing.T) {
	d := openTestDisk(t)
	comp := ComponentRef{Type: Ordering, Layer: "annis", Name: ""}

	var log Log
	log.Append(AddNode("a"))
	log.Append(AddNode("b"))
	log.Append(AddEdge("a", "b", comp))
	require.NoError(t, d.Apply(log))

	out := d.OutgoingEdges("a", comp)
	require.Len(t, out, 1)
	assert.Equal(t, NodeName("b"), out[0].Target)

	in := d.IncomingEdges("b", comp)
	require.Len(t, in, 1)
	assert.Equal(t, NodeName("a"), in[0].Source)

	assert.Len(t, d.AllEdges(comp), 1)
	assert.Contains(t, d.Components(), comp)
}

func TestDiskGraph_NodesByKey(t *testing.T) {
	d := openTestDisk(t)

	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyNodeType, NodeTypeNode))
	log.Append(AddNode("n2"))
	log.Append(AddNodeLabel("n2", KeyNodeType, NodeTypeFile))
	require.NoError(t, d.Apply(log))

	var names []NodeName
	d.NodesByKey(KeyNodeType, nil, func(n *Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.ElementsMatch(t, []NodeName{"n1", "n2"}, names)
}

func TestDiskGraph_Stats(t *testing.T) {
	d := openTestDisk(t)
	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyTok, "cat"))
	log.Append(AddNode("n2"))
	log.Append(AddNodeLabel("n2", KeyTok, "cat"))
	require.NoError(t, d.Apply(log))

	s := d.Stats()
	assert.Equal(t, 2, s.KeyCounts[KeyTok])
	assert.Equal(t, 2, s.ValueCounts[KeyTok]["cat"])
}
