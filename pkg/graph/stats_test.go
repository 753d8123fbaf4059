package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_StatsRecomputesOnDirty(t *testing.T) {
	g := New()
	s := g.Stats()
	assert.Empty(t, s.KeyCounts)

	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyTok, "cat"))
	log.Append(AddNode("n2"))
	log.Append(AddNodeLabel("n2", KeyTok, "cat"))
	require.NoError(t, g.Apply(log))

	s = g.Stats()
	assert.Equal(t, 2, s.KeyCounts[KeyTok])
	assert.Equal(t, 2, s.ValueCounts[KeyTok]["cat"])
}

func TestGraph_StatsCachedUntilNextApply(t *testing.T) {
	g := New()
	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyTok, "dog"))
	require.NoError(t, g.Apply(log))

	first := g.Stats()
	second := g.Stats()
	assert.Same(t, first, second, "stats must be cached between mutations")

	var more Log
	more.Append(AddNode("n2"))
	more.Append(AddNodeLabel("n2", KeyTok, "dog"))
	require.NoError(t, g.Apply(more))

	third := g.Stats()
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, third.KeyCounts[KeyTok])
}
