package query

import (
	"testing"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	var log graph.Log
	log.Append(graph.AddNode("corpus/doc#tok_1"))
	log.Append(graph.AddNodeLabel("corpus/doc#tok_1", graph.KeyTok, "the"))
	log.Append(graph.AddNode("corpus/doc#tok_2"))
	log.Append(graph.AddNodeLabel("corpus/doc#tok_2", graph.KeyTok, "cat"))
	log.Append(graph.AddEdge("corpus/doc#tok_1", "corpus/doc#tok_2", graph.DefaultOrdering))
	require.NoError(t, g.Apply(log))
	return g
}

func TestParse_SimpleAtom(t *testing.T) {
	q, err := Parse(`tok="the"`)
	require.NoError(t, err)
	require.Len(t, q.Atoms, 1)
	assert.Equal(t, "tok", q.Atoms[0].Name)
	assert.Equal(t, ValueEqual, q.Atoms[0].Op)
	assert.Equal(t, "the", q.Atoms[0].Value)
}

func TestParse_PrecedencePair(t *testing.T) {
	q, err := Parse(`tok="the" . tok="cat"`)
	require.NoError(t, err)
	require.Len(t, q.Atoms, 2)
	require.Len(t, q.Pairs, 1)
	assert.Equal(t, PairPrecedence, q.Pairs[0].Kind)
}

func TestParse_NamespaceAndRegex(t *testing.T) {
	q, err := Parse(`annis:tok=/c.t/`)
	require.NoError(t, err)
	assert.Equal(t, "annis", q.Atoms[0].Namespace)
	assert.Equal(t, "tok", q.Atoms[0].Name)
	assert.Equal(t, ValueRegex, q.Atoms[0].Op)
}

func TestParse_EdgePredicate(t *testing.T) {
	q, err := Parse(`tok="a" ->head tok="b"`)
	require.NoError(t, err)
	require.Len(t, q.Pairs, 1)
	assert.Equal(t, PairEdgePointing, q.Pairs[0].Kind)
	assert.Equal(t, "head", q.Pairs[0].Component)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse(`tok=`)
	assert.Error(t, err)
}

func TestEvaluator_FindSingleAtom(t *testing.T) {
	g := buildTestGraph(t)
	ev := New(g)

	n, err := ev.Count(`tok`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEvaluator_FindExactValue(t *testing.T) {
	g := buildTestGraph(t)
	ev := New(g)

	var names []graph.NodeName
	require.NoError(t, ev.Find(`tok="the"`, func(tup Tuple) bool {
		names = append(names, tup.Nodes[0].Name)
		return true
	}))
	assert.Equal(t, []graph.NodeName{"corpus/doc#tok_1"}, names)
}

func TestEvaluator_FindPrecedence(t *testing.T) {
	g := buildTestGraph(t)
	ev := New(g)

	var tuples int
	require.NoError(t, ev.Find(`tok="the" . tok="cat"`, func(tup Tuple) bool {
		tuples++
		assert.Equal(t, graph.NodeName("corpus/doc#tok_1"), tup.Nodes[0].Name)
		assert.Equal(t, graph.NodeName("corpus/doc#tok_2"), tup.Nodes[1].Name)
		return true
	}))
	assert.Equal(t, 1, tuples)
}

func TestEvaluator_EmptyQueryYieldsZeroTuples(t *testing.T) {
	g := buildTestGraph(t)
	ev := New(g)

	n, err := ev.Count(`tok="nonexistent"`)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEvaluator_IdentOperator(t *testing.T) {
	g := buildTestGraph(t)
	ev := New(g)

	n, err := ev.Count(`tok="the" _ident_ tok="the"`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
