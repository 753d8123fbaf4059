package ops

import "github.com/brannveig/corpusgraph/pkg/graph"

// cloneGraph copies g's full visible state into a fresh in-memory Graph.
// Several operations (revise's "re-read between categories", map's
// UntilUnchanged fixed point) need to observe their own partial output
// before the scheduler applies anything; they do so against a private
// scratch copy and return the accumulated log for the real Apply.
func cloneGraph(g graph.Engine) *graph.Graph {
	scratch := graph.New()
	var log graph.Log
	for _, name := range g.AllNodeNames() {
		n, err := g.GetNode(name)
		if err != nil {
			continue
		}
		log.Append(graph.AddNode(name))
		for k, v := range n.Annos {
			log.Append(graph.AddNodeLabel(name, k, v))
		}
	}
	for _, comp := range g.Components() {
		for _, e := range g.AllEdges(comp) {
			log.Append(graph.AddEdge(e.Source, e.Target, comp))
			for k, v := range e.Annos {
				log.Append(graph.AddEdgeLabel(e.Source, e.Target, comp, k, v))
			}
		}
	}
	_ = scratch.Apply(log)
	return scratch
}
