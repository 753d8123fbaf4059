package ops

import (
	"context"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("collapse", func() module.GraphOperation { return &CollapseOp{} })
}

// CollapseOp contracts every connected edge of a component into a single
// hypernode, per §4.7's collapse contract. Connectivity is found by
// union-find over the component's edges unless disjoint is set, in which
// case every edge is assumed already disjoint and is contracted directly
// without a union-find pass.
//
// Config:
//
//	component = { ctype = "Dominance", layer = "const", name = "edge" }
//	disjoint  = false
type CollapseOp struct{}

func (CollapseOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	comp, err := parseComponentRef(config, "component")
	if err != nil {
		return graph.Log{}, nil, err
	}
	disjoint := boolField(config, "disjoint", false)

	edges := g.AllEdges(comp)
	if len(edges) == 0 {
		return graph.Log{}, nil, nil
	}

	var groups [][]graph.NodeName
	if disjoint {
		for _, e := range edges {
			groups = append(groups, []graph.NodeName{e.Source, e.Target})
		}
	} else {
		groups = unionFindGroups(edges)
	}

	var log graph.Log
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		hyper := hypernodeName(members)
		log.Append(graph.AddNode(hyper))

		seenAnno := map[graph.AnnoKey]bool{}
		for _, m := range members {
			n, err := g.GetNode(m)
			if err != nil {
				continue
			}
			for k, v := range n.Annos {
				if seenAnno[k] {
					continue
				}
				seenAnno[k] = true
				log.Append(graph.AddNodeLabel(hyper, k, v))
			}
		}

		memberSet := map[graph.NodeName]bool{}
		for _, m := range members {
			memberSet[m] = true
		}
		for _, other := range g.Components() {
			if other == comp {
				continue
			}
			for _, m := range members {
				for _, e := range g.OutgoingEdges(m, other) {
					if memberSet[e.Target] {
						continue
					}
					log.Append(graph.AddEdge(hyper, e.Target, other))
					for k, v := range e.Annos {
						log.Append(graph.AddEdgeLabel(hyper, e.Target, other, k, v))
					}
				}
				for _, e := range g.IncomingEdges(m, other) {
					if memberSet[e.Source] {
						continue
					}
					log.Append(graph.AddEdge(e.Source, hyper, other))
					for k, v := range e.Annos {
						log.Append(graph.AddEdgeLabel(e.Source, hyper, other, k, v))
					}
				}
			}
		}

		for _, e := range edges {
			if memberSet[e.Source] && memberSet[e.Target] {
				log.Append(graph.DeleteEdge(e.Source, e.Target, comp))
			}
		}
		for _, m := range members {
			log.Append(graph.DeleteNode(m))
		}
	}
	return log, nil, nil
}

// unionFindGroups partitions the nodes touched by edges into connected
// components.
func unionFindGroups(edges []*graph.Edge) [][]graph.NodeName {
	parent := map[graph.NodeName]graph.NodeName{}
	var find func(graph.NodeName) graph.NodeName
	find = func(n graph.NodeName) graph.NodeName {
		if p, ok := parent[n]; ok && p != n {
			parent[n] = find(p)
			return parent[n]
		}
		parent[n] = n
		return n
	}
	union := func(a, b graph.NodeName) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, e := range edges {
		find(e.Source)
		find(e.Target)
		union(e.Source, e.Target)
	}

	byRoot := map[graph.NodeName][]graph.NodeName{}
	for n := range parent {
		root := find(n)
		byRoot[root] = append(byRoot[root], n)
	}
	roots := make([]graph.NodeName, 0, len(byRoot))
	for r := range byRoot {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	out := make([][]graph.NodeName, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	return out
}

// hypernodeName builds a deterministic name for a contracted node: "hyper#"
// followed by the first 16 hex digits of a blake2b-256 digest of the
// sorted member names, so re-running collapse
// against unchanged input yields the same hypernode identity.
func hypernodeName(members []graph.NodeName) graph.NodeName {
	h, _ := blake2b.New256(nil)
	for _, m := range members {
		h.Write([]byte(m))
		h.Write([]byte{0})
	}
	return graph.NodeName("hyper#" + hex.EncodeToString(h.Sum(nil))[:16])
}
