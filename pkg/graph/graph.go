package graph

import (
	"fmt"
	"sort"
	"sync"
)

// componentTable holds one component's directed multigraph: an edge list
// plus outgoing/incoming adjacency indexed by node, following the teacher's
// MemoryEngine index layout (nodesByLabel / outgoingEdges / incomingEdges)
// generalized to per-component edge sets instead of one flat edge table.
type componentTable struct {
	edges    map[edgeKey]*Edge
	outgoing map[NodeName]map[edgeKey]struct{}
	incoming map[NodeName]map[edgeKey]struct{}
}

type edgeKey struct {
	source NodeName
	target NodeName
}

func newComponentTable() *componentTable {
	return &componentTable{
		edges:    make(map[edgeKey]*Edge),
		outgoing: make(map[NodeName]map[edgeKey]struct{}),
		incoming: make(map[NodeName]map[edgeKey]struct{}),
	}
}

// Graph is the in-memory annotation graph: a shared node table plus one
// componentTable per (type, layer, name) triple. It is the default Engine
// selected when ANNATTO_IN_MEMORY is unset or true; DiskGraph (disk.go)
// offers the same read surface backed by badger for larger corpora.
//
// Graph is created empty, mutated only by Apply, and is safe for
// concurrent readers while no Apply is in flight (the scheduler guarantees
// this: Apply holds the sole write lock, per §5's "Graph is the only
// shared resource... owned by the scheduler").
type Graph struct {
	mu         sync.RWMutex
	nodes      map[NodeName]*Node
	components map[ComponentRef]*componentTable
	byKey      map[AnnoKey]map[NodeName]struct{}

	statsDirty bool
	stats      *Stats
}

// New returns an empty annotation graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[NodeName]*Node),
		components: make(map[ComponentRef]*componentTable),
		byKey:      make(map[AnnoKey]map[NodeName]struct{}),
		statsDirty: true,
	}
}

// GetNode returns a copy of the named node, or ErrUnknownNode.
func (g *Graph) GetNode(name NodeName) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return &Node{Name: n.Name, Annos: cloneAnnos(n.Annos)}, nil
}

// HasNode reports whether a node by that name exists.
func (g *Graph) HasNode(name NodeName) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[name]
	return ok
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// NodesByKey iterates, in ascending name order, every node carrying the
// given annotation key. If value is non-nil, only nodes whose value for
// that key equals *value are visited. Iteration stops early if fn returns
// false.
func (g *Graph) NodesByKey(key AnnoKey, value *string, fn func(*Node) bool) {
	g.mu.RLock()
	names := g.byKey[key]
	ordered := make([]NodeName, 0, len(names))
	for n := range names {
		ordered = append(ordered, n)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	snapshot := make([]*Node, 0, len(ordered))
	for _, n := range ordered {
		node := g.nodes[n]
		if node == nil {
			continue
		}
		if value != nil {
			if v, ok := node.Annos[key]; !ok || v != *value {
				continue
			}
		}
		snapshot = append(snapshot, &Node{Name: node.Name, Annos: cloneAnnos(node.Annos)})
	}
	g.mu.RUnlock()

	for _, node := range snapshot {
		if !fn(node) {
			return
		}
	}
}

// AllNodeNames returns every node name in ascending order. Intended for
// operations that need a stable full scan (revise's subgraph deletion,
// collapse's union-find).
func (g *Graph) AllNodeNames() []NodeName {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]NodeName, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OutgoingEdges returns a copy of every edge leaving node in component, in
// insertion-independent but deterministic (target-sorted) order.
func (g *Graph) OutgoingEdges(node NodeName, component ComponentRef) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ct := g.components[component]
	if ct == nil {
		return nil
	}
	return collectEdges(ct, ct.outgoing[node])
}

// IncomingEdges returns a copy of every edge entering node in component.
func (g *Graph) IncomingEdges(node NodeName, component ComponentRef) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ct := g.components[component]
	if ct == nil {
		return nil
	}
	return collectEdges(ct, ct.incoming[node])
}

// AllEdges returns every edge in component, source-then-target sorted.
func (g *Graph) AllEdges(component ComponentRef) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ct := g.components[component]
	if ct == nil {
		return nil
	}
	out := make([]*Edge, 0, len(ct.edges))
	for _, e := range ct.edges {
		out = append(out, &Edge{Source: e.Source, Target: e.Target, Annos: cloneAnnos(e.Annos)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Components returns every component reference currently present in the
// graph (components come into existence on first AddEdge into them).
func (g *Graph) Components() []ComponentRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ComponentRef, 0, len(g.components))
	for c := range g.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func collectEdges(ct *componentTable, keys map[edgeKey]struct{}) []*Edge {
	out := make([]*Edge, 0, len(keys))
	for k := range keys {
		e := ct.edges[k]
		out = append(out, &Edge{Source: e.Source, Target: e.Target, Annos: cloneAnnos(e.Annos)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Snapshot returns a read-only view of the graph for an Exporter. The
// snapshot shares the graph's storage (no copy is taken) but the scheduler
// guarantees no further Apply happens while an export phase is running, so
// it stays valid for the exporter's entire execution — per §5, "the
// snapshot must remain valid for the exporter's entire execution".
func (g *Graph) Snapshot() *Graph { return g }
