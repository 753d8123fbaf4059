package query

import (
	"regexp"
	"sort"

	"github.com/brannveig/corpusgraph/pkg/graph"
)

// Tuple is one ordered match: Nodes[i] corresponds to Query.Atoms[i].
// Nodes[i] is nil when that atom was Optional and had no match.
type Tuple struct {
	Nodes []*graph.Node
}

// Evaluator runs queries against a read-only graph.Engine. It holds no
// state of its own beyond a small regex cache, so one Evaluator can be
// shared across an entire workflow run.
type Evaluator struct {
	g        graph.Engine
	reCache  map[string]*regexp.Regexp
}

// New returns an Evaluator over g.
func New(g graph.Engine) *Evaluator {
	return &Evaluator{g: g, reCache: make(map[string]*regexp.Regexp)}
}

// Find evaluates src and invokes fn for each resulting tuple, in
// left-to-right match order. Iteration stops early if fn returns false.
// An unparseable query is a hard error; a semantically empty query (no
// atom matches anything) yields zero tuples, not an error.
func (e *Evaluator) Find(src string, fn func(Tuple) bool) error {
	q, err := Parse(src)
	if err != nil {
		return err
	}
	return e.run(q, fn)
}

// Count returns the number of tuples src matches.
func (e *Evaluator) Count(src string) (int, error) {
	n := 0
	err := e.Find(src, func(Tuple) bool { n++; return true })
	return n, err
}

func (e *Evaluator) run(q Query, fn func(Tuple) bool) error {
	type partial struct {
		nodes []*graph.Node
	}

	first, err := e.candidates(q.Atoms[0])
	if err != nil {
		return err
	}
	frontier := make([]partial, 0, len(first))
	for _, n := range first {
		frontier = append(frontier, partial{nodes: []*graph.Node{n}})
	}
	if len(q.Atoms[0].Name) > 0 && q.Atoms[0].Optional && len(first) == 0 {
		frontier = append(frontier, partial{nodes: []*graph.Node{nil}})
	}

	for i := 1; i < len(q.Atoms); i++ {
		atom := q.Atoms[i]
		pair := q.Pairs[i-1]
		cands, err := e.candidates(atom)
		if err != nil {
			return err
		}
		var next []partial
		for _, p := range frontier {
			prev := p.nodes[i-1]
			matchedAny := false
			if prev != nil {
				for _, c := range cands {
					ok, err := e.relates(pair, prev, c)
					if err != nil {
						return err
					}
					if ok {
						matchedAny = true
						next = append(next, partial{nodes: append(append([]*graph.Node{}, p.nodes...), c)})
					}
				}
			}
			if !matchedAny && atom.Optional {
				next = append(next, partial{nodes: append(append([]*graph.Node{}, p.nodes...), nil)})
			}
		}
		frontier = next
	}

	for _, p := range frontier {
		if !fn(Tuple{Nodes: p.nodes}) {
			return nil
		}
	}
	return nil
}

// candidates returns every node satisfying atom's own constraint,
// independent of any pair relation, in ascending-name order so results are
// deterministic. An atom without a namespace matches a key of that name in
// any namespace.
func (e *Evaluator) candidates(atom NodeAtom) ([]*graph.Node, error) {
	keys := []graph.AnnoKey{{Namespace: atom.Namespace, Name: atom.Name}}
	if atom.Namespace == "" {
		keys = keys[:0]
		for k := range e.g.Stats().KeyCounts {
			if k.Name == atom.Name {
				keys = append(keys, k)
			}
		}
	}
	var out []*graph.Node
	seen := map[graph.NodeName]bool{}
	add := func(n *graph.Node) {
		if !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n)
		}
	}

	for _, key := range keys {
		switch atom.Op {
		case ValueNone:
			e.g.NodesByKey(key, nil, func(n *graph.Node) bool { add(n); return true })
		case ValueEqual:
			val := atom.Value
			e.g.NodesByKey(key, &val, func(n *graph.Node) bool { add(n); return true })
		case ValueNotEqual:
			e.g.NodesByKey(key, nil, func(n *graph.Node) bool {
				if v, _ := n.Anno(key); v != atom.Value {
					add(n)
				}
				return true
			})
		case ValueRegex:
			re, err := e.regex(atom.Value)
			if err != nil {
				return nil, err
			}
			e.g.NodesByKey(key, nil, func(n *graph.Node) bool {
				if v, _ := n.Anno(key); re.MatchString(v) {
					add(n)
				}
				return true
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// regex anchors the pattern at both ends, per the spec's requirement that
// query regular expressions never match a substring.
func (e *Evaluator) regex(src string) (*regexp.Regexp, error) {
	if re, ok := e.reCache[src]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + src + ")$")
	if err != nil {
		return nil, err
	}
	e.reCache[src] = re
	return re, nil
}

func (e *Evaluator) relates(pair Pair, a, b *graph.Node) (bool, error) {
	switch pair.Kind {
	case PairIdent:
		return a.Name == b.Name, nil
	case PairPrecedence:
		comp := orderingComponent(pair.Layer)
		for _, edge := range e.g.OutgoingEdges(a.Name, comp) {
			if edge.Target == b.Name {
				return true, nil
			}
		}
		return false, nil
	case PairIdenticalCover:
		ca, cb := e.coverage(a.Name), e.coverage(b.Name)
		return sameSet(ca, cb), nil
	case PairLeftAligned:
		ca, cb := sortedCoverage(e.coverage(a.Name)), sortedCoverage(e.coverage(b.Name))
		return len(ca) > 0 && len(cb) > 0 && ca[0] == cb[0], nil
	case PairRightAligned:
		ca, cb := sortedCoverage(e.coverage(a.Name)), sortedCoverage(e.coverage(b.Name))
		return len(ca) > 0 && len(cb) > 0 && ca[len(ca)-1] == cb[len(cb)-1], nil
	case PairOverlap:
		ca, cb := e.coverage(a.Name), e.coverage(b.Name)
		for n := range ca {
			if _, ok := cb[n]; ok {
				return true, nil
			}
		}
		return false, nil
	case PairInclusion:
		ca, cb := e.coverage(a.Name), e.coverage(b.Name)
		for n := range cb {
			if _, ok := ca[n]; !ok {
				return false, nil
			}
		}
		return len(cb) > 0, nil
	case PairReachability:
		return e.reachableViaPartOf(a.Name, b.Name), nil
	case PairEdgePointing:
		comp := graph.ComponentRef{Type: graph.Pointing, Layer: pair.Layer, Name: pair.Component}
		return e.hasEdge(comp, a.Name, b.Name, pair.EdgeAnno), nil
	case PairEdgeDominance:
		comp := graph.ComponentRef{Type: graph.Dominance, Layer: pair.Layer, Name: pair.Component}
		return e.hasEdge(comp, a.Name, b.Name, pair.EdgeAnno), nil
	}
	return false, nil
}

func (e *Evaluator) hasEdge(comp graph.ComponentRef, source, target graph.NodeName, filter map[string]string) bool {
	for _, edge := range e.g.OutgoingEdges(source, comp) {
		if edge.Target != target {
			continue
		}
		if !edgeMatchesFilter(edge, filter) {
			continue
		}
		return true
	}
	return false
}

func edgeMatchesFilter(e *graph.Edge, filter map[string]string) bool {
	for k, v := range filter {
		found := false
		for annoKey, annoVal := range e.Annos {
			if annoKey.Name == k && annoVal == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func orderingComponent(layer string) graph.ComponentRef {
	if layer == "" {
		return graph.DefaultOrdering
	}
	return graph.ComponentRef{Type: graph.Ordering, Layer: layer, Name: ""}
}

// coverage returns the set of coverage-terminal token names reachable from
// node via Coverage edges (itself, if node has no outgoing Coverage edge).
func (e *Evaluator) coverage(node graph.NodeName) map[graph.NodeName]struct{} {
	comp := graph.ComponentRef{Type: graph.Coverage, Layer: "", Name: ""}
	seen := map[graph.NodeName]struct{}{}
	var walk func(n graph.NodeName)
	walk = func(n graph.NodeName) {
		out := e.g.OutgoingEdges(n, comp)
		if len(out) == 0 {
			seen[n] = struct{}{}
			return
		}
		for _, edge := range out {
			walk(edge.Target)
		}
	}
	walk(node)
	return seen
}

func sameSet(a, b map[graph.NodeName]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if _, ok := b[n]; !ok {
			return false
		}
	}
	return true
}

func sortedCoverage(set map[graph.NodeName]struct{}) []graph.NodeName {
	out := make([]graph.NodeName, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// reachableViaPartOf walks inverse PartOf/annis/ edges (i.e. the outgoing
// direction from child to parent, which is how PartOf edges are stored:
// AddEdge(child, parent, PartOfAnnis)) from child up to ancestor.
func (e *Evaluator) reachableViaPartOf(child, ancestor graph.NodeName) bool {
	visited := map[graph.NodeName]struct{}{}
	var walk func(n graph.NodeName) bool
	walk = func(n graph.NodeName) bool {
		if n == ancestor {
			return true
		}
		if _, ok := visited[n]; ok {
			return false
		}
		visited[n] = struct{}{}
		for _, edge := range e.g.OutgoingEdges(n, graph.PartOfAnnis) {
			if walk(edge.Target) {
				return true
			}
		}
		return false
	}
	return walk(child)
}
