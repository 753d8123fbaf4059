package graph

// Stats holds per-key counts and value histograms, computed lazily: Apply
// only flips statsDirty, and the first call to Stats after that recomputes
// a full pass. This follows the teacher's "invalidate on write, recompute
// on first read" rule rather than maintaining running counters per-update,
// trading update-time cost for query-time cost since graph operations
// snapshot statistics once per op (§4.6 step 2) rather than per-record.
type Stats struct {
	KeyCounts   map[AnnoKey]int
	ValueCounts map[AnnoKey]map[string]int
}

// Stats returns the current statistics snapshot, recomputing if the graph
// has been mutated since the last call.
func (g *Graph) Stats() *Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.statsDirty && g.stats != nil {
		return g.stats
	}
	s := &Stats{
		KeyCounts:   make(map[AnnoKey]int),
		ValueCounts: make(map[AnnoKey]map[string]int),
	}
	for _, n := range g.nodes {
		for k, v := range n.Annos {
			s.KeyCounts[k]++
			vc := s.ValueCounts[k]
			if vc == nil {
				vc = make(map[string]int)
				s.ValueCounts[k] = vc
			}
			vc[v]++
		}
	}
	g.stats = s
	g.statsDirty = false
	return s
}
