package ops

import (
	"context"
	"sort"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("merge", func() module.GraphOperation { return &MergeOp{} })
}

// MergeOp unifies nodes across independently imported subgraphs that
// represent the same token, aligned by a chosen annotation key, per
// §4.7's merge contract.
//
// Config:
//
//	key    = "norm::tok"   // annotation key nodes are aligned by
//	policy = "fail"        // "fail" | "forward" | "drop"
type MergeOp struct{}

func (MergeOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	keyStr, err := strField(config, "key")
	if err != nil {
		return graph.Log{}, nil, err
	}
	key, err := parseAnnoKey("key", keyStr)
	if err != nil {
		return graph.Log{}, nil, err
	}
	policy := optStrField(config, "policy", "fail")

	groups := map[string][]graph.NodeName{}
	g.NodesByKey(key, nil, func(n *graph.Node) bool {
		v, _ := n.Anno(key)
		groups[v] = append(groups[v], n.Name)
		return true
	})

	var log graph.Log
	var statuses []module.Status
	values := sortedKeys(groups)

	for _, v := range values {
		members := groups[v]
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		survivor := members[0]
		conflicting := hasConflict(g, members)
		if conflicting {
			switch policy {
			case "fail":
				return graph.Log{}, nil, errField("policy", "conflicting merge group for value "+v)
			case "drop":
				statuses = append(statuses, module.Status{Message: "merge: dropped conflicting group for " + v})
				continue
			case "forward":
				statuses = append(statuses, module.Status{Message: "merge: forwarded conflicting group for " + v})
			}
		}

		for _, dup := range members[1:] {
			rerouteIncident(g, &log, dup, survivor)
			for k, val := range mustAnnos(g, dup) {
				if k == key {
					continue
				}
				log.Append(graph.AddNodeLabel(survivor, k, val))
			}
			log.Append(graph.DeleteNode(dup))
		}
	}
	return log, statuses, nil
}

// hasConflict reports whether any two members of the group disagree on any
// shared non-alignment annotation — the signal merge treats as a policy
// case rather than a clean unification.
func hasConflict(g graph.Engine, members []graph.NodeName) bool {
	seen := map[graph.AnnoKey]string{}
	for _, m := range members {
		for k, v := range mustAnnos(g, m) {
			if prev, ok := seen[k]; ok && prev != v {
				return true
			}
			seen[k] = v
		}
	}
	return false
}

func mustAnnos(g graph.Engine, name graph.NodeName) map[graph.AnnoKey]string {
	n, err := g.GetNode(name)
	if err != nil {
		return nil
	}
	return n.Annos
}

// rerouteIncident emits edge deletions and recreations moving every edge
// incident to dup onto survivor, across every component in the graph.
func rerouteIncident(g graph.Engine, log *graph.Log, dup, survivor graph.NodeName) {
	for _, comp := range g.Components() {
		for _, e := range g.OutgoingEdges(dup, comp) {
			target := e.Target
			if target == survivor {
				continue
			}
			log.Append(graph.DeleteEdge(dup, target, comp))
			if !edgeExists(g, survivor, target, comp) {
				log.Append(graph.AddEdge(survivor, target, comp))
			}
			for k, v := range e.Annos {
				log.Append(graph.AddEdgeLabel(survivor, target, comp, k, v))
			}
		}
		for _, e := range g.IncomingEdges(dup, comp) {
			source := e.Source
			if source == survivor {
				continue
			}
			log.Append(graph.DeleteEdge(source, dup, comp))
			if !edgeExists(g, source, survivor, comp) {
				log.Append(graph.AddEdge(source, survivor, comp))
			}
			for k, v := range e.Annos {
				log.Append(graph.AddEdgeLabel(source, survivor, comp, k, v))
			}
		}
	}
}

func sortedKeys(m map[string][]graph.NodeName) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
