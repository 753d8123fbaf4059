package ops

import (
	"context"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("revise", func() module.GraphOperation { return &ReviseOp{} })
}

// ReviseOp performs declarative bulk edits over node names, annotation
// keys, namespaces, components, and reachable subgraphs, per §4.7's revise
// contract. Categories run in the fixed order below; the scratch graph is
// re-read between categories so later rules observe earlier effects.
//
// Config tables (all optional, each a list):
//
//	rename_node      = [{from="...", to="..."}]
//	delete_node      = [{name="..."}]
//	rename_key       = [{namespace="...", name="...", to_namespace="...", to_name="..."}]
//	delete_key       = [{namespace="...", name="..."}]
//	rename_edge_key  = [{namespace="...", name="...", to_namespace="...", to_name="..."}]
//	delete_edge_key  = [{namespace="...", name="..."}]
//	rename_namespace = [{from="...", to="..."}]
//	delete_namespace = [{namespace="..."}]
//	rename_component = [{from={ctype="...",layer="...",name="..."}, to={ctype="...",layer="...",name="..."}}]
//	delete_component = [{component={ctype="...",layer="...",name="..."}}]
//	delete_subgraph  = [{root="..."}]
//	remove_match     = [{query="...", indices=[1,2], annotation="ns::key"}]  // annotation optional: delete that label instead of the node
type ReviseOp struct{}

func (ReviseOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	scratch := cloneGraph(g)
	var total graph.Log

	categories := []func(*graph.Graph, map[string]any) (graph.Log, error){
		reviseRenameNode,
		reviseDeleteNode,
		reviseRenameKey,
		reviseDeleteKey,
		reviseRenameEdgeKey,
		reviseDeleteEdgeKey,
		reviseRenameNamespace,
		reviseDeleteNamespace,
		reviseRenameComponent,
		reviseDeleteComponent,
		reviseDeleteSubgraph,
		reviseRemoveMatch,
	}
	for _, cat := range categories {
		catLog, err := cat(scratch, config)
		if err != nil {
			return graph.Log{}, nil, err
		}
		if catLog.Len() == 0 {
			continue
		}
		if err := scratch.Apply(catLog); err != nil {
			return graph.Log{}, nil, errField("revise", "category application failed: "+err.Error())
		}
		total.Concat(catLog)
	}
	return total, nil, nil
}

func reviseRenameNode(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "rename_node")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		from, err := strField(rule, "from")
		if err != nil {
			return graph.Log{}, err
		}
		to, err := strField(rule, "to")
		if err != nil {
			return graph.Log{}, err
		}
		fromName, toName := graph.NodeName(from), graph.NodeName(to)
		if g.HasNode(toName) {
			return graph.Log{}, errField("rename_node", "collision on rename target "+to)
		}
		n, err := g.GetNode(fromName)
		if err != nil {
			continue
		}
		log.Append(graph.AddNode(toName))
		for k, v := range n.Annos {
			log.Append(graph.AddNodeLabel(toName, k, v))
		}
		for _, comp := range g.Components() {
			for _, e := range g.OutgoingEdges(fromName, comp) {
				log.Append(graph.AddEdge(toName, e.Target, comp))
				for k, v := range e.Annos {
					log.Append(graph.AddEdgeLabel(toName, e.Target, comp, k, v))
				}
			}
			for _, e := range g.IncomingEdges(fromName, comp) {
				if e.Source == fromName {
					continue // self-loop already handled by the outgoing pass
				}
				log.Append(graph.AddEdge(e.Source, toName, comp))
				for k, v := range e.Annos {
					log.Append(graph.AddEdgeLabel(e.Source, toName, comp, k, v))
				}
			}
		}
		log.Append(graph.DeleteNode(fromName))
	}
	return log, nil
}

func reviseDeleteNode(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_node")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		name, err := strField(rule, "name")
		if err != nil {
			return graph.Log{}, err
		}
		if g.HasNode(graph.NodeName(name)) {
			log.Append(graph.DeleteNode(graph.NodeName(name)))
		}
	}
	return log, nil
}

func reviseRenameKey(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "rename_key")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		from, to, err := renameKeyPair(rule)
		if err != nil {
			return graph.Log{}, err
		}
		g.NodesByKey(from, nil, func(n *graph.Node) bool {
			v, _ := n.Anno(from)
			log.Append(graph.DeleteNodeLabel(n.Name, from))
			log.Append(graph.AddNodeLabel(n.Name, to, v))
			return true
		})
	}
	return log, nil
}

func reviseDeleteKey(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_key")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		key, err := keyFromRule(rule)
		if err != nil {
			return graph.Log{}, err
		}
		g.NodesByKey(key, nil, func(n *graph.Node) bool {
			log.Append(graph.DeleteNodeLabel(n.Name, key))
			return true
		})
	}
	return log, nil
}

func reviseRenameEdgeKey(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "rename_edge_key")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		from, to, err := renameKeyPair(rule)
		if err != nil {
			return graph.Log{}, err
		}
		for _, comp := range g.Components() {
			for _, e := range g.AllEdges(comp) {
				if v, ok := e.Anno(from); ok {
					log.Append(graph.DeleteEdgeLabel(e.Source, e.Target, comp, from))
					log.Append(graph.AddEdgeLabel(e.Source, e.Target, comp, to, v))
				}
			}
		}
	}
	return log, nil
}

func reviseDeleteEdgeKey(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_edge_key")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		key, err := keyFromRule(rule)
		if err != nil {
			return graph.Log{}, err
		}
		for _, comp := range g.Components() {
			for _, e := range g.AllEdges(comp) {
				if _, ok := e.Anno(key); ok {
					log.Append(graph.DeleteEdgeLabel(e.Source, e.Target, comp, key))
				}
			}
		}
	}
	return log, nil
}

func reviseRenameNamespace(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "rename_namespace")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		from, err := strField(rule, "from")
		if err != nil {
			return graph.Log{}, err
		}
		to, err := strField(rule, "to")
		if err != nil {
			return graph.Log{}, err
		}
		for _, name := range g.AllNodeNames() {
			n, err := g.GetNode(name)
			if err != nil {
				continue
			}
			for k, v := range n.Annos {
				if k.Namespace != from {
					continue
				}
				log.Append(graph.DeleteNodeLabel(name, k))
				log.Append(graph.AddNodeLabel(name, graph.AnnoKey{Namespace: to, Name: k.Name}, v))
			}
		}
	}
	return log, nil
}

func reviseDeleteNamespace(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_namespace")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		ns, err := strField(rule, "namespace")
		if err != nil {
			return graph.Log{}, err
		}
		for _, name := range g.AllNodeNames() {
			n, err := g.GetNode(name)
			if err != nil {
				continue
			}
			for k := range n.Annos {
				if k.Namespace == ns {
					log.Append(graph.DeleteNodeLabel(name, k))
				}
			}
		}
	}
	return log, nil
}

func reviseRenameComponent(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "rename_component")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		from, err := parseComponentRef(rule, "from")
		if err != nil {
			return graph.Log{}, err
		}
		to, err := parseComponentRef(rule, "to")
		if err != nil {
			return graph.Log{}, err
		}
		for _, e := range g.AllEdges(from) {
			log.Append(graph.DeleteEdge(e.Source, e.Target, from))
			log.Append(graph.AddEdge(e.Source, e.Target, to))
			for k, v := range e.Annos {
				log.Append(graph.AddEdgeLabel(e.Source, e.Target, to, k, v))
			}
		}
	}
	return log, nil
}

func reviseDeleteComponent(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_component")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	for _, rule := range rules {
		comp, err := parseComponentRef(rule, "component")
		if err != nil {
			return graph.Log{}, err
		}
		for _, e := range g.AllEdges(comp) {
			log.Append(graph.DeleteEdge(e.Source, e.Target, comp))
		}
	}
	return log, nil
}

// reviseDeleteSubgraph deletes every node reachable from each root via the
// inverse PartOf/annis/ hierarchy — "delete subgraph" in §4.7's revise.
func reviseDeleteSubgraph(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "delete_subgraph")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	seen := map[graph.NodeName]struct{}{}
	for _, rule := range rules {
		root, err := strField(rule, "root")
		if err != nil {
			return graph.Log{}, err
		}
		var walk func(graph.NodeName)
		walk = func(name graph.NodeName) {
			if _, ok := seen[name]; ok {
				return
			}
			seen[name] = struct{}{}
			for _, e := range g.IncomingEdges(name, graph.PartOfAnnis) {
				walk(e.Source)
			}
		}
		walk(graph.NodeName(root))
	}
	for name := range seen {
		log.Append(graph.DeleteNode(name))
	}
	return log, nil
}

// reviseRemoveMatch deletes nodes or specific annotations identified by a
// query plus a 1-based index list over the matched tuple.
func reviseRemoveMatch(g *graph.Graph, config map[string]any) (graph.Log, error) {
	rules, err := mapSliceField(config, "remove_match")
	if err != nil {
		return graph.Log{}, err
	}
	var log graph.Log
	ev := query.New(g)
	for _, rule := range rules {
		q, err := strField(rule, "query")
		if err != nil {
			return graph.Log{}, err
		}
		indices, err := intSliceField(rule, "indices")
		if err != nil {
			return graph.Log{}, err
		}
		annoKeyStr := optStrField(rule, "annotation", "")
		var annoKey graph.AnnoKey
		deleteAnno := annoKeyStr != ""
		if deleteAnno {
			annoKey, err = parseAnnoKey("annotation", annoKeyStr)
			if err != nil {
				return graph.Log{}, err
			}
		}
		err = ev.Find(q, func(t query.Tuple) bool {
			for _, idx := range indices {
				i := idx - 1
				if i < 0 || i >= len(t.Nodes) || t.Nodes[i] == nil {
					continue
				}
				name := t.Nodes[i].Name
				if deleteAnno {
					log.Append(graph.DeleteNodeLabel(name, annoKey))
				} else {
					log.Append(graph.DeleteNode(name))
				}
			}
			return true
		})
		if err != nil {
			return graph.Log{}, err
		}
	}
	return log, nil
}

func renameKeyPair(rule map[string]any) (graph.AnnoKey, graph.AnnoKey, error) {
	ns, err := strField(rule, "namespace")
	if err != nil {
		return graph.AnnoKey{}, graph.AnnoKey{}, err
	}
	name, err := strField(rule, "name")
	if err != nil {
		return graph.AnnoKey{}, graph.AnnoKey{}, err
	}
	toNS := optStrField(rule, "to_namespace", ns)
	toName, err := strField(rule, "to_name")
	if err != nil {
		return graph.AnnoKey{}, graph.AnnoKey{}, err
	}
	return graph.AnnoKey{Namespace: ns, Name: name}, graph.AnnoKey{Namespace: toNS, Name: toName}, nil
}

func keyFromRule(rule map[string]any) (graph.AnnoKey, error) {
	ns, err := strField(rule, "namespace")
	if err != nil {
		return graph.AnnoKey{}, err
	}
	name, err := strField(rule, "name")
	if err != nil {
		return graph.AnnoKey{}, err
	}
	return graph.AnnoKey{Namespace: ns, Name: name}, nil
}
