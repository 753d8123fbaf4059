// Package graph implements the annotation graph: the typed multigraph of
// nodes and edges, partitioned into named components, that every importer,
// graph operation, and exporter transacts against.
//
// The graph is never mutated directly. Callers build an update Log (see
// log.go) and Apply it; Apply either installs every record or leaves the
// graph untouched. This mirrors the teacher's write-ahead-log transaction
// pattern (one buffered batch, commit-or-rollback as a unit) but trades the
// teacher's single flat node/edge/label model for components: each
// (type, layer, name) triple owns its own directed multigraph over the
// shared node set, so a Coverage edge and a Pointing edge between the same
// two nodes don't collide.
package graph

import "errors"

// Sentinel errors returned by Graph.Apply and lookup methods. Wrap with
// fmt.Errorf("...: %w", ...) to attach phase/module/node context; check
// with errors.Is.
var (
	ErrUnknownNode      = errors.New("graph: unknown node")
	ErrDuplicateNode    = errors.New("graph: duplicate node")
	ErrUnknownEdge      = errors.New("graph: unknown edge")
	ErrUnknownComponent = errors.New("graph: unknown component")
	ErrInvalidKey       = errors.New("graph: invalid annotation key")
	ErrClosed           = errors.New("graph: storage closed")
)

// Reserved namespace for engine-internal annotation keys.
const ReservedNamespace = "annis"

// Well-known annotation keys in the annis namespace.
var (
	KeyTok      = AnnoKey{Namespace: ReservedNamespace, Name: "tok"}
	KeyDoc      = AnnoKey{Namespace: ReservedNamespace, Name: "doc"}
	KeyNodeName = AnnoKey{Namespace: ReservedNamespace, Name: "node_name"}
	KeyNodeType = AnnoKey{Namespace: ReservedNamespace, Name: "node_type"}
	KeyLayer    = AnnoKey{Namespace: ReservedNamespace, Name: "layer"}
	KeyTime     = AnnoKey{Namespace: ReservedNamespace, Name: "time"}
)

// Node type values carried by the annis::node_type annotation.
const (
	NodeTypeCorpus = "corpus"
	NodeTypeFile   = "file"
	NodeTypeNode   = "node"
)

// AnnoKey is a (namespace, name) pair identifying an annotation on a node
// or edge. Both parts are non-empty identifier strings.
type AnnoKey struct {
	Namespace string
	Name      string
}

// String renders the key in "ns::name" form, the form used in query text.
func (k AnnoKey) String() string {
	return k.Namespace + "::" + k.Name
}

// Valid reports whether both parts of the key are present.
func (k AnnoKey) Valid() bool {
	return k.Namespace != "" && k.Name != ""
}

// NodeName uniquely identifies a node, typically a path like
// "corpus/doc#tok_3".
type NodeName string

// ComponentType classifies the kind of edges a Component holds.
type ComponentType string

// The seven component types named in the data model.
const (
	Coverage   ComponentType = "Coverage"
	Dominance  ComponentType = "Dominance"
	Pointing   ComponentType = "Pointing"
	Ordering   ComponentType = "Ordering"
	PartOf     ComponentType = "PartOf"
	LeftToken  ComponentType = "LeftToken"
	RightToken ComponentType = "RightToken"
)

// ComponentRef is the (type, layer, name) triple naming a component. The
// reserved PartOf/annis/ hierarchy component, used for the corpus tree and
// document reachability, is PartOf{Layer: "annis", Name: ""}.
type ComponentRef struct {
	Type  ComponentType
	Layer string
	Name  string
}

// String renders the component in "Type/layer/name" form.
func (c ComponentRef) String() string {
	return string(c.Type) + "/" + c.Layer + "/" + c.Name
}

// PartOfAnnis is the canonical corpus-hierarchy component every node not a
// corpus root is connected into via an inverse edge to its parent.
var PartOfAnnis = ComponentRef{Type: PartOf, Layer: "annis", Name: ""}

// DefaultOrdering is the canonical token-chain component most Importers
// populate and most operations default to when no component is given.
var DefaultOrdering = ComponentRef{Type: Ordering, Layer: "annis", Name: ""}

// Node is a single vertex: a unique name plus its annotations. Node structs
// returned by Graph are copies; mutate the graph only through a Log.
type Node struct {
	Name   NodeName
	Annos  map[AnnoKey]string
}

// Anno looks up a single annotation, reporting whether it is present.
func (n *Node) Anno(key AnnoKey) (string, bool) {
	if n == nil || n.Annos == nil {
		return "", false
	}
	v, ok := n.Annos[key]
	return v, ok
}

// Edge is a directed arc within one component, from Source to Target, with
// its own annotation set (edge keys unique per edge, independent of the
// endpoints' node annotations).
type Edge struct {
	Source NodeName
	Target NodeName
	Annos  map[AnnoKey]string
}

// Anno looks up a single edge annotation.
func (e *Edge) Anno(key AnnoKey) (string, bool) {
	if e == nil || e.Annos == nil {
		return "", false
	}
	v, ok := e.Annos[key]
	return v, ok
}

func cloneAnnos(in map[AnnoKey]string) map[AnnoKey]string {
	if in == nil {
		return nil
	}
	out := make(map[AnnoKey]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
