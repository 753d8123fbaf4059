package graph

// Engine is the storage-strategy contract both Graph (in-memory) and
// DiskGraph (badger-backed) satisfy. Query evaluators and graph operations
// depend on this interface, not on a concrete implementation, so the
// in-memory/disk-backed choice made by the ANNATTO_IN_MEMORY host option is
// transparent to every caller above the storage layer — per §4.1, "the
// choice is transparent to callers".
type Engine interface {
	// Apply installs a Log atomically.
	Apply(log Log) error

	// GetNode returns a copy of the named node, or ErrUnknownNode.
	GetNode(name NodeName) (*Node, error)
	HasNode(name NodeName) bool
	NodeCount() int
	AllNodeNames() []NodeName
	NodesByKey(key AnnoKey, value *string, fn func(*Node) bool)

	OutgoingEdges(node NodeName, component ComponentRef) []*Edge
	IncomingEdges(node NodeName, component ComponentRef) []*Edge
	AllEdges(component ComponentRef) []*Edge
	Components() []ComponentRef

	Stats() *Stats
	Close() error
}

var (
	_ Engine = (*Graph)(nil)
)

// Close is a no-op for the in-memory engine; it exists so Graph satisfies
// Engine alongside DiskGraph, which must release its badger handle.
func (g *Graph) Close() error { return nil }
