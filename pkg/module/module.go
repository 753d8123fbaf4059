// Package module defines the three capability contracts external format
// modules implement — Importer, GraphOperation, Exporter — plus a
// compile-time registration table keyed by format/action string.
//
// Grounded on the teacher's FunctionRegistry (apoc/registry): a
// sync.RWMutex-guarded map from name to descriptor, registered at program
// init time via blank imports of each module's package, never loaded
// dynamically at runtime.
package module

import (
	"context"
	"fmt"
	"sync"

	"github.com/brannveig/corpusgraph/pkg/graph"
)

// Status is one progress or diagnostic record a module may emit while
// running. Importers and Exporters report through this channel; graph
// operations are side-effect free beyond it.
type Status struct {
	Message  string
	Document string // empty when not document-specific
}

// Importer converts an external resource at Path into an update log.
type Importer interface {
	// Import reads the resource at path and returns the update log that
	// would install its content, plus any status records produced along
	// the way. Implementations may fan out internally but must respect
	// ctx cancellation at natural boundaries (per file/document).
	Import(ctx context.Context, path string, config map[string]any) (graph.Log, []Status, error)
}

// GraphOperation rewrites the graph by producing an update log from a
// read-only view of its current state. Pure with respect to the graph:
// all effects are expressed in the returned log.
type GraphOperation interface {
	Apply(ctx context.Context, g graph.Engine, config map[string]any) (graph.Log, []Status, error)
}

// Exporter writes the graph's current state to path. May fail; must
// never mutate g.
type Exporter interface {
	Export(ctx context.Context, g graph.Engine, path string, config map[string]any) ([]Status, error)
}

// ImporterFactory constructs a configured Importer instance.
type ImporterFactory func() Importer

// OperationFactory constructs a configured GraphOperation instance.
type OperationFactory func() GraphOperation

// ExporterFactory constructs a configured Exporter instance.
type ExporterFactory func() Exporter

// Registry is the compile-time table of every known module, keyed by its
// format or action tag. One process-wide Registry (Default) is populated
// by each module package's init function; tests may construct their own
// to isolate registrations.
type Registry struct {
	mu         sync.RWMutex
	importers  map[string]ImporterFactory
	operations map[string]OperationFactory
	exporters  map[string]ExporterFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		importers:  make(map[string]ImporterFactory),
		operations: make(map[string]OperationFactory),
		exporters:  make(map[string]ExporterFactory),
	}
}

// Default is the registry every built-in module registers into.
var Default = NewRegistry()

// RegisterImporter adds an Importer factory under format. Panics on
// duplicate registration — this only ever happens at init time, so a
// collision is a build-time programming error, not a runtime condition.
func (r *Registry) RegisterImporter(format string, f ImporterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.importers[format]; exists {
		panic(fmt.Sprintf("module: importer %q already registered", format))
	}
	r.importers[format] = f
}

// RegisterOperation adds a GraphOperation factory under action.
func (r *Registry) RegisterOperation(action string, f OperationFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.operations[action]; exists {
		panic(fmt.Sprintf("module: operation %q already registered", action))
	}
	r.operations[action] = f
}

// RegisterExporter adds an Exporter factory under format.
func (r *Registry) RegisterExporter(format string, f ExporterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exporters[format]; exists {
		panic(fmt.Sprintf("module: exporter %q already registered", format))
	}
	r.exporters[format] = f
}

// Importer looks up and instantiates the Importer registered under format.
func (r *Registry) Importer(format string) (Importer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.importers[format]
	if !ok {
		return nil, fmt.Errorf("module: unknown import format %q", format)
	}
	return f(), nil
}

// Operation looks up and instantiates the GraphOperation registered under action.
func (r *Registry) Operation(action string) (GraphOperation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.operations[action]
	if !ok {
		return nil, fmt.Errorf("module: unknown operation action %q", action)
	}
	return f(), nil
}

// Exporter looks up and instantiates the Exporter registered under format.
func (r *Registry) Exporter(format string) (Exporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.exporters[format]
	if !ok {
		return nil, fmt.Errorf("module: unknown export format %q", format)
	}
	return f(), nil
}
