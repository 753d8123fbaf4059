// Package workflow parses the declarative workflow document — the
// [[import]]/[[graph_op]]/[[export]] array-of-tables TOML document — into
// an immutable Plan, and writes the post-run footer the engine leaves
// next to it.
package workflow

// ImportStep is one [[import]] table.
type ImportStep struct {
	Format string         `toml:"format"`
	Path   string         `toml:"path"`
	Config map[string]any `toml:"config"`
}

// GraphOpStep is one [[graph_op]] table.
type GraphOpStep struct {
	Action string         `toml:"action"`
	Config map[string]any `toml:"config"`
}

// ExportStep is one [[export]] table.
type ExportStep struct {
	Format string         `toml:"format"`
	Path   string         `toml:"path"`
	Config map[string]any `toml:"config"`
}

// Options holds document-level settings outside the three step lists.
type Options struct {
	// Name is an optional human-readable workflow name. It is kept in the
	// Plan; the engine does not write it to its logs or to the footer.
	Name string `toml:"name"`
}

// Plan is the fully parsed, validated workflow document: an ordered list
// of imports, graph operations, and exports plus global options. Every
// path in every step has already been resolved relative to the document's
// directory by the time a Plan is constructed — see loader.go.
type Plan struct {
	Options    Options       `toml:"options"`
	Imports    []ImportStep  `toml:"import"`
	GraphOps   []GraphOpStep `toml:"graph_op"`
	Exports    []ExportStep  `toml:"export"`
}
