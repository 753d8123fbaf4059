// Package query implements the structured pattern language graph
// operations and the check operation use to find node tuples: a sequence
// of node atoms joined by pair operators and edge predicates. Grounded on
// the teacher's hand-written Cypher pattern parser (pkg/cypher/pattern_parser.go,
// ast_builder.go) — a manual recursive-descent reader over a small fixed
// grammar, rather than a parser-generator — but over a far smaller
// grammar: one operator between each adjacent pair of node atoms, not
// arbitrary clause nesting.
//
// # ELI12
//
// A query like `tok="the" . tok="cat"` reads left to right: find a node
// whose tok annotation is "the", then a node immediately after it (the
// `.` operator) whose tok annotation is "cat". Each atom becomes one
// position in the result tuple.
package query

import "fmt"

// ValueOp classifies how a node atom's value constraint is compared.
type ValueOp int

const (
	// ValueNone means the atom only requires the key to be present.
	ValueNone ValueOp = iota
	ValueEqual
	ValueNotEqual
	ValueRegex
)

// NodeAtom is one position in a query tuple: a required annotation key,
// an optional value constraint, and whether a match may be absent
// (Optional, the trailing `?`).
type NodeAtom struct {
	Namespace string
	Name      string
	Op        ValueOp
	Value     string // literal or regex source, per Op
	Optional  bool
}

// PairKind names the relation an operator asserts between two adjacent
// node atoms.
type PairKind int

const (
	PairPrecedence      PairKind = iota // "."
	PairIdenticalCover                  // "_=_"
	PairIdent                           // "_ident_"
	PairLeftAligned                     // "_l_"
	PairRightAligned                    // "_r_"
	PairOverlap                         // "_o_"
	PairInclusion                       // "_i_"
	PairReachability                    // "@*"
	PairEdgePointing                    // "->name"
	PairEdgeDominance                   // ">"
)

// Pair is the operator connecting atom i-1 to atom i, plus any edge
// annotation filter carried by an edge predicate (`[key="v"]`).
type Pair struct {
	Kind      PairKind
	Component string            // the Pointing component name for PairEdgePointing
	Layer     string            // optional layer qualifier, defaults to ""
	EdgeAnno  map[string]string // annotation filter for edge predicates, nil if absent
}

// Query is a fully parsed pattern: one more atom than there are pairs.
type Query struct {
	Atoms []NodeAtom
	Pairs []Pair // len(Pairs) == len(Atoms)-1
}

func (q Query) String() string {
	return fmt.Sprintf("Query{%d atoms, %d pairs}", len(q.Atoms), len(q.Pairs))
}
