package graph

import "gopkg.in/yaml.v3"

// RecordKind tags the variant of a Record, mirroring the teacher's
// OperationType tag on its buffered transaction Operation.
type RecordKind string

// The eight primitive mutation kinds an update Log is built from.
const (
	KindAddNode         RecordKind = "add_node"
	KindDeleteNode      RecordKind = "delete_node"
	KindAddNodeLabel    RecordKind = "add_node_label"
	KindDeleteNodeLabel RecordKind = "delete_node_label"
	KindAddEdge         RecordKind = "add_edge"
	KindDeleteEdge      RecordKind = "delete_edge"
	KindAddEdgeLabel    RecordKind = "add_edge_label"
	KindDeleteEdgeLabel RecordKind = "delete_edge_label"
)

// Record is one primitive mutation. Only the fields relevant to Kind are
// populated; Apply validates every precondition before any record in the
// Log becomes visible.
type Record struct {
	Kind RecordKind

	// AddNode / DeleteNode / *NodeLabel
	Node NodeName

	// AddEdge / DeleteEdge / *EdgeLabel
	Component ComponentRef
	Source    NodeName
	Target    NodeName

	// AddNodeLabel / DeleteNodeLabel / AddEdgeLabel / DeleteEdgeLabel
	Key   AnnoKey
	Value string // unused for Delete* records
}

// AddNode returns a node-creation record.
func AddNode(name NodeName) Record { return Record{Kind: KindAddNode, Node: name} }

// DeleteNode returns a node-deletion record.
func DeleteNode(name NodeName) Record { return Record{Kind: KindDeleteNode, Node: name} }

// AddNodeLabel returns a node-annotation record.
func AddNodeLabel(node NodeName, key AnnoKey, value string) Record {
	return Record{Kind: KindAddNodeLabel, Node: node, Key: key, Value: value}
}

// DeleteNodeLabel returns a node-annotation-removal record.
func DeleteNodeLabel(node NodeName, key AnnoKey) Record {
	return Record{Kind: KindDeleteNodeLabel, Node: node, Key: key}
}

// AddEdge returns an edge-creation record within the given component.
func AddEdge(source, target NodeName, component ComponentRef) Record {
	return Record{Kind: KindAddEdge, Source: source, Target: target, Component: component}
}

// DeleteEdge returns an edge-deletion record.
func DeleteEdge(source, target NodeName, component ComponentRef) Record {
	return Record{Kind: KindDeleteEdge, Source: source, Target: target, Component: component}
}

// AddEdgeLabel returns an edge-annotation record.
func AddEdgeLabel(source, target NodeName, component ComponentRef, key AnnoKey, value string) Record {
	return Record{Kind: KindAddEdgeLabel, Source: source, Target: target, Component: component, Key: key, Value: value}
}

// DeleteEdgeLabel returns an edge-annotation-removal record.
func DeleteEdgeLabel(source, target NodeName, component ComponentRef, key AnnoKey) Record {
	return Record{Kind: KindDeleteEdgeLabel, Source: source, Target: target, Component: component, Key: key}
}

// Log is an ordered, serializable sequence of Records. It is a value type:
// copying a Log copies the slice header, not the underlying records, so
// treat a Log handed to you as read-only unless you built it yourself.
type Log struct {
	records []Record
}

// NewLog returns an empty Log, optionally seeded with records (useful for
// the edit operation, whose config literally is a Log).
func NewLog(records ...Record) Log {
	l := Log{records: make([]Record, len(records))}
	copy(l.records, records)
	return l
}

// Append adds a record to the end of the log and returns the receiver for
// chaining.
func (l *Log) Append(r Record) *Log {
	l.records = append(l.records, r)
	return l
}

// Len reports the number of records.
func (l Log) Len() int { return len(l.records) }

// Records returns the log's records in order. The returned slice must not
// be mutated by the caller.
func (l Log) Records() []Record { return l.records }

// Concat appends another log's records in order, preserving overall order.
// Concatenation is how the scheduler combines concurrent importers' logs
// into one import-phase batch.
func (l *Log) Concat(other Log) *Log {
	l.records = append(l.records, other.records...)
	return l
}

// DocumentPrefix returns the common "corpus/doc" prefix of every node name
// touched by the log, and whether one exists. A log is document-partitioned
// when every record names a node under this prefix; the scheduler uses
// that to parallelize import aggregation across independent roots.
func (l Log) DocumentPrefix() (string, bool) {
	prefix := ""
	have := false
	touch := func(name NodeName) bool {
		doc := documentPrefixOf(string(name))
		if !have {
			prefix, have = doc, true
			return true
		}
		return doc == prefix
	}
	for _, r := range l.records {
		names := []NodeName{r.Node, r.Source, r.Target}
		for _, n := range names {
			if n == "" {
				continue
			}
			if !touch(n) {
				return "", false
			}
		}
	}
	return prefix, have
}

// yamlRecord is the debug text shape for a single Record: only the fields
// Kind actually uses are populated, so a dump of a mixed log reads like a
// terse diff rather than eight mostly-empty-field structs.
type yamlRecord struct {
	Kind      RecordKind `yaml:"kind"`
	Node      string     `yaml:"node,omitempty"`
	Component string     `yaml:"component,omitempty"`
	Source    string     `yaml:"source,omitempty"`
	Target    string     `yaml:"target,omitempty"`
	Key       string     `yaml:"key,omitempty"`
	Value     string     `yaml:"value,omitempty"`
}

// DumpYAML renders the log as YAML for operator inspection: the scheduler
// writes this out when applying an import or graph-operation log fails and
// ANNATTO_DEBUG_DUMP_DIR is set (§4.2, "leak updates to a file"). Components
// are rendered as flat "Type/layer/name" strings, a form the edit
// operation's config does not accept (it takes component tables).
func (l Log) DumpYAML() ([]byte, error) {
	out := make([]yamlRecord, 0, len(l.records))
	for _, r := range l.records {
		yr := yamlRecord{Kind: r.Kind, Node: string(r.Node)}
		if r.Component != (ComponentRef{}) {
			yr.Component = r.Component.String()
		}
		if r.Source != "" {
			yr.Source = string(r.Source)
		}
		if r.Target != "" {
			yr.Target = string(r.Target)
		}
		if r.Key.Valid() {
			yr.Key = r.Key.String()
		}
		yr.Value = r.Value
		out = append(out, yr)
	}
	return yaml.Marshal(out)
}

// documentPrefixOf returns the portion of a node name before the first '#',
// the separator Importers use between a document path and a local node id
// (e.g. "corpus/doc#tok_3" -> "corpus/doc"). Names with no '#' are their
// own prefix (corpus/document nodes themselves).
func documentPrefixOf(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '#' {
			return name[:i]
		}
	}
	return name
}
