// Disk-backed annotation graph storage, selected by the ANNATTO_IN_MEMORY
// host option. Grounded on the teacher's BadgerEngine (pkg/storage/badger.go):
// single-byte key prefixes, JSON-encoded records, secondary indexes stored
// as empty-valued keys, and badger's own MVCC transactions used directly
// as the atomic-apply mechanism instead of hand-rolled validate-then-mutate.
package graph

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes, following the teacher's single-byte scheme.
const (
	prefixDiskNode    = byte(0x01) // node + name -> JSON(Node)
	prefixDiskKeyIdx  = byte(0x02) // keyidx + key + 0x00 + name -> empty
	prefixDiskEdge     = byte(0x03) // edge + component + 0x00 + source + 0x00 + target -> JSON(Edge)
	prefixDiskOutgoing = byte(0x04) // outgoing + component + 0x00 + source + 0x00 + target -> empty
	prefixDiskIncoming = byte(0x05) // incoming + component + 0x00 + target + 0x00 + source -> empty
)

// DiskGraph is the badger-backed Engine implementation, used when the host
// selects persistent storage (§6, "Persisted state layout"). Every Apply
// runs as a single badger update transaction: reads that validate
// preconditions and writes that install the log share one txn, so badger's
// own conflict detection gives us the "whole log or nothing" guarantee
// without a separate in-memory staging area.
type DiskGraph struct {
	db      *badger.DB
	journal *Journal
}

// OpenDisk opens (creating if absent) a badger-backed graph store rooted
// at dir, alongside the crash-diagnosis journal (wal.go's Journal) at
// dir/journal.log: every Apply appends its log there before it commits,
// so a crash mid-apply leaves a record of what was attempted even though
// badger's own transaction already makes the commit itself atomic.
func OpenDisk(dir string) (*DiskGraph, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("graph: open disk store at %s: %w", dir, err)
	}
	j, err := OpenJournal(filepath.Join(dir, "journal.log"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DiskGraph{db: db, journal: j}, nil
}

// Close releases the underlying badger handle and the journal file.
func (d *DiskGraph) Close() error {
	jerr := d.journal.Close()
	if err := d.db.Close(); err != nil {
		return err
	}
	return jerr
}

func nodeKey(name NodeName) []byte {
	return append([]byte{prefixDiskNode}, []byte(name)...)
}

func keyIdxKey(key AnnoKey, name NodeName) []byte {
	b := []byte{prefixDiskKeyIdx}
	b = append(b, []byte(key.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(name)...)
	return b
}

func keyIdxPrefix(key AnnoKey) []byte {
	b := []byte{prefixDiskKeyIdx}
	b = append(b, []byte(key.String())...)
	return append(b, 0x00)
}

func edgeKeyBytes(component ComponentRef, source, target NodeName) []byte {
	b := []byte{prefixDiskEdge}
	b = append(b, []byte(component.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(source)...)
	b = append(b, 0x00)
	b = append(b, []byte(target)...)
	return b
}

func outgoingIdxKey(component ComponentRef, source, target NodeName) []byte {
	b := []byte{prefixDiskOutgoing}
	b = append(b, []byte(component.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(source)...)
	b = append(b, 0x00)
	b = append(b, []byte(target)...)
	return b
}

func outgoingIdxPrefix(component ComponentRef, source NodeName) []byte {
	b := []byte{prefixDiskOutgoing}
	b = append(b, []byte(component.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(source)...)
	return append(b, 0x00)
}

func incomingIdxKey(component ComponentRef, source, target NodeName) []byte {
	b := []byte{prefixDiskIncoming}
	b = append(b, []byte(component.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(target)...)
	b = append(b, 0x00)
	b = append(b, []byte(source)...)
	return b
}

func incomingIdxPrefix(component ComponentRef, target NodeName) []byte {
	b := []byte{prefixDiskIncoming}
	b = append(b, []byte(component.String())...)
	b = append(b, 0x00)
	b = append(b, []byte(target)...)
	return append(b, 0x00)
}

// diskNode / diskEdge are the JSON wire shapes persisted to badger.
type diskNode struct {
	Annos map[string]string `json:"annos"`
}

type diskEdge struct {
	Annos map[string]string `json:"annos"`
}

func encodeAnnos(in map[AnnoKey]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k.String()] = v
	}
	return out
}

func decodeAnnos(in map[string]string) map[AnnoKey]string {
	out := make(map[AnnoKey]string, len(in))
	for k, v := range in {
		out[parseAnnoKey(k)] = v
	}
	return out
}

func parseAnnoKey(s string) AnnoKey {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == ':' && s[i+1] == ':' {
			return AnnoKey{Namespace: s[:i], Name: s[i+2:]}
		}
	}
	return AnnoKey{Name: s}
}

// Apply journals log, then runs validate-then-mutate inside one badger
// transaction. Per §4.1/§4.2, applied logs are "leaked to a file" for
// crash diagnosis; the journal entry is written whether or not the
// badger transaction that follows ultimately succeeds, since it records
// what was *attempted*, not what was committed.
func (d *DiskGraph) Apply(log Log) error {
	if err := d.journal.Append(log); err != nil {
		return fmt.Errorf("graph: journal append: %w", err)
	}
	return d.db.Update(func(txn *badger.Txn) error {
		nodeDelta := make(map[NodeName]int)
		edgeDelta := make(map[componentEdgeKey]int)

		nodeLive := func(name NodeName) bool {
			if delta, ok := nodeDelta[name]; ok {
				return delta > 0
			}
			_, err := txn.Get(nodeKey(name))
			return err == nil
		}
		edgeLive := func(component ComponentRef, s, t NodeName) bool {
			key := componentEdgeKey{component, s, t}
			if delta, ok := edgeDelta[key]; ok {
				return delta > 0
			}
			_, err := txn.Get(edgeKeyBytes(component, s, t))
			return err == nil
		}

		for i, r := range log.records {
			switch r.Kind {
			case KindAddNode:
				if r.Node == "" {
					return fmt.Errorf("%w: record %d: empty node name", ErrInvalidKey, i)
				}
				if nodeLive(r.Node) {
					return fmt.Errorf("%w: %s", ErrDuplicateNode, r.Node)
				}
				nodeDelta[r.Node] = 1
			case KindDeleteNode:
				if !nodeLive(r.Node) {
					return fmt.Errorf("%w: %s", ErrUnknownNode, r.Node)
				}
				nodeDelta[r.Node] = -1
			case KindAddNodeLabel, KindDeleteNodeLabel:
				if !nodeLive(r.Node) {
					return fmt.Errorf("%w: %s", ErrUnknownNode, r.Node)
				}
				if !r.Key.Valid() {
					return fmt.Errorf("%w: %v", ErrInvalidKey, r.Key)
				}
			case KindAddEdge:
				if !nodeLive(r.Source) {
					return fmt.Errorf("%w: %s", ErrUnknownNode, r.Source)
				}
				if !nodeLive(r.Target) {
					return fmt.Errorf("%w: %s", ErrUnknownNode, r.Target)
				}
				key := componentEdgeKey{r.Component, r.Source, r.Target}
				if edgeLive(r.Component, r.Source, r.Target) {
					return fmt.Errorf("%w: edge %s->%s in %s", ErrDuplicateNode, r.Source, r.Target, r.Component)
				}
				edgeDelta[key] = 1
			case KindDeleteEdge:
				if !edgeLive(r.Component, r.Source, r.Target) {
					return fmt.Errorf("%w: edge %s->%s in %s", ErrUnknownEdge, r.Source, r.Target, r.Component)
				}
				edgeDelta[componentEdgeKey{r.Component, r.Source, r.Target}] = -1
			case KindAddEdgeLabel, KindDeleteEdgeLabel:
				if !edgeLive(r.Component, r.Source, r.Target) {
					return fmt.Errorf("%w: edge %s->%s in %s", ErrUnknownEdge, r.Source, r.Target, r.Component)
				}
				if !r.Key.Valid() {
					return fmt.Errorf("%w: %v", ErrInvalidKey, r.Key)
				}
			default:
				return fmt.Errorf("%w: unknown record kind %q", ErrInvalidKey, r.Kind)
			}
		}

		for _, r := range log.records {
			if err := d.mutateOne(txn, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DiskGraph) mutateOne(txn *badger.Txn, r Record) error {
	switch r.Kind {
	case KindAddNode:
		return setJSON(txn, nodeKey(r.Node), diskNode{Annos: map[string]string{}})
	case KindDeleteNode:
		return d.deleteNode(txn, r.Node)
	case KindAddNodeLabel:
		var dn diskNode
		if err := getJSON(txn, nodeKey(r.Node), &dn); err != nil {
			return err
		}
		if old, ok := dn.Annos[r.Key.String()]; ok {
			_ = txn.Delete(keyIdxKey(r.Key, r.Node))
			_ = old
		}
		dn.Annos[r.Key.String()] = r.Value
		if err := setJSON(txn, nodeKey(r.Node), dn); err != nil {
			return err
		}
		return txn.Set(keyIdxKey(r.Key, r.Node), nil)
	case KindDeleteNodeLabel:
		var dn diskNode
		if err := getJSON(txn, nodeKey(r.Node), &dn); err != nil {
			return err
		}
		delete(dn.Annos, r.Key.String())
		if err := setJSON(txn, nodeKey(r.Node), dn); err != nil {
			return err
		}
		return txn.Delete(keyIdxKey(r.Key, r.Node))
	case KindAddEdge:
		if err := setJSON(txn, edgeKeyBytes(r.Component, r.Source, r.Target), diskEdge{Annos: map[string]string{}}); err != nil {
			return err
		}
		if err := txn.Set(outgoingIdxKey(r.Component, r.Source, r.Target), nil); err != nil {
			return err
		}
		return txn.Set(incomingIdxKey(r.Component, r.Source, r.Target), nil)
	case KindDeleteEdge:
		_ = txn.Delete(edgeKeyBytes(r.Component, r.Source, r.Target))
		_ = txn.Delete(outgoingIdxKey(r.Component, r.Source, r.Target))
		return txn.Delete(incomingIdxKey(r.Component, r.Source, r.Target))
	case KindAddEdgeLabel:
		var de diskEdge
		if err := getJSON(txn, edgeKeyBytes(r.Component, r.Source, r.Target), &de); err != nil {
			return err
		}
		de.Annos[r.Key.String()] = r.Value
		return setJSON(txn, edgeKeyBytes(r.Component, r.Source, r.Target), de)
	case KindDeleteEdgeLabel:
		var de diskEdge
		if err := getJSON(txn, edgeKeyBytes(r.Component, r.Source, r.Target), &de); err != nil {
			return err
		}
		delete(de.Annos, r.Key.String())
		return setJSON(txn, edgeKeyBytes(r.Component, r.Source, r.Target), de)
	}
	return nil
}

func (d *DiskGraph) deleteNode(txn *badger.Txn, name NodeName) error {
	var dn diskNode
	if err := getJSON(txn, nodeKey(name), &dn); err != nil {
		return err
	}
	for k := range dn.Annos {
		_ = txn.Delete(keyIdxKey(parseAnnoKey(k), name))
	}
	if err := txn.Delete(nodeKey(name)); err != nil {
		return err
	}
	// Cascade to every committed edge touching the node, in any component,
	// as the in-memory Graph does.
	for _, comp := range d.Components() {
		edges := append(d.OutgoingEdges(name, comp), d.IncomingEdges(name, comp)...)
		for _, e := range edges {
			_ = txn.Delete(edgeKeyBytes(comp, e.Source, e.Target))
			_ = txn.Delete(outgoingIdxKey(comp, e.Source, e.Target))
			_ = txn.Delete(incomingIdxKey(comp, e.Source, e.Target))
		}
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %s", ErrUnknownNode, key)
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// GetNode returns a copy of the named node.
func (d *DiskGraph) GetNode(name NodeName) (*Node, error) {
	var dn diskNode
	err := d.db.View(func(txn *badger.Txn) error { return getJSON(txn, nodeKey(name), &dn) })
	if err != nil {
		return nil, err
	}
	return &Node{Name: name, Annos: decodeAnnos(dn.Annos)}, nil
}

// HasNode reports whether the named node exists.
func (d *DiskGraph) HasNode(name NodeName) bool {
	_, err := d.GetNode(name)
	return err == nil
}

// NodeCount returns the number of persisted nodes.
func (d *DiskGraph) NodeCount() int {
	n := 0
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixDiskNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// AllNodeNames returns every persisted node name, ascending.
func (d *DiskGraph) AllNodeNames() []NodeName {
	var out []NodeName
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixDiskNode}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out = append(out, NodeName(it.Item().Key()[1:]))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NodesByKey iterates nodes carrying key via the secondary index.
func (d *DiskGraph) NodesByKey(key AnnoKey, value *string, fn func(*Node) bool) {
	var names []NodeName
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := keyIdxPrefix(key)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, NodeName(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		node, err := d.GetNode(name)
		if err != nil {
			continue
		}
		if value != nil {
			if v, ok := node.Annos[key]; !ok || v != *value {
				continue
			}
		}
		if !fn(node) {
			return
		}
	}
}

// edgesFromIndex scans an adjacency index whose prefix already encodes the
// queried node, so each remaining key suffix is the single node on the
// other end of the edge.
func (d *DiskGraph) edgesFromIndex(prefix []byte, component ComponentRef, node NodeName, nodeIsSource bool) []*Edge {
	var others []NodeName
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			others = append(others, NodeName(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	out := make([]*Edge, 0, len(others))
	for _, other := range others {
		source, target := node, other
		if !nodeIsSource {
			source, target = other, node
		}
		var de diskEdge
		err := d.db.View(func(txn *badger.Txn) error {
			return getJSON(txn, edgeKeyBytes(component, source, target), &de)
		})
		if err != nil {
			continue
		}
		out = append(out, &Edge{Source: source, Target: target, Annos: decodeAnnos(de.Annos)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// OutgoingEdges returns every edge leaving node in component.
func (d *DiskGraph) OutgoingEdges(node NodeName, component ComponentRef) []*Edge {
	return d.edgesFromIndex(outgoingIdxPrefix(component, node), component, node, true)
}

// IncomingEdges returns every edge entering node in component.
func (d *DiskGraph) IncomingEdges(node NodeName, component ComponentRef) []*Edge {
	return d.edgesFromIndex(incomingIdxPrefix(component, node), component, node, false)
}

// AllEdges returns every edge in component.
func (d *DiskGraph) AllEdges(component ComponentRef) []*Edge {
	prefix := append([]byte{prefixDiskEdge}, []byte(component.String()+"\x00")...)
	var out []*Edge
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := it.Item().Key()[len(prefix):]
			var source, target NodeName
			for i := 0; i < len(rest); i++ {
				if rest[i] == 0x00 {
					source, target = NodeName(rest[:i]), NodeName(rest[i+1:])
					break
				}
			}
			var de diskEdge
			_ = it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &de) })
			out = append(out, &Edge{Source: source, Target: target, Annos: decodeAnnos(de.Annos)})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Components lists every component that owns at least one edge, scanning
// the edge key space (there is no separate component table on disk).
func (d *DiskGraph) Components() []ComponentRef {
	seen := make(map[string]ComponentRef)
	_ = d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte{prefixDiskEdge}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := string(it.Item().Key()[1:])
			for i := 0; i < len(rest); i++ {
				if rest[i] == 0x00 {
					seen[rest[:i]] = parseComponentRef(rest[:i])
					break
				}
			}
		}
		return nil
	})
	out := make([]ComponentRef, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func parseComponentRef(s string) ComponentRef {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(s) && len(parts) < 2; i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	if len(parts) != 3 {
		return ComponentRef{}
	}
	return ComponentRef{Type: ComponentType(parts[0]), Layer: parts[1], Name: parts[2]}
}

// Stats computes annotation statistics with a full scan, same lazy
// semantics as Graph.Stats but with no dirty-bit cache (every read of a
// disk-backed graph is already paying index-lookup cost).
func (d *DiskGraph) Stats() *Stats {
	s := &Stats{KeyCounts: make(map[AnnoKey]int), ValueCounts: make(map[AnnoKey]map[string]int)}
	for _, name := range d.AllNodeNames() {
		node, err := d.GetNode(name)
		if err != nil {
			continue
		}
		for k, v := range node.Annos {
			s.KeyCounts[k]++
			vc := s.ValueCounts[k]
			if vc == nil {
				vc = make(map[string]int)
				s.ValueCounts[k] = vc
			}
			vc[v]++
		}
	}
	return s
}

var _ Engine = (*DiskGraph)(nil)
