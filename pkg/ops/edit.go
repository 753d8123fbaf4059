package ops

import (
	"context"
	"strconv"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("edit", func() module.GraphOperation { return &EditOp{} })
}

// EditOp is the escape hatch of §4.7: its config literally is an update
// log, applied as given with no interpretation.
type EditOp struct{}

// Apply decodes config["records"] — a list of tables shaped like
// graph.Record — into a Log and returns it unchanged.
func (EditOp) Apply(_ context.Context, _ graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	raw, err := mapSliceField(config, "records")
	if err != nil {
		return graph.Log{}, nil, err
	}
	var log graph.Log
	for i, rec := range raw {
		r, err := decodeRecord(rec)
		if err != nil {
			return graph.Log{}, nil, errField("records", err.Error()+" at index "+strconv.Itoa(i))
		}
		log.Append(r)
	}
	return log, nil, nil
}

func decodeRecord(m map[string]any) (graph.Record, error) {
	kindStr, err := strField(m, "kind")
	if err != nil {
		return graph.Record{}, err
	}
	r := graph.Record{Kind: graph.RecordKind(kindStr)}
	if v := optStrField(m, "node", ""); v != "" {
		r.Node = graph.NodeName(v)
	}
	if v := optStrField(m, "source", ""); v != "" {
		r.Source = graph.NodeName(v)
	}
	if v := optStrField(m, "target", ""); v != "" {
		r.Target = graph.NodeName(v)
	}
	if _, ok := m["component"]; ok {
		comp, err := parseComponentRef(m, "component")
		if err != nil {
			return graph.Record{}, err
		}
		r.Component = comp
	}
	if v := optStrField(m, "key", ""); v != "" {
		key, err := parseAnnoKey("key", v)
		if err != nil {
			return graph.Record{}, err
		}
		r.Key = key
	}
	r.Value = optStrField(m, "value", "")
	return r, nil
}
