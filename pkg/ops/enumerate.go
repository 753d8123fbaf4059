package ops

import (
	"context"
	"sort"
	"strconv"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("enumerate", func() module.GraphOperation { return &EnumerateOp{} })
}

// EnumerateOp runs each configured query, stably sorts its match tuples by
// a chosen subset of node indices, and assigns an increasing integer to
// the target node's annotation key, restarting the counter whenever the
// "by" tuple changes, per §4.7's enumerate contract.
//
// Config:
//
//	queries = [
//	  { query = "...", target = 1, key = "annis::ord", start = 1, by = [2] },
//	]
type EnumerateOp struct{}

func (EnumerateOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	specs, err := mapSliceField(config, "queries")
	if err != nil {
		return graph.Log{}, nil, err
	}
	ev := query.New(g)
	var log graph.Log
	for _, spec := range specs {
		if err := enumerateOne(ev, spec, &log); err != nil {
			return graph.Log{}, nil, err
		}
	}
	return log, nil, nil
}

func enumerateOne(ev *query.Evaluator, spec map[string]any, log *graph.Log) error {
	q, err := strField(spec, "query")
	if err != nil {
		return err
	}
	target := intField(spec, "target", 1)
	keyStr, err := strField(spec, "key")
	if err != nil {
		return err
	}
	key, err := parseAnnoKey("key", keyStr)
	if err != nil {
		return err
	}
	start := intField(spec, "start", 1)
	by, err := intSliceField(spec, "by")
	if err != nil {
		return err
	}

	var tuples []query.Tuple
	if err := ev.Find(q, func(t query.Tuple) bool {
		tuples = append(tuples, t)
		return true
	}); err != nil {
		return err
	}

	sort.SliceStable(tuples, func(i, j int) bool {
		return byKeyOf(tuples[i], by) < byKeyOf(tuples[j], by)
	})

	counter := start
	var lastBy string
	haveLast := false
	for _, t := range tuples {
		cur := byKeyOf(t, by)
		if haveLast && cur != lastBy {
			counter = start
		}
		haveLast = true
		lastBy = cur

		n := tupleNode(t, target)
		if n == nil {
			continue
		}
		log.Append(graph.AddNodeLabel(n.Name, key, strconv.Itoa(counter)))
		counter++
	}
	return nil
}

// byKeyOf renders the "by" index subset of a tuple as a sortable string
// key built from the names of the nodes at those indices; with no indices
// it returns "" for every tuple (no grouping).
func byKeyOf(t query.Tuple, by []int) string {
	if len(by) == 0 {
		return ""
	}
	out := ""
	for _, idx := range by {
		n := tupleNode(t, idx)
		if n == nil {
			out += "\x00"
			continue
		}
		out += string(n.Name) + "\x00"
	}
	return out
}
