package ops

import (
	"context"
	"strconv"
	"strings"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
)

func init() {
	module.Default.RegisterOperation("time", func() module.GraphOperation { return &TimeOp{} })
}

// TimeOp fills missing annis::time values by linear interpolation along a
// configured Ordering component, then propagates the result upward along
// Coverage edges, per §4.7's time contract. A chain missing either its
// first or its last time value fails unless use_fallback is set, in which
// case fallback_start / fallback_end stand in for the missing endpoint.
//
// Config:
//
//	layer            = "annis"   // Ordering layer, default "annis"
//	fallback_start   = 0.0
//	fallback_end     = 0.0
//	use_fallback     = false
type TimeOp struct{}

func (TimeOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	layer := optStrField(config, "layer", "annis")
	useFallback := boolField(config, "use_fallback", false)
	fallbackStart := floatField(config, "fallback_start", 0)
	fallbackEnd := floatField(config, "fallback_end", 0)

	comp := graph.ComponentRef{Type: graph.Ordering, Layer: layer, Name: ""}
	chains := orderingChains(g, comp)

	var log graph.Log
	touched := map[graph.NodeName]float64{}
	known := map[graph.NodeName]bool{}

	for _, chain := range chains {
		values := make([]*float64, len(chain))
		for i, name := range chain {
			n, err := g.GetNode(name)
			if err != nil {
				continue
			}
			if v, ok := n.Anno(graph.KeyTime); ok {
				if start, ok := parseTimeValue(v); ok {
					values[i] = &start
					known[name] = true
				}
			}
		}
		if values[0] == nil {
			if !useFallback {
				return graph.Log{}, nil, errField("time", "chain missing start endpoint and no fallback configured")
			}
			v := fallbackStart
			values[0] = &v
		}
		last := len(values) - 1
		if values[last] == nil {
			if !useFallback {
				return graph.Log{}, nil, errField("time", "chain missing end endpoint and no fallback configured")
			}
			v := fallbackEnd
			values[last] = &v
		}

		interpolateChain(values)
		for i, name := range chain {
			touched[name] = *values[i]
		}
	}

	for name, v := range touched {
		if known[name] {
			continue
		}
		s := strconv.FormatFloat(v, 'f', -1, 64)
		log.Append(graph.AddNodeLabel(name, graph.KeyTime, s))
	}

	propagateCoverage(g, touched, &log)
	return log, nil, nil
}

// interpolateChain fills every nil slot between two known values by
// linear interpolation, in place. values[0] and values[len-1] must be set.
func interpolateChain(values []*float64) {
	i := 0
	for i < len(values) {
		if values[i] != nil {
			i++
			continue
		}
		start := i - 1
		j := i
		for j < len(values) && values[j] == nil {
			j++
		}
		span := j - start
		delta := (*values[j] - *values[start]) / float64(span)
		for k := start + 1; k < j; k++ {
			v := *values[start] + delta*float64(k-start)
			values[k] = &v
		}
		i = j
	}
}

// orderingChains splits comp's edges into maximal simple chains, ordered
// from each chain's source-only node (no incoming edge in comp).
func orderingChains(g graph.Engine, comp graph.ComponentRef) [][]graph.NodeName {
	edges := g.AllEdges(comp)
	next := map[graph.NodeName]graph.NodeName{}
	hasIncoming := map[graph.NodeName]bool{}
	nodes := map[graph.NodeName]bool{}
	for _, e := range edges {
		next[e.Source] = e.Target
		hasIncoming[e.Target] = true
		nodes[e.Source] = true
		nodes[e.Target] = true
	}

	var starts []graph.NodeName
	for n := range nodes {
		if !hasIncoming[n] {
			starts = append(starts, n)
		}
	}
	var chains [][]graph.NodeName
	for _, s := range starts {
		var chain []graph.NodeName
		cur := s
		for {
			chain = append(chain, cur)
			n, ok := next[cur]
			if !ok {
				break
			}
			cur = n
		}
		chains = append(chains, chain)
	}
	return chains
}

// propagateCoverage spans time values upward: a node covering a set of
// tokens is assigned the union interval of its children's time values.
func propagateCoverage(g graph.Engine, leafTimes map[graph.NodeName]float64, log *graph.Log) {
	coverage := graph.ComponentRef{Type: graph.Coverage}
	for _, name := range g.AllNodeNames() {
		out := g.OutgoingEdges(name, coverage)
		if len(out) == 0 {
			continue
		}
		var min, max float64
		set := false
		for _, e := range out {
			if v, ok := leafTimes[e.Target]; ok {
				if !set || v < min {
					min = v
				}
				if !set || v > max {
					max = v
				}
				set = true
			}
		}
		if set {
			log.Append(graph.AddNodeLabel(name, graph.KeyTime, strconv.FormatFloat(min, 'f', -1, 64)+"-"+strconv.FormatFloat(max, 'f', -1, 64)))
		}
	}
}

// parseTimeValue parses an annis::time value's "start[-end]" form per §3,
// taking the start endpoint as the node's interpolation point. A bare
// negative number ("-1.5") is not split: only a '-' past the first
// character is treated as the start/end separator.
func parseTimeValue(v string) (float64, bool) {
	s := v
	if i := strings.IndexByte(v, '-'); i > 0 {
		s = v[:i]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func floatField(cfg map[string]any, key string, def float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}
