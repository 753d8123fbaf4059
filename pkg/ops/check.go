package ops

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/graph/query"
	"github.com/brannveig/corpusgraph/pkg/module"
	"github.com/brannveig/corpusgraph/pkg/scheduler"
)

func init() {
	module.Default.RegisterOperation("check", func() module.GraphOperation { return &CheckOp{} })
}

// CheckOp runs a list of tests against the graph, per §4.7's check
// contract. Every test compares a query's match count against an expected
// bound, or expands a "layer" test into an existence check and an
// invalid-value check per annotation key. A failing test's effect depends
// on the global policy and, if set, the test's own policy override: a
// local "warn" downgrades a global "fail" to a Warning for that test only,
// but a local "fail" is never softened by a global "warn".
//
// Config:
//
//	policy = "fail"     // "fail" | "warn", default "fail"
//	report = "list"      // "none" | "list" | "verbose", default "none"
//	report_file = "checks.log"
//	tests = [
//	  { description = "token count", query = "tok", expect = 120 },
//	  { description = "sentence span", query = "sent", expect = [1, "inf"], policy = "warn" },
//	  { description = "pos layer", layer = { namespace = "norm", key = "pos", values = ["NOUN", "VERB"] } },
//	]
type CheckOp struct{}

type checkResult struct {
	description string
	passed      bool
	detail      string
	policy      string
}

func (CheckOp) Apply(_ context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	globalPolicy := optStrField(config, "policy", "fail")
	report := optStrField(config, "report", "none")
	reportFile := optStrField(config, "report_file", "")

	tests, err := mapSliceField(config, "tests")
	if err != nil {
		return graph.Log{}, nil, err
	}

	ev := query.New(g)
	var results []checkResult
	for _, test := range tests {
		rs, err := runTest(ev, g, test)
		if err != nil {
			return graph.Log{}, nil, err
		}
		results = append(results, rs...)
	}

	var statuses []module.Status
	var failed []checkResult
	for _, r := range results {
		if !r.passed {
			failed = append(failed, r)
		}
		if report == "verbose" || (report == "list" && !r.passed) {
			statuses = append(statuses, module.Status{Message: formatCheckLine(r)})
		}
	}
	if reportFile != "" {
		writeCheckReport(reportFile, results)
	}

	if len(failed) == 0 {
		return graph.Log{}, statuses, nil
	}

	var fatalDetails []string
	var warnDetails []string
	for _, r := range failed {
		effective := globalPolicy
		if r.policy != "" {
			if globalPolicy == "fail" && r.policy == "warn" {
				effective = "warn"
			} else if r.policy == "fail" {
				effective = "fail"
			}
		}
		if effective == "warn" {
			warnDetails = append(warnDetails, r.description+": "+r.detail)
		} else {
			fatalDetails = append(fatalDetails, r.description+": "+r.detail)
		}
	}

	if len(fatalDetails) > 0 {
		return graph.Log{}, statuses, fmt.Errorf("check: %s", strings.Join(fatalDetails, "; "))
	}
	return graph.Log{}, statuses, &scheduler.Warning{Err: fmt.Errorf("check: %s", strings.Join(warnDetails, "; "))}
}

func runTest(ev *query.Evaluator, g graph.Engine, test map[string]any) ([]checkResult, error) {
	description := optStrField(test, "description", "")
	policy := optStrField(test, "policy", "")

	if layerRaw, ok := test["layer"]; ok {
		layer, ok := layerRaw.(map[string]any)
		if !ok {
			return nil, errField("layer", "must be a table")
		}
		return runLayerTest(g, description, policy, layer)
	}

	q, err := strField(test, "query")
	if err != nil {
		return nil, err
	}
	count, err := ev.Count(q)
	if err != nil {
		return nil, err
	}
	ok, detail := evalExpect(test["expect"], count)
	return []checkResult{{description: description, passed: ok, detail: detail, policy: policy}}, nil
}

func evalExpect(expect any, count int) (bool, string) {
	switch v := expect.(type) {
	case int:
		return count == v, fmt.Sprintf("expected %d, got %d", v, count)
	case int64:
		return count == int(v), fmt.Sprintf("expected %d, got %d", v, count)
	case float64:
		return count == int(v), fmt.Sprintf("expected %v, got %d", v, count)
	case map[string]any:
		lo := boundOf(v["min"], math.Inf(-1))
		hi := boundOf(v["max"], math.Inf(1))
		c := float64(count)
		ok := c >= lo && c <= hi
		return ok, fmt.Sprintf("expected [%v, %v], got %d", v["min"], v["max"], count)
	case []any:
		if len(v) != 2 {
			return false, "unrecognized expect shape"
		}
		lo := boundOf(v[0], math.Inf(-1))
		hi := boundOf(v[1], math.Inf(1))
		c := float64(count)
		ok := c >= lo && c <= hi
		return ok, fmt.Sprintf("expected [%v, %v], got %d", v[0], v[1], count)
	default:
		return false, "unrecognized expect shape"
	}
}

func boundOf(v any, def float64) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		if n == "inf" {
			return math.Inf(1)
		}
		if n == "-inf" {
			return math.Inf(-1)
		}
	}
	return def
}

// runLayerTest expands a layer test into one existence check and one
// invalid-value check per configured key. Only node annotations are
// checked; edge annotations are not.
func runLayerTest(g graph.Engine, description, policy string, layer map[string]any) ([]checkResult, error) {
	ns, err := strField(layer, "namespace")
	if err != nil {
		return nil, err
	}
	keyName, err := strField(layer, "key")
	if err != nil {
		return nil, err
	}
	values, err := strSliceField(layer, "values")
	if err != nil {
		return nil, err
	}
	admitted := map[string]bool{}
	for _, v := range values {
		admitted[v] = true
	}
	key := graph.AnnoKey{Namespace: ns, Name: keyName}

	found := false
	invalid := 0
	g.NodesByKey(key, nil, func(n *graph.Node) bool {
		found = true
		v, _ := n.Anno(key)
		if !admitted[v] {
			invalid++
		}
		return true
	})

	existence := checkResult{
		description: description + " (exists)",
		passed:      found,
		detail:      "no node carries " + key.String(),
		policy:      policy,
	}
	validity := checkResult{
		description: description + " (values)",
		passed:      invalid == 0,
		detail:      fmt.Sprintf("%d nodes with an unadmitted %s value", invalid, key.String()),
		policy:      policy,
	}
	return []checkResult{existence, validity}, nil
}

func formatCheckLine(r checkResult) string {
	status := "PASS"
	if !r.passed {
		status = "FAIL"
	}
	return fmt.Sprintf("[%s] %s: %s", status, r.description, r.detail)
}

func writeCheckReport(path string, results []checkResult) {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(formatCheckLine(r))
		b.WriteString("\n")
	}
	_ = os.WriteFile(path, []byte(b.String()), 0644)
}
