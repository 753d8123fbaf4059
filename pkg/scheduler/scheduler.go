package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/brannveig/corpusgraph/pkg/engine"
	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
	"github.com/brannveig/corpusgraph/pkg/workflow"
)

// Result summarizes one completed (or failed) workflow run.
type Result struct {
	Phase       Phase
	FatalErrors []error
	Warnings    []error
	Statuses    []module.Status
}

// Success reports whether the run completed with no fatal errors.
func (r Result) Success() bool { return r.Phase == PhaseDone && len(r.FatalErrors) == 0 }

// Scheduler runs a Plan against a graph.Engine, dispatching to modules
// looked up in a Registry.
type Scheduler struct {
	Registry *module.Registry
	Logger   *engine.Logger
	Config   *engine.RuntimeConfig
}

// New returns a Scheduler with the given collaborators.
func New(reg *module.Registry, log *engine.Logger, cfg *engine.RuntimeConfig) *Scheduler {
	return &Scheduler{Registry: reg, Logger: log, Config: cfg}
}

// Run executes plan's three phases against g in order, returning the
// final Result. The graph is mutated only through applied update logs;
// g is expected freshly empty at entry, matching §4.5's "the graph is
// created empty by the scheduler".
func (s *Scheduler) Run(ctx context.Context, plan *workflow.Plan, g graph.Engine) Result {
	res := Result{Phase: PhaseInit}

	importLog, statuses, err := s.runImports(ctx, plan.Imports)
	res.Statuses = append(res.Statuses, statuses...)
	if err != nil {
		res.Phase = PhaseFailed
		res.FatalErrors = append(res.FatalErrors, err)
		return res
	}
	res.Phase = PhaseImportRunning

	if err := g.Apply(importLog); err != nil {
		res.Phase = PhaseFailed
		res.FatalErrors = append(res.FatalErrors, engine.Wrap(engine.ErrGraph, "import", "scheduler", err.Error()))
		s.dumpDebug("import", importLog)
		return res
	}
	res.Phase = PhaseImportApplied

	if err := s.runGraphOps(ctx, plan.GraphOps, g, &res); err != nil {
		res.Phase = PhaseFailed
		res.FatalErrors = append(res.FatalErrors, err)
		return res
	}
	res.Phase = PhaseOpsRunning

	exportStatuses, exportErrs := s.runExports(ctx, plan.Exports, g)
	res.Statuses = append(res.Statuses, exportStatuses...)
	if len(exportErrs) > 0 {
		res.Phase = PhaseFailed
		res.FatalErrors = append(res.FatalErrors, exportErrs...)
		return res
	}
	res.Phase = PhaseExportRunning

	res.Phase = PhaseDone
	return res
}

// runImports invokes every import step's Importer concurrently, merges
// their logs in plan order once all succeed, and cancels the remaining
// importers on the first fatal error.
func (s *Scheduler) runImports(ctx context.Context, steps []workflow.ImportStep) (graph.Log, []module.Status, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logs := make([]graph.Log, len(steps))
	statusesByStep := make([][]module.Status, len(steps))
	errs := make([]error, len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step workflow.ImportStep) {
			defer wg.Done()
			imp, err := s.Registry.Importer(step.Format)
			if err != nil {
				errs[i] = engine.Wrap(engine.ErrConfig, "import", step.Format, err.Error())
				cancel()
				return
			}
			log, statuses, err := imp.Import(ctx, step.Path, step.Config)
			statusesByStep[i] = statuses
			if err != nil {
				errs[i] = engine.Wrap(engine.ErrImport, "import", step.Format, fmt.Sprintf("%s: %v", step.Path, err))
				cancel()
				return
			}
			logs[i] = log
		}(i, step)
	}
	wg.Wait()

	agg := &aggregate{}
	var statuses []module.Status
	for i := range steps {
		agg.add(errs[i])
		statuses = append(statuses, statusesByStep[i]...)
	}
	if agg.any() {
		return graph.Log{}, statuses, agg.asError()
	}

	var merged graph.Log
	for _, l := range logs {
		merged.Concat(l)
	}
	return merged, statuses, nil
}

// runGraphOps runs each graph operation sequentially in plan order,
// applying its log before the next operation runs. A Warning-wrapped
// error is recorded and the phase continues; any other error aborts.
func (s *Scheduler) runGraphOps(ctx context.Context, steps []workflow.GraphOpStep, g graph.Engine, res *Result) error {
	for i, step := range steps {
		op, err := s.Registry.Operation(step.Action)
		if err != nil {
			return engine.Wrap(engine.ErrConfig, "graph_op", step.Action, err.Error())
		}
		_ = g.Stats() // snapshot statistics before the operation runs, per §4.6 step 2

		log, statuses, err := op.Apply(ctx, g, step.Config)
		res.Statuses = append(res.Statuses, statuses...)
		if err != nil {
			if w, ok := AsWarning(err); ok {
				res.Warnings = append(res.Warnings, w)
				continue
			}
			return engine.Wrapf(engine.ErrOperation, "graph_op", step.Action, "step %d: %v", i, err)
		}
		if err := g.Apply(log); err != nil {
			s.dumpDebug("graph_op", log)
			return engine.Wrapf(engine.ErrGraph, "graph_op", step.Action, "step %d: %v", i, err)
		}
	}
	return nil
}

// runExports invokes every export step's Exporter concurrently against
// the same graph snapshot; failures are collected but do not stop other
// exporters.
func (s *Scheduler) runExports(ctx context.Context, steps []workflow.ExportStep, g graph.Engine) ([]module.Status, []error) {
	statusesByStep := make([][]module.Status, len(steps))
	errs := make([]error, len(steps))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(i int, step workflow.ExportStep) {
			defer wg.Done()
			exp, err := s.Registry.Exporter(step.Format)
			if err != nil {
				errs[i] = engine.Wrap(engine.ErrConfig, "export", step.Format, err.Error())
				return
			}
			statuses, err := exp.Export(ctx, g, step.Path, step.Config)
			statusesByStep[i] = statuses
			if err != nil {
				errs[i] = engine.Wrap(engine.ErrExport, "export", step.Format, fmt.Sprintf("%s: %v", step.Path, err))
			}
		}(i, step)
	}
	wg.Wait()

	var statuses []module.Status
	var fatal []error
	for i := range steps {
		statuses = append(statuses, statusesByStep[i]...)
		if errs[i] != nil {
			fatal = append(fatal, errs[i])
		}
	}
	return statuses, fatal
}

func (s *Scheduler) dumpDebug(phase string, log graph.Log) {
	if s.Config == nil || s.Config.DebugDumpDir == "" {
		return
	}
	out, err := log.DumpYAML()
	if err != nil {
		return
	}
	path := s.Config.DebugDumpDir + "/" + phase + ".debug.yaml"
	_ = writeDebugFile(path, out)
}
