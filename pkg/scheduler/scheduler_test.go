package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/brannveig/corpusgraph/pkg/engine"
	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/brannveig/corpusgraph/pkg/module"
	"github.com/brannveig/corpusgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct{ fail bool }

func (f fakeImporter) Import(ctx context.Context, path string, config map[string]any) (graph.Log, []module.Status, error) {
	if f.fail {
		return graph.Log{}, nil, errors.New("boom")
	}
	var log graph.Log
	log.Append(graph.AddNode(graph.NodeName(path)))
	return log, []module.Status{{Message: "imported", Document: path}}, nil
}

type noopOperation struct{}

func (noopOperation) Apply(ctx context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	return graph.NewLog(), nil, nil
}

type failingOperation struct{}

func (failingOperation) Apply(ctx context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	return graph.Log{}, nil, errors.New("rule collision")
}

type warnOperation struct{}

func (warnOperation) Apply(ctx context.Context, g graph.Engine, config map[string]any) (graph.Log, []module.Status, error) {
	return graph.Log{}, nil, &Warning{Err: errors.New("check failed, downgraded")}
}

type fakeExporter struct{ fail bool }

func (f fakeExporter) Export(ctx context.Context, g graph.Engine, path string, config map[string]any) ([]module.Status, error) {
	if f.fail {
		return nil, errors.New("disk full")
	}
	return []module.Status{{Message: "exported"}}, nil
}

func newTestScheduler() (*Scheduler, *module.Registry) {
	reg := module.NewRegistry()
	reg.RegisterImporter("fake", func() module.Importer { return fakeImporter{} })
	reg.RegisterImporter("failing", func() module.Importer { return fakeImporter{fail: true} })
	reg.RegisterOperation("noop", func() module.GraphOperation { return noopOperation{} })
	reg.RegisterOperation("failer", func() module.GraphOperation { return failingOperation{} })
	reg.RegisterOperation("warner", func() module.GraphOperation { return warnOperation{} })
	reg.RegisterExporter("fake", func() module.Exporter { return fakeExporter{} })
	reg.RegisterExporter("failing", func() module.Exporter { return fakeExporter{fail: true} })

	sched := New(reg, engine.NewStderrLogger("test"), engine.LoadFromEnv())
	return sched, reg
}

func TestScheduler_HappyPath(t *testing.T) {
	sched, _ := newTestScheduler()
	plan := &workflow.Plan{
		Imports:  []workflow.ImportStep{{Format: "fake", Path: "corpus/a"}, {Format: "fake", Path: "corpus/b"}},
		GraphOps: []workflow.GraphOpStep{{Action: "noop"}},
		Exports:  []workflow.ExportStep{{Format: "fake", Path: "out.graphml"}},
	}
	g := graph.New()
	res := sched.Run(context.Background(), plan, g)

	assert.True(t, res.Success())
	assert.Equal(t, PhaseDone, res.Phase)
	assert.Equal(t, 2, g.NodeCount())
}

func TestScheduler_ImportFailureAbortsPhase(t *testing.T) {
	sched, _ := newTestScheduler()
	plan := &workflow.Plan{
		Imports: []workflow.ImportStep{{Format: "fake", Path: "corpus/a"}, {Format: "failing", Path: "corpus/b"}},
	}
	g := graph.New()
	res := sched.Run(context.Background(), plan, g)

	assert.False(t, res.Success())
	assert.Equal(t, PhaseFailed, res.Phase)
	require.Len(t, res.FatalErrors, 1)
	assert.Equal(t, 0, g.NodeCount(), "no partial import may be applied")
}

func TestScheduler_OperationFailureAborts(t *testing.T) {
	sched, _ := newTestScheduler()
	plan := &workflow.Plan{
		Imports:  []workflow.ImportStep{{Format: "fake", Path: "corpus/a"}},
		GraphOps: []workflow.GraphOpStep{{Action: "failer"}},
	}
	g := graph.New()
	res := sched.Run(context.Background(), plan, g)
	assert.False(t, res.Success())
	assert.Equal(t, PhaseFailed, res.Phase)
}

func TestScheduler_WarningDowngradesFailure(t *testing.T) {
	sched, _ := newTestScheduler()
	plan := &workflow.Plan{
		Imports:  []workflow.ImportStep{{Format: "fake", Path: "corpus/a"}},
		GraphOps: []workflow.GraphOpStep{{Action: "warner"}},
		Exports:  []workflow.ExportStep{{Format: "fake", Path: "out.graphml"}},
	}
	g := graph.New()
	res := sched.Run(context.Background(), plan, g)
	assert.True(t, res.Success())
	require.Len(t, res.Warnings, 1)
}

func TestScheduler_ExportFailureCollectedNotAborted(t *testing.T) {
	sched, _ := newTestScheduler()
	plan := &workflow.Plan{
		Imports: []workflow.ImportStep{{Format: "fake", Path: "corpus/a"}},
		Exports: []workflow.ExportStep{{Format: "failing", Path: "out1"}, {Format: "fake", Path: "out2"}},
	}
	g := graph.New()
	res := sched.Run(context.Background(), plan, g)
	assert.False(t, res.Success())
	require.Len(t, res.FatalErrors, 1)
}
