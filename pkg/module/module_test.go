package module

import (
	"context"
	"testing"

	"github.com/brannveig/corpusgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct{}

func (fakeImporter) Import(ctx context.Context, path string, config map[string]any) (graph.Log, []Status, error) {
	return graph.NewLog(graph.AddNode(graph.NodeName(path))), nil, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.RegisterImporter("fake", func() Importer { return fakeImporter{} })

	imp, err := r.Importer("fake")
	require.NoError(t, err)
	log, _, err := imp.Import(context.Background(), "corpus/doc", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, log.Len())
}

func TestRegistry_UnknownFormat(t *testing.T) {
	r := NewRegistry()
	_, err := r.Importer("missing")
	assert.Error(t, err)
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.RegisterOperation("noop", func() GraphOperation { return nil })
	assert.Panics(t, func() {
		r.RegisterOperation("noop", func() GraphOperation { return nil })
	})
}
