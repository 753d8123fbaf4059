package engine

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeConfig_Defaults(t *testing.T) {
	for _, k := range []string{"ANNATTO_IN_MEMORY", "ANNATTO_GRAPH_DIR", "ANNATTO_MAX_ITERATIONS", "ANNATTO_EXPAND_ENV"} {
		os.Unsetenv(k)
	}
	cfg := LoadFromEnv()
	assert.True(t, cfg.InMemory)
	assert.Equal(t, 1000, cfg.MaxIterations)
	require.NoError(t, cfg.Validate())
}

func TestRuntimeConfig_DiskModeRequiresDir(t *testing.T) {
	cfg := &RuntimeConfig{InMemory: false, GraphDir: "", MaxIterations: 10}
	assert.Error(t, cfg.Validate())
}

func TestRuntimeConfig_RejectsNonPositiveCap(t *testing.T) {
	cfg := &RuntimeConfig{InMemory: true, MaxIterations: 0}
	assert.Error(t, cfg.Validate())
}

func TestLogger_PhaseTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "import")
	l.Print("reading corpus/doc")
	assert.Contains(t, buf.String(), "[import]")
	assert.Contains(t, buf.String(), "reading corpus/doc")
}

func TestLogger_ModuleChild(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "op").Module("merge")
	l.Print("hi")
	assert.Contains(t, buf.String(), "[op] [merge] hi")
}

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrGraph, "ops", "merge", "duplicate node x")
	assert.True(t, errors.Is(err, ErrGraph))
	assert.Contains(t, err.Error(), "merge")
}
