package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "workflow.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_BasicPlan(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, `
[options]
name = "demo"

[[import]]
format = "conllu"
path = "corpus.conllu"

[[graph_op]]
action = "merge"

[graph_op.config]
key = "annis::tok"

[[export]]
format = "graphml"
path = "out/corpus.graphml"
`)
	plan, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "demo", plan.Options.Name)
	require.Len(t, plan.Imports, 1)
	assert.Equal(t, filepath.Join(dir, "corpus.conllu"), plan.Imports[0].Path)
	require.Len(t, plan.Exports, 1)
	assert.Equal(t, filepath.Join(dir, "out/corpus.graphml"), plan.Exports[0].Path)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, `
[[import]]
format = "conllu"
path = "corpus.conllu"
bogus_field = true
`)
	_, err := Load(path, false)
	assert.Error(t, err)
}

func TestLoad_RequiresFormatAndPath(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, `
[[import]]
path = "corpus.conllu"
`)
	_, err := Load(path, false)
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvWhenEnabled(t *testing.T) {
	t.Setenv("CORPUS_ROOT", "/data/corpora")
	dir := t.TempDir()
	path := writeDoc(t, dir, `
[[import]]
format = "conllu"
path = "c.conllu"

[import.config]
root = "$CORPUS_ROOT/a"
`)
	plan, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/data/corpora/a", plan.Imports[0].Config["root"])
}

func TestLoad_DoesNotExpandByDefault(t *testing.T) {
	t.Setenv("CORPUS_ROOT", "/data/corpora")
	dir := t.TempDir()
	path := writeDoc(t, dir, `
[[import]]
format = "conllu"
path = "c.conllu"

[import.config]
root = "$CORPUS_ROOT/a"
`)
	plan, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "$CORPUS_ROOT/a", plan.Imports[0].Config["root"])
}

func TestWriteFooter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.toml.footer.yaml")
	require.NoError(t, WriteFooter(Footer{EngineVersion: "0.1.0", Success: true}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engine_version")
	assert.Contains(t, string(data), "true")
}
