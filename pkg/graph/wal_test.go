package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := OpenJournal(path)
	require.NoError(t, err)

	var log1 Log
	log1.Append(AddNode("n1"))
	require.NoError(t, j.Append(log1))

	var log2 Log
	log2.Append(AddNodeLabel("n1", KeyTok, "x"))
	require.NoError(t, j.Append(log2))
	require.NoError(t, j.Close())

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, uint64(2), entries[1].Sequence)
	assert.Equal(t, KindAddNode, entries[0].Records[0].Kind)
}

func TestJournal_CorruptedEntrySkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	var log Log
	log.Append(AddNode("n1"))
	require.NoError(t, j.Append(log))
	require.NoError(t, j.Close())

	// Tamper with a single entry's checksum by reading then rewriting.
	entries, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries[0].Checksum[0] ^= 0xFF
	assert.NotEqual(t, checksumRecords(entries[0].Records), entries[0].Checksum)

	b, err := json.Marshal(entries[0])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(b, '\n'), 0644))
	entries, err = ReadJournal(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_AppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	var log Log
	log.Append(AddNode("n1"))
	err = j.Append(log)
	assert.ErrorIs(t, err, ErrJournalClosed)
}

func TestLog_DumpYAML(t *testing.T) {
	var log Log
	log.Append(AddNode("n1"))
	log.Append(AddNodeLabel("n1", KeyTok, "hi"))

	out, err := log.DumpYAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "add_node")
	assert.Contains(t, string(out), "annis::tok")
}
