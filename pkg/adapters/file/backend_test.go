package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/virtuoso/pkg/adapters/file"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend_Contract(t *testing.T) {
	backend := file.New(filepath.Join(t.TempDir(), "compositions.json"), "compositions")
	ports.RunBackendContract(t, backend)
}

func TestFileBackend_WrapsCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "performances.json")
	backend := file.New(path, "performances")

	require.NoError(t, backend.Put(context.Background(), "perf_1", json.RawMessage(`{"id":"perf_1","status":"passed"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var wrapper map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &wrapper))
	require.Len(t, wrapper["performances"], 1)
	assert.Equal(t, "passed", wrapper["performances"][0]["status"])

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	backend := file.New(filepath.Join(t.TempDir(), "absent.json"), "compositions")
	docs, err := backend.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compositions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := file.New(path, "compositions").List(context.Background())
	assert.Error(t, err)
}

func TestFileBackend_AccountsKeyedByAlias(t *testing.T) {
	backend := file.New(filepath.Join(t.TempDir(), "accounts.json"), "accounts")
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "alice", json.RawMessage(`{"alias":"alice","jid":"alice@example.com"}`)))
	require.NoError(t, backend.Put(ctx, "bob", json.RawMessage(`{"alias":"bob","jid":"bob@example.com"}`)))
	require.NoError(t, backend.Put(ctx, "alice", json.RawMessage(`{"alias":"alice","jid":"alice@other.org"}`)))

	got, err := backend.Get(ctx, "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"alias":"alice","jid":"alice@other.org"}`, string(got))

	all, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
