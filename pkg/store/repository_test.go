package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/internal/testutils"
	"github.com/aretw0/virtuoso/pkg/adapters/file"
	"github.com/aretw0/virtuoso/pkg/adapters/memory"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompositions(opts ...store.Option) *store.Compositions {
	return store.NewCompositions(memory.NewBackend(), opts...)
}

func TestRepository_AddTwiceUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := newCompositions(store.WithClock(func() time.Time { return fixed }))

	comp := testutils.NewScript("comp_1", "alice").Connect("alice").Build()
	require.True(t, repo.Add(ctx, comp))
	first, ok := repo.Get(ctx, "comp_1")
	require.True(t, ok)

	comp.Name = "renamed"
	require.True(t, repo.Add(ctx, comp))

	items := repo.Load(ctx)
	require.Len(t, items, 1)
	assert.Equal(t, "renamed", items[0].Name)
	assert.Equal(t, first.Created, items[0].Created, "created must be preserved")
	assert.True(t, items[0].Updated.After(first.Updated), "updated must strictly increase even with a frozen clock")
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newCompositions()
	_, ok := repo.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newCompositions()

	require.True(t, repo.Add(ctx, testutils.NewScript("comp_1", "alice").Build()))
	assert.True(t, repo.Delete(ctx, "comp_1"))
	assert.False(t, repo.Delete(ctx, "comp_1"), "second delete removes nothing")
	assert.Empty(t, repo.Load(ctx))
}

func TestRepository_RejectsEmptyID(t *testing.T) {
	repo := newCompositions()
	assert.False(t, repo.Add(context.Background(), &domain.Composition{Name: "anonymous"}))
}

func TestRepository_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := store.NewCompositions(file.New(testutils.TempFile(t, "compositions.json"), "compositions"))

	original := testutils.NewScript("comp_1", "alice", "bob").
		Connect("alice").
		Send("alice", `<message to="bob@example.com"><body>hi</body></message>`).
		Cue("bob", domain.MatchContains, "hi", time.Second).
		Assert("bob", domain.AssertEquals, "//body", "hi").
		Build()
	original.Tags = []string{"smoke"}
	require.True(t, repo.Add(ctx, original))
	stored, _ := repo.Get(ctx, "comp_1")

	path := filepath.Join(t.TempDir(), "export", "comp.json")
	require.True(t, repo.ExportToFile(ctx, "comp_1", path))

	imported, ok := repo.ImportFromFile(ctx, path)
	require.True(t, ok)
	assert.Len(t, repo.Load(ctx), 2)

	assert.NotEqual(t, stored.ID, imported.ID)
	assert.Regexp(t, `^comp_\d+_[0-9a-f]{6}$`, imported.ID)
	assert.False(t, imported.Created.Before(stored.Created))

	// Everything but id and stamps survives.
	a, b := *stored, *imported
	a.ID, b.ID = "", ""
	a.Created, b.Created = time.Time{}, time.Time{}
	a.Updated, b.Updated = time.Time{}, time.Time{}
	assert.Equal(t, a, b)
}

func TestRepository_ExportMissing(t *testing.T) {
	repo := newCompositions()
	assert.False(t, repo.ExportToFile(context.Background(), "nope", filepath.Join(t.TempDir(), "x.json")))
}

func TestRepository_ImportYAML(t *testing.T) {
	ctx := context.Background()
	repo := newCompositions()

	path := testutils.TempFile(t, "comp.yaml")
	content := `
id: ignored
name: ping pong
version: 1.0.0
accounts:
  - alias: alice
    jid: alice@example.com
stanzas:
  - id: s1
    type: connect
    accountAlias: alice
    description: connect alice
    data: {}
  - id: s2
    type: cue
    accountAlias: alice
    description: wait for pong
    data:
      matchType: contains
      matchExpression: pong
      timeout: 2000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	comp, ok := repo.ImportFromFile(ctx, path)
	require.True(t, ok)
	assert.NotEqual(t, "ignored", comp.ID)
	require.Len(t, comp.Stanzas, 2)

	cue, isCue := comp.Stanzas[1].Data.(domain.CueData)
	require.True(t, isCue)
	assert.Equal(t, int64(2000), cue.Timeout)
	assert.Equal(t, domain.MatchContains, cue.MatchType)
}

func TestRepository_ImportGarbage(t *testing.T) {
	repo := newCompositions()
	path := testutils.TempFile(t, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, ok := repo.ImportFromFile(context.Background(), path)
	assert.False(t, ok)
	assert.Empty(t, repo.Load(context.Background()))
}
