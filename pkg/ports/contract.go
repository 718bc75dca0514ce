package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBackendContract runs a suite of tests to verify that a Backend implementation
// adheres to the defined interface contract. The backend must start empty.
func RunBackendContract(t *testing.T, backend Backend) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")
	doc := func(id, name string) json.RawMessage {
		return json.RawMessage(fmt.Sprintf(`{"id":%q,"name":%q}`, id, name))
	}
	name := func(raw json.RawMessage) string {
		var v struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(raw, &v))
		return v.Name
	}

	t.Run("Put and Get", func(t *testing.T) {
		id := prefix + "-a"
		require.NoError(t, backend.Put(ctx, id, doc(id, "first")), "Put should not return error")

		got, err := backend.Get(ctx, id)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, "first", name(got))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := backend.Get(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Overwrite keeps position", func(t *testing.T) {
		a, b := prefix+"-a", prefix+"-b"
		require.NoError(t, backend.Put(ctx, b, doc(b, "second")))
		require.NoError(t, backend.Put(ctx, a, doc(a, "first-updated")))

		docs, err := backend.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "first-updated", name(docs[0]))
		assert.Equal(t, "second", name(docs[1]))
	})

	t.Run("Delete", func(t *testing.T) {
		a := prefix + "-a"
		require.NoError(t, backend.Delete(ctx, a), "Delete should not return error")

		_, err := backend.Get(ctx, a)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")

		require.NoError(t, backend.Delete(ctx, a), "Deleting twice should be a no-op")

		docs, err := backend.List(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}
