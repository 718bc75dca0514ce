package ports

import (
	"context"
	"encoding/json"
)

// Backend persists one collection of raw JSON documents keyed by id.
// Implementations must preserve insertion order in List and keep the position of
// a document when it is overwritten.
type Backend interface {
	// List returns every document in insertion order.
	List(ctx context.Context) ([]json.RawMessage, error)

	// Get retrieves a document.
	// Returns domain.ErrNotFound if the id does not exist.
	Get(ctx context.Context, id string) (json.RawMessage, error)

	// Put inserts or overwrites a document.
	Put(ctx context.Context, id string, doc json.RawMessage) error

	// Delete removes a document. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
