package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// Backend implements ports.Backend in memory.
// Safe for concurrent use.
type Backend struct {
	mu    sync.RWMutex
	data  map[string]json.RawMessage
	order []string
}

// NewBackend creates a new in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		data: make(map[string]json.RawMessage),
	}
}

// List returns documents in insertion order.
func (b *Backend) List(ctx context.Context) ([]json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]json.RawMessage, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, clone(b.data[id]))
	}
	return out, nil
}

// Get retrieves a document.
func (b *Backend) Get(ctx context.Context, id string) (json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc, ok := b.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// Copy on read so callers can't mutate stored bytes.
	return clone(doc), nil
}

// Put inserts or overwrites a document.
func (b *Backend) Put(ctx context.Context, id string, doc json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.data[id]; !exists {
		b.order = append(b.order, id)
	}
	b.data[id] = clone(doc)
	return nil
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.data[id]; !exists {
		return nil
	}
	delete(b.data, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

func clone(doc json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), doc...)
}
