package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// Backend implements ports.Backend on a single JSON file shaped as
// {"<collection>": [ ...documents ]}.
// Safe for concurrent use within one process.
type Backend struct {
	Path       string
	Collection string

	mu sync.Mutex
}

// New creates a Backend for collection stored at path.
// If path is empty, it defaults to ".virtuoso/<collection>.json".
func New(path, collection string) *Backend {
	if path == "" {
		path = filepath.Join(".virtuoso", collection+".json")
	}
	return &Backend{Path: path, Collection: collection}
}

type entry struct {
	id  string
	doc json.RawMessage
}

func (b *Backend) read() ([]entry, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.Path, err)
	}

	var wrapper map[string][]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", b.Path, err)
	}

	docs := wrapper[b.Collection]
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		var head struct {
			ID    string `json:"id"`
			Alias string `json:"alias"`
		}
		if err := json.Unmarshal(doc, &head); err != nil {
			return nil, fmt.Errorf("failed to read document id: %w", err)
		}
		// Accounts are keyed by alias.
		id := head.ID
		if id == "" {
			id = head.Alias
		}
		entries = append(entries, entry{id: id, doc: doc})
	}
	return entries, nil
}

// write persists the collection atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (b *Backend) write(entries []entry) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	docs := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	data, err := json.MarshalIndent(map[string][]json.RawMessage{b.Collection: docs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", b.Collection, err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+b.Collection+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(b.Path); err == nil {
		if err := os.Remove(b.Path); err != nil {
			return fmt.Errorf("failed to remove existing store file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, b.Path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns every document in file order.
func (b *Backend) List(ctx context.Context) ([]json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}
	return out, nil
}

// Get retrieves a document by id.
func (b *Backend) Get(ctx context.Context, id string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.id == id {
			return e.doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Put inserts or overwrites a document in place.
func (b *Backend) Put(ctx context.Context, id string, doc json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].id == id {
			entries[i].doc = doc
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry{id: id, doc: doc})
	}
	return b.write(entries)
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.id != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return b.write(kept)
}
