// Package store implements the persistence contract for compositions,
// performances, templates and accounts on top of a raw ports.Backend.
//
// Repository methods never return errors. Failures are logged and reported as
// false or absent values, so a broken store degrades the tool instead of
// aborting a run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Entity constrains T so that *T carries an id and stamps.
type Entity[T any] interface {
	*T
	domain.Entity
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Repository stores entities of one kind in a Backend.
type Repository[T any, PT Entity[T]] struct {
	backend ports.Backend
	prefix  string
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex // serializes read-modify-write in Add
}

// New creates a Repository. prefix is used to mint ids on import.
func New[T any, PT Entity[T]](backend ports.Backend, prefix string, opts ...Option) *Repository[T, PT] {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T, PT]{
		backend: backend,
		prefix:  prefix,
		logger:  o.logger,
		now:     o.now,
	}
}

// Load returns every stored item in insertion order.
// Undecodable documents are logged and skipped.
func (r *Repository[T, PT]) Load(ctx context.Context) []PT {
	docs, err := r.backend.List(ctx)
	if err != nil {
		r.logger.Error("failed to load items", "prefix", r.prefix, "err", err)
		return []PT{}
	}

	items := make([]PT, 0, len(docs))
	for _, doc := range docs {
		item := PT(new(T))
		if err := json.Unmarshal(doc, item); err != nil {
			r.logger.Warn("skipping undecodable item", "prefix", r.prefix, "err", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// Get returns the item with id, or false when it is absent or unreadable.
func (r *Repository[T, PT]) Get(ctx context.Context, id string) (PT, bool) {
	doc, err := r.backend.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("failed to get item", "id", id, "err", err)
		}
		return nil, false
	}

	item := PT(new(T))
	if err := json.Unmarshal(doc, item); err != nil {
		r.logger.Error("failed to decode item", "id", id, "err", err)
		return nil, false
	}
	return item, true
}

// Add inserts or replaces item by id and stamps it.
// created is kept from the stored copy (or the item, or now); updated is now and
// always strictly after the previously stored value.
func (r *Repository[T, PT]) Add(ctx context.Context, item PT) bool {
	id := item.EntityID()
	if id == "" {
		r.logger.Error("refusing to add item without id", "prefix", r.prefix)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().Round(0)
	created, _ := item.Stamps()
	var previous time.Time
	if existing, ok := r.Get(ctx, id); ok {
		var prevCreated time.Time
		prevCreated, previous = existing.Stamps()
		if !prevCreated.IsZero() {
			created = prevCreated
		}
	}
	if created.IsZero() {
		created = now
	}
	updated := now
	if !previous.IsZero() && !updated.After(previous) {
		updated = previous.Add(time.Nanosecond)
	}
	item.Stamp(created, updated)

	doc, err := json.Marshal(item)
	if err != nil {
		r.logger.Error("failed to encode item", "id", id, "err", err)
		return false
	}
	if err := r.backend.Put(ctx, id, doc); err != nil {
		r.logger.Error("failed to save item", "id", id, "err", err)
		return false
	}
	return true
}

// Delete removes the item. It reports false when nothing was removed.
func (r *Repository[T, PT]) Delete(ctx context.Context, id string) bool {
	if _, err := r.backend.Get(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Error("failed to look up item", "id", id, "err", err)
		}
		return false
	}
	if err := r.backend.Delete(ctx, id); err != nil {
		r.logger.Error("failed to delete item", "id", id, "err", err)
		return false
	}
	return true
}

// ExportToFile writes one item as a bare JSON object.
func (r *Repository[T, PT]) ExportToFile(ctx context.Context, id, path string) bool {
	item, ok := r.Get(ctx, id)
	if !ok {
		r.logger.Warn("nothing to export", "id", id)
		return false
	}

	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		r.logger.Error("failed to encode export", "id", id, "err", err)
		return false
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			r.logger.Error("failed to create export directory", "path", path, "err", err)
			return false
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logger.Error("failed to write export", "path", path, "err", err)
		return false
	}
	return true
}

// ImportFromFile reads a single item (JSON, or YAML for .yaml/.yml files) and
// stores it under a freshly minted id with fresh stamps.
func (r *Repository[T, PT]) ImportFromFile(ctx context.Context, path string) (PT, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Error("failed to read import", "path", path, "err", err)
		return nil, false
	}

	item, err := Decode[T, PT](path, data)
	if err != nil {
		r.logger.Error("failed to decode import", "path", path, "err", err)
		return nil, false
	}

	item.SetEntityID(domain.NewID(r.prefix))
	item.Stamp(time.Time{}, time.Time{})
	if !r.Add(ctx, item) {
		return nil, false
	}
	return item, true
}

// Decode parses data as YAML when name ends in .yaml or .yml, and as JSON otherwise.
func Decode[T any, PT Entity[T]](name string, data []byte) (PT, error) {
	item := PT(new(T))
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, item); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, item); err != nil {
			return nil, err
		}
	}
	return item, nil
}
