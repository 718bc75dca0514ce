package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/virtuoso/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Backend using Redis.
// Documents live under <prefix><collection>:doc:<id>; a sorted set scored by an
// insertion sequence keeps List in insertion order.
type Store struct {
	client     *backend.Client
	prefix     string
	collection string
}

type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, collection string, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, collection, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, collection string, opts ...Option) *Store {
	store := &Store{
		client:     client,
		prefix:     "virtuoso:",
		collection: collection,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(id string) string {
	return s.prefix + s.collection + ":doc:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + s.collection + ":index"
}

func (s *Store) seqKey() string {
	return s.prefix + s.collection + ":seq"
}

// Put writes the document. Existing ids keep their position in the index.
func (s *Store) Put(ctx context.Context, id string, doc json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), []byte(doc), 0)
	pipe.ZAddNX(ctx, s.indexKey(), backend.Z{
		Score:  float64(seq),
		Member: id,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save document to redis: %w", err)
	}
	return nil
}

// Get retrieves a document.
func (s *Store) Get(ctx context.Context, id string) (json.RawMessage, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document from redis: %w", err)
	}
	return json.RawMessage(val), nil
}

// List returns every document in insertion order.
// Index entries whose document has vanished are skipped.
func (s *Store) List(ctx context.Context) ([]json.RawMessage, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	docs := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		docs = append(docs, json.RawMessage(str))
	}
	return docs, nil
}

// Delete removes a document and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete document from redis: %w", err)
	}
	return nil
}
