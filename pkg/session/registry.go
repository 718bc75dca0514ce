package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/internal/logging"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
)

// lockTTL bounds how long a distributed account lock survives a crashed holder.
const lockTTL = 30 * time.Second

// Session is the live state of one account.
type Session struct {
	alias string

	hub *Hub
	ops sync.Mutex // serializes open/close/send on the account

	mu      sync.RWMutex
	account domain.Account
	status  domain.ConnectionStatus
	err     string
}

// Alias returns the account alias. It never changes.
func (s *Session) Alias() string {
	return s.alias
}

// Account returns the current account details.
func (s *Session) Account() domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Status returns the last reported connection status.
func (s *Session) Status() domain.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastError returns the error attached to the last error status.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Subscribe returns a new consumer of the account's events.
func (s *Session) Subscribe() *Subscription {
	return s.hub.Subscribe()
}

// Deliver publishes an inbound message.
func (s *Session) Deliver(payload string) {
	s.hub.Publish(domain.MessageEvent(s.alias, payload))
}

// SetStatus records a status transition and publishes it.
func (s *Session) SetStatus(status domain.ConnectionStatus, errMsg string) {
	s.mu.Lock()
	s.status = status
	s.err = errMsg
	s.mu.Unlock()
	s.hub.Publish(domain.StatusEvent(s.alias, status, errMsg))
}

// Registry owns the sessions of a ConnectionManager.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLocker coordinates account operations across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Registry) {
		r.locker = locker
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the session for account.Alias, creating it if needed.
// Re-registering an existing alias updates its account details and keeps its subscribers.
func (r *Registry) Register(account domain.Account) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[account.Alias]; ok {
		s.mu.Lock()
		s.account = account
		s.mu.Unlock()
		return s
	}
	return r.create(account)
}

// Ensure returns the session for alias, creating it from build when absent.
// build runs at most once per call, only on creation, while the registry is locked.
func (r *Registry) Ensure(alias string, build func() domain.Account) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[alias]; ok {
		return s
	}
	account := build()
	account.Alias = alias
	return r.create(account)
}

func (r *Registry) create(account domain.Account) *Session {
	s := &Session{
		alias:   account.Alias,
		account: account,
		hub:     NewHub(),
		status:  domain.StatusDisconnected,
	}
	r.sessions[account.Alias] = s
	r.logger.Debug("session registered", "account", account.Alias, "jid", account.JID)
	return s
}

// Get looks up a session by alias.
func (r *Registry) Get(alias string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, alias)
	}
	return s, nil
}

// Remove drops the session and detaches its subscribers.
func (r *Registry) Remove(alias string) bool {
	r.mu.Lock()
	s, ok := r.sessions[alias]
	delete(r.sessions, alias)
	r.mu.Unlock()

	if ok {
		s.hub.Close()
	}
	return ok
}

// List returns the registered aliases in lexical order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sessions))
	for alias := range r.sessions {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// WithLock executes fn while holding the operation lock of the account.
func (r *Registry) WithLock(ctx context.Context, alias string, fn func(context.Context, *Session) error) error {
	s, err := r.Get(alias)
	if err != nil {
		return err
	}

	s.ops.Lock()
	defer s.ops.Unlock()

	// Distributed Locking
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, "account:"+alias, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				r.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"account", alias,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, s)
}
