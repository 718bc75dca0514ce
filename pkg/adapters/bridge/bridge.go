// Package bridge implements ports.ConnectionManager over the command/event
// boundary: connection work is delegated to an outer process that receives
// Commands and reports back Inbound events.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/aretw0/virtuoso/pkg/session"
)

// ErrNoTransport is returned when no outer process is attached to receive commands.
var ErrNoTransport = errors.New("no transport attached")

// CommandSink delivers commands to the outer process.
type CommandSink interface {
	Deliver(ctx context.Context, cmd domain.Command) error
}

// AccountDirectory resolves connection details for an alias.
type AccountDirectory func(ctx context.Context, alias string) (domain.Account, bool)

// Manager implements ports.ConnectionManager.
type Manager struct {
	sink      CommandSink
	registry  *session.Registry
	directory AccountDirectory
	logger    *slog.Logger

	mu        sync.Mutex
	announced map[string]bool

	onCommand []func(domain.Command)
	onInbound []func(domain.Inbound)
}

var _ ports.ConnectionManager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry shares a session registry.
func WithRegistry(r *session.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithAccountDirectory supplies host and port for add-account commands.
func WithAccountDirectory(d AccountDirectory) Option {
	return func(m *Manager) {
		m.directory = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCommandObserver is called for every command successfully delivered.
func WithCommandObserver(fn func(domain.Command)) Option {
	return func(m *Manager) {
		m.onCommand = append(m.onCommand, fn)
	}
}

// WithInboundObserver is called for every ingested event.
func WithInboundObserver(fn func(domain.Inbound)) Option {
	return func(m *Manager) {
		m.onInbound = append(m.onInbound, fn)
	}
}

// New creates a bridge manager emitting commands to sink.
func New(sink CommandSink, opts ...Option) *Manager {
	m := &Manager{
		sink:      sink,
		logger:    slog.New(slog.DiscardHandler),
		announced: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = session.NewRegistry(session.WithLogger(m.logger))
	}
	return m
}

func (m *Manager) ensure(ctx context.Context, ref domain.AccountReference) *session.Session {
	return m.registry.Ensure(ref.Alias, func() domain.Account {
		account := domain.Account{Alias: ref.Alias, JID: ref.JID}
		if m.directory != nil {
			if known, ok := m.directory(ctx, ref.Alias); ok {
				account = known
				if ref.JID != "" {
					account.JID = ref.JID
				}
			}
		}
		return account
	})
}

func (m *Manager) emit(ctx context.Context, cmd domain.Command) error {
	if err := m.sink.Deliver(ctx, cmd); err != nil {
		return fmt.Errorf("failed to deliver %s for %s: %w", cmd.Kind, cmd.AccountID, err)
	}
	for _, fn := range m.onCommand {
		fn(cmd)
	}
	return nil
}

// Open announces the account if needed and asks the outer process to connect it.
func (m *Manager) Open(ctx context.Context, ref domain.AccountReference) error {
	m.ensure(ctx, ref)
	return m.registry.WithLock(ctx, ref.Alias, func(ctx context.Context, s *session.Session) error {
		m.mu.Lock()
		announced := m.announced[ref.Alias]
		m.mu.Unlock()

		if !announced {
			account := s.Account()
			err := m.emit(ctx, domain.Command{
				Kind:      domain.CommandAddAccount,
				AccountID: account.Alias,
				JID:       account.JID,
				Host:      account.Host,
				Port:      account.Port,
			})
			if err != nil {
				return err
			}
			m.mu.Lock()
			m.announced[ref.Alias] = true
			m.mu.Unlock()
		}

		previous := s.Status()
		if previous == domain.StatusConnected {
			return m.emit(ctx, domain.Command{Kind: domain.CommandConnectAccount, AccountID: ref.Alias})
		}
		// Set before emitting: the status report may arrive before emit returns.
		s.SetStatus(domain.StatusConnecting, "")
		if err := m.emit(ctx, domain.Command{Kind: domain.CommandConnectAccount, AccountID: ref.Alias}); err != nil {
			s.SetStatus(previous, "")
			return err
		}
		return nil
	})
}

// Close asks the outer process to disconnect the account.
func (m *Manager) Close(ctx context.Context, ref domain.AccountReference) error {
	m.ensure(ctx, ref)
	return m.registry.WithLock(ctx, ref.Alias, func(ctx context.Context, s *session.Session) error {
		return m.emit(ctx, domain.Command{Kind: domain.CommandDisconnectAccount, AccountID: ref.Alias})
	})
}

// Send forwards payload. The account must have reported itself connected.
func (m *Manager) Send(ctx context.Context, ref domain.AccountReference, payload string) error {
	s, err := m.registry.Get(ref.Alias)
	if err != nil || s.Status() != domain.StatusConnected {
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, ref.Alias)
	}
	return m.emit(ctx, domain.Command{Kind: domain.CommandSendStanza, AccountID: ref.Alias, Payload: payload})
}

// Status returns the last status reported for the account.
func (m *Manager) Status(ref domain.AccountReference) domain.ConnectionStatus {
	s, err := m.registry.Get(ref.Alias)
	if err != nil {
		return domain.StatusDisconnected
	}
	return s.Status()
}

// Subscribe attaches a consumer to the account's events.
func (m *Manager) Subscribe(ref domain.AccountReference) (ports.Subscription, error) {
	return m.ensure(context.Background(), ref).Subscribe(), nil
}

// Remove tells the outer process to forget the account and drops its session.
func (m *Manager) Remove(ctx context.Context, alias string) error {
	if _, err := m.registry.Get(alias); err != nil {
		return err
	}
	if err := m.emit(ctx, domain.Command{Kind: domain.CommandRemoveAccount, AccountID: alias}); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.announced, alias)
	m.mu.Unlock()
	m.registry.Remove(alias)
	return nil
}

// Ingest applies an event reported by the outer process.
func (m *Manager) Ingest(ev domain.Inbound) error {
	s, err := m.registry.Get(ev.AccountID)
	if err != nil {
		return err
	}

	switch ev.Kind {
	case domain.InboundStanzaResponse:
		payload, err := SanitizePayload(ev.Payload)
		if err != nil {
			return fmt.Errorf("stanza for %s rejected: %w", ev.AccountID, err)
		}
		ev.Payload = payload
		s.Deliver(payload)
	case domain.InboundAccountStatus:
		status, ok := domain.ParseConnectionStatus(ev.Status)
		if !ok {
			return fmt.Errorf("unknown account status %q", ev.Status)
		}
		s.SetStatus(status, ev.Error)
		m.logger.Debug("account status", "account", ev.AccountID, "status", status)
	default:
		return fmt.Errorf("unknown event type %q", ev.Kind)
	}

	for _, fn := range m.onInbound {
		fn(ev)
	}
	return nil
}
