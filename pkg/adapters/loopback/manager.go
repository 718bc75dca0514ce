// Package loopback is an in-process ConnectionManager that simulates a server.
//
// Sends are routed by their root "to" attribute to the other accounts of the
// session, connected or not, so offline peers find the message queued.
// IQ get/set requests addressed to nobody in the session are answered with an
// empty result carrying the same id. Responders can script further replies.
package loopback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/aretw0/virtuoso/pkg/session"
)

// Reply is a payload delivered to an account alias.
type Reply struct {
	To      string
	Payload string
}

// Responder produces replies for a payload sent by from.
type Responder func(from domain.AccountReference, payload string) []Reply

// Manager implements ports.ConnectionManager.
type Manager struct {
	registry *session.Registry
	logger   *slog.Logger

	mu         sync.RWMutex
	responders []Responder
	failures   map[string]string
	delay      time.Duration
	iqReplies  bool
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

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithResponder adds a scripted responder.
func WithResponder(r Responder) Option {
	return func(m *Manager) {
		m.responders = append(m.responders, r)
	}
}

// WithConnectFailure makes Open on alias end in an error status.
func WithConnectFailure(alias, reason string) Option {
	return func(m *Manager) {
		m.failures[alias] = reason
	}
}

// WithConnectDelay delays the connected status after Open.
func WithConnectDelay(d time.Duration) Option {
	return func(m *Manager) {
		m.delay = d
	}
}

// WithoutIQReplies disables the automatic IQ result.
func WithoutIQReplies() Option {
	return func(m *Manager) {
		m.iqReplies = false
	}
}

// New creates a loopback manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		logger:    slog.New(slog.DiscardHandler),
		failures:  make(map[string]string),
		iqReplies: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = session.NewRegistry(session.WithLogger(m.logger))
	}
	return m
}

// Registry exposes the sessions, mainly for tests.
func (m *Manager) Registry() *session.Registry {
	return m.registry
}

// AddResponder registers a responder after construction.
func (m *Manager) AddResponder(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders = append(m.responders, r)
}

func (m *Manager) ensure(account domain.AccountReference) *session.Session {
	return m.registry.Ensure(account.Alias, func() domain.Account {
		return domain.Account{Alias: account.Alias, JID: account.JID}
	})
}

// Open reports connecting immediately and connected (or error) asynchronously.
func (m *Manager) Open(ctx context.Context, account domain.AccountReference) error {
	m.ensure(account)

	return m.registry.WithLock(ctx, account.Alias, func(ctx context.Context, s *session.Session) error {
		if s.Status() == domain.StatusConnected {
			return nil
		}
		s.SetStatus(domain.StatusConnecting, "")

		m.mu.RLock()
		reason, fails := m.failures[account.Alias]
		delay := m.delay
		m.mu.RUnlock()

		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			if fails {
				s.SetStatus(domain.StatusError, reason)
				return
			}
			s.SetStatus(domain.StatusConnected, "")
		}()
		m.logger.Debug("account opening", "account", account.Alias)
		return nil
	})
}

// Close disconnects the account.
func (m *Manager) Close(ctx context.Context, account domain.AccountReference) error {
	m.ensure(account)
	return m.registry.WithLock(ctx, account.Alias, func(ctx context.Context, s *session.Session) error {
		s.SetStatus(domain.StatusDisconnected, "")
		return nil
	})
}

// Send routes payload.
func (m *Manager) Send(ctx context.Context, account domain.AccountReference, payload string) error {
	s, err := m.registry.Get(account.Alias)
	if err != nil || s.Status() != domain.StatusConnected {
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, account.Alias)
	}

	acc := s.Account()
	from := domain.AccountReference{Alias: acc.Alias, JID: acc.JID}
	var replies []Reply

	to, isIQ, iqType, id := envelope(payload)
	routed := false
	if to != "" {
		for _, alias := range m.registry.List() {
			peer, err := m.registry.Get(alias)
			if err != nil {
				continue
			}
			if bare(peer.Account().JID) == bare(to) && alias != from.Alias {
				replies = append(replies, Reply{To: alias, Payload: payload})
				routed = true
			}
		}
	}
	if isIQ && !routed && m.iqReplies && id != "" && (iqType == "get" || iqType == "set") {
		result := fmt.Sprintf(`<iq type="result" id="%s" to="%s"`, id, from.JID)
		if to != "" {
			result += fmt.Sprintf(` from="%s"`, to)
		}
		replies = append(replies, Reply{To: from.Alias, Payload: result + "/>"})
	}

	m.mu.RLock()
	responders := append([]Responder(nil), m.responders...)
	m.mu.RUnlock()
	for _, r := range responders {
		replies = append(replies, r(from, payload)...)
	}

	for _, r := range replies {
		peer, err := m.registry.Get(r.To)
		if err != nil {
			m.logger.Warn("dropping reply for unknown account", "account", r.To)
			continue
		}
		peer.Deliver(r.Payload)
	}
	m.logger.Debug("stanza sent", "account", from.Alias, "deliveries", len(replies))
	return nil
}

// Status returns the last status of the account.
func (m *Manager) Status(account domain.AccountReference) domain.ConnectionStatus {
	s, err := m.registry.Get(account.Alias)
	if err != nil {
		return domain.StatusDisconnected
	}
	return s.Status()
}

// Subscribe attaches a consumer, registering the account if needed.
func (m *Manager) Subscribe(account domain.AccountReference) (ports.Subscription, error) {
	return m.ensure(account).Subscribe(), nil
}

// Echo replies every payload back to its sender.
func Echo() Responder {
	return func(from domain.AccountReference, payload string) []Reply {
		return []Reply{{To: from.Alias, Payload: payload}}
	}
}

// When answers payloads containing needle with reply, sent to the sender.
func When(needle, reply string) Responder {
	return func(from domain.AccountReference, payload string) []Reply {
		if !strings.Contains(payload, needle) {
			return nil
		}
		return []Reply{{To: from.Alias, Payload: reply}}
	}
}

// envelope reads the routing attributes of the root element.
func envelope(payload string) (to string, isIQ bool, iqType, id string) {
	doc, err := matcher.Parse(payload)
	if err != nil {
		return "", false, "", ""
	}
	root := matcher.Root(doc)
	if root == nil {
		return "", false, "", ""
	}
	return root.SelectAttr("to"), root.Data == "iq", root.SelectAttr("type"), root.SelectAttr("id")
}

func bare(jid string) string {
	if i := strings.IndexByte(jid, '/'); i >= 0 {
		return jid[:i]
	}
	return jid
}
