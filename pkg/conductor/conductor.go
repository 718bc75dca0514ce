// Package conductor plays a Composition back against a ConnectionManager and
// produces a Performance.
//
// Each account runs on its own goroutine and executes its stanzas strictly in
// composition order. Inbound traffic is subscribed before anything is sent, so
// replies that arrive before a cue starts waiting are not lost.
package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/observability"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/aretw0/virtuoso/pkg/schema"
	"golang.org/x/time/rate"
)

// DefaultConnectTimeout bounds how long a connect stanza waits for the session to come online.
const DefaultConnectTimeout = 10 * time.Second

// Conductor drives playback runs.
type Conductor struct {
	manager        ports.ConnectionManager
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	limiter        *rate.Limiter
	connectTimeout time.Duration
	now            func() time.Time
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conductor) {
		c.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks. Calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Conductor) {
		c.hooks = c.hooks.Merge(hooks)
	}
}

// WithMetrics records Prometheus metrics for every run.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Conductor) {
		c.hooks = c.hooks.Merge(m.Hooks())
	}
}

// WithSendLimiter throttles send stanzas across all accounts of a run.
func WithSendLimiter(l *rate.Limiter) Option {
	return func(c *Conductor) {
		c.limiter = l
	}
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Conductor) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithClock overrides time.Now for stamps and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Conductor) {
		c.now = now
	}
}

// New creates a Conductor on top of manager.
func New(manager ports.ConnectionManager, opts ...Option) *Conductor {
	c := &Conductor{
		manager:        manager,
		logger:         slog.New(slog.DiscardHandler),
		connectTimeout: DefaultConnectTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start validates comp and launches a run on a snapshot of it.
// Configuration errors are returned before anything is dispatched.
func (c *Conductor) Start(ctx context.Context, comp *domain.Composition) (*Run, error) {
	if err := schema.ValidateComposition(comp); err != nil {
		return nil, err
	}
	snapshot, err := comp.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot composition: %w", err)
	}

	// Accounts in order of first use; each needs a live subscription before dispatch.
	var aliases []string
	plans := make(map[string][]domain.Stanza)
	for _, st := range snapshot.Stanzas {
		if _, seen := plans[st.AccountAlias]; !seen {
			aliases = append(aliases, st.AccountAlias)
		}
		plans[st.AccountAlias] = append(plans[st.AccountAlias], st)
	}

	subs := make(map[string]ports.Subscription, len(aliases))
	for _, alias := range aliases {
		account, _ := snapshot.Account(alias)
		sub, err := c.manager.Subscribe(account)
		if err != nil {
			for _, s := range subs {
				s.Close()
			}
			return nil, fmt.Errorf("failed to subscribe to account %q: %w", alias, err)
		}
		subs[alias] = sub
	}

	ids := make([]string, len(snapshot.Stanzas))
	for i, st := range snapshot.Stanzas {
		ids[i] = st.ID
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{
		conductor:   c,
		composition: snapshot,
		agg:         NewAggregator(domain.NewID(domain.PrefixPerformance), snapshot.ID, ids, c.now),
		ctx:         runCtx,
		cancel:      cancel,
		subs:        subs,
		done:        make(chan struct{}),
	}
	// Cancelling the caller's context stops the run.
	stopOnParent := context.AfterFunc(ctx, run.Stop)

	perfID := run.agg.perf.ID
	c.logger.Info("performance started",
		"performance_id", perfID,
		"composition_id", snapshot.ID,
		"accounts", len(aliases),
		"stanzas", len(ids),
	)
	if c.hooks.OnPerformanceStart != nil {
		c.hooks.OnPerformanceStart(ctx, &domain.PerformanceEvent{Timestamp: c.now(), Performance: run.agg.Snapshot()})
	}

	var wg sync.WaitGroup
	for _, alias := range aliases {
		account, _ := snapshot.Account(alias)
		p := &player{
			run:     run,
			account: account,
			sub:     subs[alias],
		}
		wg.Add(1)
		go func(stanzas []domain.Stanza) {
			defer wg.Done()
			p.play(stanzas)
		}(plans[alias])
	}

	go func() {
		wg.Wait()
		stopOnParent()
		run.finish(false)
	}()

	return run, nil
}

// Play runs comp to completion (or until ctx is cancelled) and returns the sealed Performance.
func (c *Conductor) Play(ctx context.Context, comp *domain.Composition) (*domain.Performance, error) {
	run, err := c.Start(ctx, comp)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}
