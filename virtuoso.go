package virtuoso

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/virtuoso/pkg/adapters/memory"
	"github.com/aretw0/virtuoso/pkg/conductor"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/observability"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/aretw0/virtuoso/pkg/schema"
	"github.com/aretw0/virtuoso/pkg/store"
)

// ErrRunNotActive is returned when stopping a performance that is not running.
var ErrRunNotActive = errors.New("performance is not running")

// BackendFactory opens the raw backend of a collection.
type BackendFactory func(collection string) (ports.Backend, error)

// Engine is the high-level entry point for the Virtuoso library.
// It ties the stores, the Conductor and a ConnectionManager together.
type Engine struct {
	Compositions *store.Compositions
	Performances *store.Performances
	Templates    *store.Templates
	Accounts     *store.Accounts

	manager   ports.ConnectionManager
	conductor *conductor.Conductor
	backends  BackendFactory
	hooks     domain.LifecycleHooks
	condOpts  []conductor.Option
	logger    *slog.Logger

	mu   sync.Mutex
	runs map[string]*conductor.Run
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithMetrics feeds Prometheus collectors from every run.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(m.Hooks())
	}
}

// WithBackends selects where collections are stored. Defaults to memory.
func WithBackends(f BackendFactory) Option {
	return func(e *Engine) {
		e.backends = f
	}
}

// WithConductorOptions passes options through to the Conductor.
func WithConductorOptions(opts ...conductor.Option) Option {
	return func(e *Engine) {
		e.condOpts = append(e.condOpts, opts...)
	}
}

// New initializes an Engine that plays compositions through manager.
func New(manager ports.ConnectionManager, opts ...Option) (*Engine, error) {
	if manager == nil {
		return nil, fmt.Errorf("a connection manager is required")
	}
	e := &Engine{
		manager: manager,
		runs:    make(map[string]*conductor.Run),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.backends == nil {
		e.backends = func(string) (ports.Backend, error) { return memory.NewBackend(), nil }
	}

	open := func(collection string) (ports.Backend, error) {
		b, err := e.backends(collection)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", collection, err)
		}
		return b, nil
	}
	storeOpts := []store.Option{store.WithLogger(e.logger)}

	b, err := open(store.CollectionCompositions)
	if err != nil {
		return nil, err
	}
	e.Compositions = store.NewCompositions(b, storeOpts...)

	if b, err = open(store.CollectionPerformances); err != nil {
		return nil, err
	}
	e.Performances = store.NewPerformances(b, storeOpts...)

	if b, err = open(store.CollectionTemplates); err != nil {
		return nil, err
	}
	e.Templates = store.NewTemplates(b, storeOpts...)

	if b, err = open(store.CollectionAccounts); err != nil {
		return nil, err
	}
	e.Accounts = store.NewAccounts(b, storeOpts...)

	persist := domain.LifecycleHooks{
		OnPerformanceEnd: func(ctx context.Context, ev *domain.PerformanceEvent) {
			if !e.Performances.Add(ctx, ev.Performance) {
				e.logger.Error("performance not persisted", "performance_id", ev.Performance.ID)
			}
		},
	}
	condOpts := append([]conductor.Option{
		conductor.WithLogger(e.logger),
		conductor.WithLifecycleHooks(persist.Merge(e.hooks)),
	}, e.condOpts...)
	e.conductor = conductor.New(manager, condOpts...)

	return e, nil
}

// Manager returns the ConnectionManager runs are played through.
func (e *Engine) Manager() ports.ConnectionManager {
	return e.manager
}

// Validate checks a composition without running it.
func (e *Engine) Validate(comp *domain.Composition) error {
	return schema.ValidateComposition(comp)
}

// SaveComposition validates and stores comp.
func (e *Engine) SaveComposition(ctx context.Context, comp *domain.Composition) error {
	if comp.ID == "" {
		comp.ID = domain.NewID(domain.PrefixComposition)
	}
	if comp.Version == "" {
		comp.Version = domain.DefaultCompositionVersion
	}
	if err := e.Validate(comp); err != nil {
		return err
	}
	if !e.Compositions.Add(ctx, comp) {
		return fmt.Errorf("failed to save composition %s", comp.ID)
	}
	return nil
}

// Start plays a stored composition in the background.
// The run outlives ctx; use Stop to interrupt it.
func (e *Engine) Start(ctx context.Context, compositionID string) (*conductor.Run, error) {
	comp, ok := e.Compositions.Get(ctx, compositionID)
	if !ok {
		return nil, fmt.Errorf("composition %s: %w", compositionID, domain.ErrNotFound)
	}
	return e.StartComposition(ctx, comp)
}

// StartComposition plays comp in the background without storing it first.
func (e *Engine) StartComposition(ctx context.Context, comp *domain.Composition) (*conductor.Run, error) {
	run, err := e.conductor.Start(context.WithoutCancel(ctx), comp)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.runs[run.ID()] = run
	e.mu.Unlock()
	go func() {
		<-run.Done()
		e.mu.Lock()
		delete(e.runs, run.ID())
		e.mu.Unlock()
	}()
	return run, nil
}

// Play runs comp to completion, honouring ctx cancellation as a stop.
func (e *Engine) Play(ctx context.Context, comp *domain.Composition) (*domain.Performance, error) {
	run, err := e.StartComposition(ctx, comp)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, run.Stop)
	defer stop()
	return run.Wait(), nil
}

// Stop interrupts an active performance.
func (e *Engine) Stop(performanceID string) error {
	e.mu.Lock()
	run, ok := e.runs[performanceID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, performanceID)
	}
	run.Stop()
	return nil
}

// Performance returns the live snapshot of an active run or the stored report.
func (e *Engine) Performance(ctx context.Context, id string) (*domain.Performance, bool) {
	e.mu.Lock()
	run, ok := e.runs[id]
	e.mu.Unlock()
	if ok {
		return run.Snapshot(), true
	}
	return e.Performances.Get(ctx, id)
}

// Active returns the ids of running performances.
func (e *Engine) Active() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	return ids
}

// AllTemplates returns the built-in catalogue followed by saved templates.
func (e *Engine) AllTemplates(ctx context.Context) []*domain.Template {
	out := make([]*domain.Template, 0, len(domain.BuiltinTemplates))
	for i := range domain.BuiltinTemplates {
		t := domain.BuiltinTemplates[i]
		out = append(out, &t)
	}
	return append(out, e.Templates.Load(ctx)...)
}

// Directory resolves account details from the account store.
func (e *Engine) Directory(ctx context.Context, alias string) (domain.Account, bool) {
	acc, ok := e.Accounts.Get(ctx, alias)
	if !ok {
		return domain.Account{}, false
	}
	return *acc, true
}
