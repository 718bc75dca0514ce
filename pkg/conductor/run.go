package conductor

import (
	"context"
	"sync"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
)

// Run is one playback in progress.
type Run struct {
	conductor   *Conductor
	composition *domain.Composition
	agg         *Aggregator

	ctx    context.Context
	cancel context.CancelFunc
	subs   map[string]ports.Subscription

	once   sync.Once
	done   chan struct{}
	result *domain.Performance
}

// ID returns the Performance id.
func (r *Run) ID() string {
	return r.agg.perf.ID
}

// Composition returns the snapshot being played.
func (r *Run) Composition() *domain.Composition {
	return r.composition
}

// Stop interrupts the run. Unfinished stanzas are skipped and the Performance
// is sealed as stopped. It is a no-op once the run has finished.
func (r *Run) Stop() {
	r.finish(true)
}

// Done is closed once the Performance is sealed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is sealed and returns the Performance.
func (r *Run) Wait() *domain.Performance {
	<-r.done
	return r.result.Clone()
}

// Snapshot returns the current state of the Performance.
func (r *Run) Snapshot() *domain.Performance {
	return r.agg.Snapshot()
}

// Seal seals the Performance directly. Runs seal themselves, so callers
// normally observe domain.ErrSealed.
func (r *Run) Seal() (*domain.Performance, error) {
	return r.agg.Seal()
}

func (r *Run) finish(stopped bool) {
	r.once.Do(func() {
		if stopped {
			r.agg.MarkStopped()
		}
		perf, err := r.agg.Seal()
		if err != nil {
			// Sealed elsewhere; report what is there.
			perf = r.agg.Snapshot()
		}
		r.result = perf
		r.cancel()
		for _, sub := range r.subs {
			sub.Close()
		}

		c := r.conductor
		c.logger.Info("performance finished",
			"performance_id", perf.ID,
			"composition_id", perf.CompositionID,
			"status", perf.Status,
			"passed", perf.Summary.Passed,
			"failed", perf.Summary.Failed,
			"skipped", perf.Summary.Skipped,
		)
		if c.hooks.OnPerformanceEnd != nil {
			c.hooks.OnPerformanceEnd(context.WithoutCancel(r.ctx), &domain.PerformanceEvent{
				Timestamp:   perf.EndTime,
				Performance: perf.Clone(),
			})
		}
		close(r.done)
	})
}
