package conductor

import (
	"slices"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// Aggregator is the single writer of a Performance.
// Account players report results concurrently; the Aggregator orders them by
// composition order and seals the Performance exactly once.
type Aggregator struct {
	mu sync.Mutex

	perf     domain.Performance
	order    []string
	results  map[string]domain.StanzaResult
	inflight map[string]time.Time

	stopped bool
	sealed  bool
	now     func() time.Time
}

// NewAggregator starts a Performance for the given stanza ids, in execution order.
func NewAggregator(performanceID, compositionID string, stanzaIDs []string, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		perf: domain.Performance{
			ID:            performanceID,
			CompositionID: compositionID,
			Status:        domain.PerformanceRunning,
			StartTime:     now(),
			StanzaResults: []domain.StanzaResult{},
		},
		order:    slices.Clone(stanzaIDs),
		results:  make(map[string]domain.StanzaResult, len(stanzaIDs)),
		inflight: make(map[string]time.Time),
		now:      now,
	}
}

// Begin marks a stanza as executing.
func (a *Aggregator) Begin(stanzaID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		a.inflight[stanzaID] = a.now()
	}
}

// Record stores the result of one stanza. The first result for a stanza wins.
func (a *Aggregator) Record(r domain.StanzaResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return domain.ErrSealed
	}
	delete(a.inflight, r.StanzaID)
	if _, dup := a.results[r.StanzaID]; dup {
		return nil
	}
	a.results[r.StanzaID] = r
	return nil
}

// MarkStopped records that the operator stopped the run.
// It has no effect once sealed or once every stanza has a result.
func (a *Aggregator) MarkStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed && len(a.results) < len(a.order) {
		a.stopped = true
	}
}

// Seal finalizes the Performance. Stanzas without a result become skipped;
// those that were executing when a stop arrived carry a cancelled error.
// Sealing twice returns domain.ErrSealed.
func (a *Aggregator) Seal() (*domain.Performance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return nil, domain.ErrSealed
	}
	a.sealed = true

	end := a.now()
	for _, id := range a.order {
		if _, ok := a.results[id]; ok {
			continue
		}
		r := domain.StanzaResult{StanzaID: id, Status: domain.ResultSkipped}
		if started, ok := a.inflight[id]; ok {
			r.Duration = end.Sub(started).Milliseconds()
			if a.stopped {
				r.Error = &domain.StanzaError{Kind: domain.ErrorKindCancelled, Message: "interrupted by stop"}
			}
		}
		a.results[id] = r
	}
	clear(a.inflight)

	a.perf.StanzaResults = a.collect()
	a.perf.Summary = summarize(a.perf.StanzaResults)
	a.perf.Status = a.verdict()
	a.perf.EndTime = end
	a.perf.Duration = end.Sub(a.perf.StartTime).Milliseconds()

	return a.perf.Clone(), nil
}

// Snapshot returns a copy of the Performance as it stands.
// Before sealing, only finished stanzas are listed.
func (a *Aggregator) Snapshot() *domain.Performance {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return a.perf.Clone()
	}
	p := a.perf
	p.StanzaResults = a.collect()
	p.Summary = summarize(p.StanzaResults)
	p.Summary.Total = len(a.order)
	return p.Clone()
}

// Sealed reports whether Seal has run.
func (a *Aggregator) Sealed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealed
}

func (a *Aggregator) collect() []domain.StanzaResult {
	out := make([]domain.StanzaResult, 0, len(a.results))
	for _, id := range a.order {
		if r, ok := a.results[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// verdict: stopped, then error, then failed, then passed.
func (a *Aggregator) verdict() domain.PerformanceStatus {
	if a.stopped {
		return domain.PerformanceStopped
	}
	status := domain.PerformancePassed
	for _, r := range a.perf.StanzaResults {
		switch r.Status {
		case domain.ResultError:
			return domain.PerformanceError
		case domain.ResultFailed:
			status = domain.PerformanceFailed
		}
	}
	return status
}

func summarize(results []domain.StanzaResult) domain.Summary {
	s := domain.Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.ResultPassed:
			s.Passed++
		case domain.ResultFailed, domain.ResultError:
			s.Failed++
		case domain.ResultSkipped:
			s.Skipped++
		}
	}
	return s
}
