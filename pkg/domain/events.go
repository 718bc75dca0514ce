package domain

import (
	"context"
	"time"
)

// StanzaEvent is emitted when the Conductor starts or finishes a stanza.
type StanzaEvent struct {
	Timestamp     time.Time     `json:"timestamp"`
	PerformanceID string        `json:"performance_id"`
	Account       string        `json:"account"`
	Stanza        Stanza        `json:"stanza"`
	Result        *StanzaResult `json:"result,omitempty"` // nil on start
}

// PerformanceEvent is emitted when a run starts and when it is sealed.
type PerformanceEvent struct {
	Timestamp   time.Time    `json:"timestamp"`
	Performance *Performance `json:"performance"`
}

// LifecycleHooks defines callbacks for playback observability.
// Results are streamed through OnStanzaResult as they are produced.
type LifecycleHooks struct {
	OnPerformanceStart func(context.Context, *PerformanceEvent)
	OnStanzaStart      func(context.Context, *StanzaEvent)
	OnStanzaResult     func(context.Context, *StanzaEvent)
	OnPerformanceEnd   func(context.Context, *PerformanceEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPerformanceStart: chainPerf(h.OnPerformanceStart, other.OnPerformanceStart),
		OnStanzaStart:      chainStanza(h.OnStanzaStart, other.OnStanzaStart),
		OnStanzaResult:     chainStanza(h.OnStanzaResult, other.OnStanzaResult),
		OnPerformanceEnd:   chainPerf(h.OnPerformanceEnd, other.OnPerformanceEnd),
	}
}

func chainPerf(a, b func(context.Context, *PerformanceEvent)) func(context.Context, *PerformanceEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *PerformanceEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainStanza(a, b func(context.Context, *StanzaEvent)) func(context.Context, *StanzaEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StanzaEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
