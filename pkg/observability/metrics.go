package observability

import (
	"context"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the playback collectors.
type Metrics struct {
	Stanzas        *prometheus.CounterVec
	StanzaDuration *prometheus.HistogramVec
	Performances   *prometheus.CounterVec
	ActiveRuns     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Stanzas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "virtuoso_stanzas_total",
				Help: "Total number of executed stanzas by type and result",
			},
			[]string{"type", "status"},
		),
		StanzaDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "virtuoso_stanza_duration_seconds",
				Help:    "Duration of stanza executions",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"type"},
		),
		Performances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "virtuoso_performances_total",
				Help: "Total number of sealed performances by status",
			},
			[]string{"status"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "virtuoso_active_performances",
				Help: "Number of performances currently running",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Stanzas, m.StanzaDuration, m.Performances, m.ActiveRuns)
	}
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPerformanceStart: func(ctx context.Context, e *domain.PerformanceEvent) {
			m.ActiveRuns.Inc()
		},
		OnStanzaResult: func(ctx context.Context, e *domain.StanzaEvent) {
			if e.Result == nil {
				return
			}
			m.Stanzas.WithLabelValues(string(e.Stanza.Type), string(e.Result.Status)).Inc()
			d := time.Duration(e.Result.Duration) * time.Millisecond
			m.StanzaDuration.WithLabelValues(string(e.Stanza.Type)).Observe(d.Seconds())
		},
		OnPerformanceEnd: func(ctx context.Context, e *domain.PerformanceEvent) {
			m.ActiveRuns.Dec()
			m.Performances.WithLabelValues(string(e.Performance.Status)).Inc()
		},
	}
}
