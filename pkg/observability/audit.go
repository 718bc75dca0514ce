package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// AuditHooks logs every stanza start and result at debug level and run boundaries at info.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPerformanceStart: func(ctx context.Context, e *domain.PerformanceEvent) {
			logger.Info("performance_start",
				"performance_id", e.Performance.ID,
				"composition_id", e.Performance.CompositionID,
			)
		},
		OnStanzaStart: func(ctx context.Context, e *domain.StanzaEvent) {
			logger.Debug("stanza_start",
				"performance_id", e.PerformanceID,
				"account", e.Account,
				"stanza_id", e.Stanza.ID,
				"type", e.Stanza.Type,
			)
		},
		OnStanzaResult: func(ctx context.Context, e *domain.StanzaEvent) {
			if e.Result == nil {
				return
			}
			logger.Debug("stanza_result",
				"performance_id", e.PerformanceID,
				"account", e.Account,
				"stanza_id", e.Stanza.ID,
				"status", e.Result.Status,
				"duration_ms", e.Result.Duration,
			)
		},
		OnPerformanceEnd: func(ctx context.Context, e *domain.PerformanceEvent) {
			logger.Info("performance_end",
				"performance_id", e.Performance.ID,
				"status", e.Performance.Status,
				"duration_ms", e.Performance.Duration,
			)
		},
	}
}
