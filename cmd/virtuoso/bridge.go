package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/virtuoso/internal/config"
	"github.com/aretw0/virtuoso/pkg/adapters/bridge"
	"github.com/aretw0/virtuoso/pkg/composer"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/ports"
)

// bridgeStack connects the engine to an outer transport process over HTTP.
type bridgeStack struct {
	broadcaster *bridge.Broadcaster
	manager     *bridge.Manager
	recorder    *composer.Recorder
}

// builder returns a managerBuilder that fills s. directory is consulted when an
// account is first used.
func (s *bridgeStack) builder(directory bridge.AccountDirectory) managerBuilder {
	return func(cfg *config.Config, logger *slog.Logger) ports.ConnectionManager {
		s.broadcaster = bridge.NewBroadcaster(64)
		s.recorder = composer.NewRecorder(
			composer.WithCueTimeout(cfg.Play.CueTimeout),
			composer.WithLogger(logger),
		)
		s.manager = bridge.New(s.broadcaster,
			bridge.WithRegistry(cfg.Registry(logger)),
			bridge.WithLogger(logger),
			bridge.WithAccountDirectory(directory),
			bridge.WithCommandObserver(s.recorder.ObserveCommand),
			bridge.WithInboundObserver(s.recorder.ObserveInbound),
		)
		return s.manager
	}
}

// waitForTransport blocks until a transport listens on /commands.
func (s *bridgeStack) waitForTransport(ctx context.Context) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for s.broadcaster.Listeners() == 0 {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

// directoryOf defers account lookups to the engine once it exists.
func directoryOf(a **app) bridge.AccountDirectory {
	return func(ctx context.Context, alias string) (domain.Account, bool) {
		if *a == nil {
			return domain.Account{}, false
		}
		return (*a).engine.Directory(ctx, alias)
	}
}
