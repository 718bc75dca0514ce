package main

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/internal/config"
	"github.com/aretw0/virtuoso/pkg/adapters/loopback"
	"github.com/aretw0/virtuoso/pkg/conductor"
	"github.com/aretw0/virtuoso/pkg/observability"
	"github.com/aretw0/virtuoso/pkg/ports"
	"github.com/spf13/cobra"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *virtuoso.Engine
}

// loadConfig reads the configuration and applies persistent flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("data-dir", &cfg.DataDir)
	override("store", &cfg.Store)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)

	return cfg, cfg.Validate()
}

// managerBuilder creates the ConnectionManager once configuration is known.
type managerBuilder func(cfg *config.Config, logger *slog.Logger) ports.ConnectionManager

func loopbackManager(cfg *config.Config, logger *slog.Logger) ports.ConnectionManager {
	return loopback.New(
		loopback.WithRegistry(cfg.Registry(logger)),
		loopback.WithLogger(logger),
	)
}

// newApp builds an engine over the manager from build. A nil build plays
// through the in-process loopback router.
func newApp(cmd *cobra.Command, build managerBuilder, opts ...virtuoso.Option) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	if build == nil {
		build = loopbackManager
	}
	manager := build(cfg, logger)

	condOpts := []conductor.Option{conductor.WithConnectTimeout(cfg.Play.ConnectTimeout)}
	if l := cfg.SendLimiter(); l != nil {
		condOpts = append(condOpts, conductor.WithSendLimiter(l))
	}

	opts = append([]virtuoso.Option{
		virtuoso.WithLogger(logger),
		virtuoso.WithLifecycleHooks(observability.AuditHooks(logger)),
		virtuoso.WithBackends(cfg.Backends()),
		virtuoso.WithConductorOptions(condOpts...),
	}, opts...)
	engine, err := virtuoso.New(manager, opts...)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return &app{cfg: cfg, logger: logger, engine: engine}, nil
}

func (a *app) Close() {
	if err := a.cfg.Close(); err != nil {
		a.logger.Warn("failed to close store", "err", err)
	}
}
