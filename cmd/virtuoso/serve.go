package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/internal/presentation/tui"
	httpAdapter "github.com/aretw0/virtuoso/pkg/adapters/http"
	"github.com/aretw0/virtuoso/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves compositions, performances and templates over HTTP. An outer transport
process drives real XMPP connections by reading GET /commands (SSE) and
reporting back on POST /events. Metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		var a *app
		stack := &bridgeStack{}
		a, err := newApp(cmd, stack.builder(directoryOf(&a)), virtuoso.WithMetrics(metrics))
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		handler := httpAdapter.NewHandler(a.engine,
			httpAdapter.WithBridge(stack.manager, stack.broadcaster),
			httpAdapter.WithRecorder(stack.recorder),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithLogger(a.logger),
		)
		srv := &http.Server{
			Addr:    addr,
			Handler: handler,
		}

		tui.PrintBanner(cmd.ErrOrStderr(), virtuoso.Version)

		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("starting server", "address", srv.Addr, "store", a.cfg.Store)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			for _, id := range a.engine.Active() {
				_ = a.engine.Stop(id)
			}
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
}
