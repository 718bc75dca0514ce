package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/virtuoso/internal/presentation/tui"
	httpAdapter "github.com/aretw0/virtuoso/pkg/adapters/http"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <composition-id|file>",
	Short: "Play a composition and print the performance report",
	Long: `Plays a stored composition, or a JSON/YAML file, and prints its report.

With --loopback the accounts talk through an in-process router, which is useful
for dry runs of the script itself. Otherwise the command serves the bridge
endpoints (GET /commands, POST /events) and waits for a transport process to
attach before playing.

The command exits non-zero unless the performance passed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		useLoopback, _ := cmd.Flags().GetBool("loopback")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		wait, _ := cmd.Flags().GetDuration("wait")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var a *app
		var err error
		stack := &bridgeStack{}
		if useLoopback {
			a, err = newApp(cmd, nil)
		} else {
			a, err = newApp(cmd, stack.builder(directoryOf(&a)))
		}
		if err != nil {
			return err
		}
		defer a.Close()

		comp, err := resolveComposition(cmd, a, args[0])
		if err != nil {
			return err
		}

		if !useLoopback {
			srv := &http.Server{
				Addr: a.cfg.HTTP.Addr,
				Handler: httpAdapter.NewHandler(a.engine,
					httpAdapter.WithBridge(stack.manager, stack.broadcaster),
					httpAdapter.WithLogger(a.logger),
				),
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("bridge server failed", "err", err)
					stop()
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "Waiting for a transport on %s/commands ...\n", a.cfg.HTTP.Addr)
			waitCtx, cancel := context.WithTimeout(ctx, wait)
			attached := stack.waitForTransport(waitCtx)
			cancel()
			if !attached {
				return fmt.Errorf("no transport attached within %s (use --loopback for a dry run)", wait)
			}
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		perf, err := a.engine.Play(ctx, comp)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(perf); err != nil {
				return err
			}
		} else if err := tui.Report(cmd.OutOrStdout(), perf, comp); err != nil {
			return err
		}

		if perf.Status != domain.PerformancePassed {
			return fmt.Errorf("performance %s %s", perf.ID, perf.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Bool("loopback", false, "Play through the in-process loopback router")
	playCmd.Flags().Duration("timeout", 0, "Stop the performance after this long (0 means no limit)")
	playCmd.Flags().Duration("wait", 30*time.Second, "How long to wait for a transport to attach")
	playCmd.Flags().Bool("json", false, "Print the performance as JSON")
}
