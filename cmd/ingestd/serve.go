package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/api"
	"github.com/Ricou-IA/baikal-ingest/console"
	"github.com/Ricou-IA/baikal-ingest/ext"
	"github.com/Ricou-IA/baikal-ingest/observability"
	"github.com/Ricou-IA/baikal-ingest/retry"
	"github.com/Ricou-IA/baikal-ingest/trigger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			cfg, err := ingest.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			st, cleanup, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := st.Migrate(ctx); err != nil {
				return err
			}

			registry := ext.NewRegistry(logger)
			registry.Register(observability.NewMetricsExtension())

			trig := trigger.New(cfg.TriggerURL,
				trigger.WithBearerToken(cfg.TriggerToken),
				trigger.WithTimeout(cfg.TriggerTimeout),
				trigger.WithRateLimit(cfg.TriggerRPS, int(cfg.TriggerRPS)),
				trigger.WithLogger(logger),
			)

			consoleSvc := console.NewService(st, st, trig,
				console.WithLogger(logger),
				console.WithRegistry(registry),
				console.WithMaxAttempts(cfg.DefaultMaxAttempts),
			)
			retrySvc := retry.NewService(st, st, trig,
				retry.WithLogger(logger),
				retry.WithRegistry(registry),
				retry.WithBulkLimit(cfg.BulkRetryLimit),
			)

			handler := api.New(consoleSvc, retrySvc, st,
				api.WithLogger(logger),
				api.WithAPIKeys(cfg.APIKeys),
			).Handler()

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("ingestd listening",
					slog.String("addr", cfg.ListenAddr),
					slog.String("driver", cfg.StoreDriver),
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-shutdownCtx.Done():
			}

			logger.Info("shutting down")
			registry.EmitShutdown(context.Background())

			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(drainCtx)
		},
	}
}
