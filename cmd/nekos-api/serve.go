package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nekidev/nekos-api/internal/api"
	"github.com/nekidev/nekos-api/internal/auth"
	"github.com/nekidev/nekos-api/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg := a.cfg

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Apply.OnStart {
				results, err := a.engine.ApplyAll(ctx)
				if err != nil {
					return err
				}
				for lineage, res := range results {
					log.Info().Str("lineage", lineage).Int("records", len(res)).Msg("lineage applied on start")
				}
			}

			limiter := ratelimit.New(cfg.RateLimit.API)
			router := api.NewRouter(api.Deps{
				Registry:       a.registry,
				Engine:         a.engine,
				BearerAuth:     auth.NewBearerMiddleware(auth.NewSQLKeyStore(a.db)),
				Limiter:        limiter,
				APIVersion:     cfg.API.Version,
				AllowedOrigins: cfg.CORS.AllowedOrigins,
			})
			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", cfg.HTTP.Addr).Str("version", cfg.API.Version).Msg("listening")
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				runLimiterCleanup(gctx, limiter, cfg.RateLimit.CleanupInterval, cfg.RateLimit.IdleTTL)
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

// runLimiterCleanup drops idle rate-limit buckets every interval until ctx is
// done.
func runLimiterCleanup(ctx context.Context, l *ratelimit.Limiter, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.Cleanup(idle); n > 0 {
				log.Debug().Int("buckets", n).Str("group", l.Policy().Group).Msg("rate limit buckets expired")
			}
		case <-ctx.Done():
			return
		}
	}
}
