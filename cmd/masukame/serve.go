package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/shield"
	"github.com/hazyhaar/masukame/site"
	"github.com/hazyhaar/masukame/siteconfig"
)

const eventRetention = 30 * 24 * time.Hour

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr, content string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, addr, content)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("PORT_ADDR", ":8080"), "listen address")
	cmd.Flags().StringVar(&content, "content", os.Getenv("MASUKAME_CONTENT"), "content directory (default: bundled pages)")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, addr, content string) error {
	logger := g.logger(os.Stdout)
	a, err := newApp(ctx, g, logger)
	if err != nil {
		logger.Error("masukame: startup failed", "error", err)
		return err
	}
	defer a.Close()
	cfg := a.cfg

	p, err := pages(content)
	if err != nil {
		return err
	}
	if err := a.reg.Preload(); err != nil {
		logger.Warn("masukame: registry preload failed", "error", err)
	}

	// Route edits come from other processes; the watcher needs its own
	// connection to see data_version move.
	watchDB, err := dbopen.Open(g.dbPath)
	if err != nil {
		return err
	}
	defer watchDB.Close()
	watchDB.SetMaxOpenConns(1)
	go a.router.Watch(ctx, watchDB, 2*time.Second)

	if cfg.Features.EnableLiveCurrency && cfg.Currency.APIEndpoint != "" {
		opts := []currency.FetcherOption{currency.WithFetcherLogger(logger)}
		if cfg.Env == siteconfig.Production {
			opts = append(opts, currency.WithEndpointGuard(horosafe.ValidateURL))
		}
		go currency.NewRateFetcher(a.conv, cfg.Currency.APIEndpoint, cfg.Currency.UpdateInterval, opts...).Run(ctx)
	}

	mm := shield.NewMaintenanceMode(a.db, "/healthz", "/metrics")
	mm.Set(cfg.Features.Maintenance)
	mm.StartReloader(ctx, 5*time.Second)

	rl := shield.NewRateLimiter(cfg.RateLimit, "/api/", "/forms/", "/currency")
	rl.StartGC(ctx, 5*time.Minute)

	go every(ctx, time.Hour, func(ctx context.Context) {
		if n, err := a.events.Cleanup(ctx, eventRetention); err != nil {
			logger.Warn("masukame: event cleanup", "error", err)
		} else if n > 0 {
			logger.Info("masukame: events pruned", "count", n)
		}
	})

	srv := site.New(site.Deps{
		Config:      cfg,
		Logger:      logger,
		Converter:   a.conv,
		Registry:    a.reg,
		Router:      a.router,
		Outbox:      a.outbox,
		Pages:       p,
		Events:      a.events,
		Maintenance: mm,
		RateLimiter: rl,
		Metrics:     a.metrics,
		DB:          a.db,
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("masukame: listening", "addr", addr, "env", cfg.Env)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("masukame: server failed", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("masukame: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("masukame: shutdown", "error", err)
		}
	}
	return nil
}
