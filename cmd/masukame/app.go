package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/observability"
	"github.com/hazyhaar/masukame/registry"
	"github.com/hazyhaar/masukame/shield"
	"github.com/hazyhaar/masukame/site"
	"github.com/hazyhaar/masukame/siteconfig"
)

// app holds the collaborators shared by the subcommands.
type app struct {
	cfg     siteconfig.Config
	logger  *slog.Logger
	db      *sql.DB
	metrics *prometheus.Registry
	conv    *currency.Converter
	reg     *registry.Client
	router  *connectivity.Router
	outbox  *site.Outbox
	events  *observability.EventLogger
}

// openDB opens the site database and applies every schema.
func openDB(path string) (*sql.DB, error) {
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(connectivity.Schema),
		dbopen.WithSchema(shield.Schema),
		dbopen.WithSchema(observability.Schema),
		dbopen.WithSchema(site.OutboxSchema),
		dbopen.WithSchema(currency.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return db, nil
}

// newApp wires the stores, the converter, the registry client and the
// form router. Production hosts get the SSRF guards.
func newApp(ctx context.Context, g *globalFlags, logger *slog.Logger) (*app, error) {
	cfg, err := g.loadConfig(logger)
	if err != nil {
		return nil, err
	}
	db, err := openDB(g.dbPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db, metrics: observability.NewRegistry()}

	prefs, err := currency.NewSQLitePreferences(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.conv = currency.New(cfg.FallbackRates(),
		currency.WithStore(prefs),
		currency.WithLocale(cfg.Currency.Locale),
		currency.WithLogger(logger))

	guarded := cfg.Env == siteconfig.Production
	regOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithMetrics(registry.NewMetrics(a.metrics)),
	}
	httpOpts := []connectivity.HTTPOption{}
	if guarded {
		regOpts = append(regOpts, registry.WithSSRFGuard())
		httpOpts = append(httpOpts, connectivity.WithURLGuard(horosafe.ValidateURL))
	}
	a.reg = registry.New(cfg, regOpts...)

	a.router = connectivity.New(connectivity.WithLogger(logger))
	a.router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(httpOpts...))
	if err := connectivity.Seed(ctx, db, connectivity.FormRoutes(cfg.Forms.Endpoints())); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed routes: %w", err)
	}
	if err := a.router.Reload(ctx, db); err != nil {
		logger.Warn("masukame: some routes failed to build", "error", err)
	}

	if a.outbox, err = site.NewOutbox(db); err != nil {
		a.Close()
		return nil, err
	}
	a.events = observability.NewEventLogger(db)
	return a, nil
}

// pages returns the content tree: dir when set, the bundled pages otherwise.
func pages(dir string) (*site.Pages, error) {
	var fsys fs.FS = site.DefaultContent()
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	return site.LoadPages(fsys)
}

func (a *app) Close() {
	if a.reg != nil {
		a.reg.Destroy()
	}
	if a.router != nil {
		a.router.Close()
	}
	a.db.Close()
}

// every runs fn at interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
