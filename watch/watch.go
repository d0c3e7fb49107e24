// CLAUDE:SUMMARY Poll-detect-reload loop over SQLite: data_version, max column or row digest detectors, optional debounce.
// Package watch reloads in-memory state when a SQLite database changes.
// The form route table and the maintenance flag both use it:
//
//	w := watch.New(db, watch.WithInterval(2*time.Second), watch.WithName("routes"))
//	go w.Run(ctx, func(ctx context.Context) error { return router.Reload(ctx, db) })
package watch

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Detector reads a version token. Two different tokens mean the watched
// state changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling period. Default: 1s.
func WithInterval(d time.Duration) Option { return func(w *Watcher) { w.interval = d } }

// WithDebounce waits for d without further changes before reloading.
// Default: 0, reload on the first poll that sees a change.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithDetector replaces DataVersion.
func WithDetector(d Detector) Option { return func(w *Watcher) { w.detect = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.logger = l } }

// WithName labels the watcher's log lines.
func WithName(name string) Option { return func(w *Watcher) { w.name = name } }

// Watcher polls a database and calls a reload function on change. A
// failed reload leaves the version unchanged, so the next poll retries.
type Watcher struct {
	db       *sql.DB
	interval time.Duration
	debounce time.Duration
	detect   Detector
	logger   *slog.Logger
	name     string

	version atomic.Int64
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Reloads int64 `json:"reloads"`
}

// New returns a Watcher over db. Call Run to start it.
func New(db *sql.DB, opts ...Option) *Watcher {
	w := &Watcher{db: db, interval: time.Second, detect: DataVersion, logger: slog.Default(), name: "watch"}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Stats returns the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errors.Load(),
		Reloads: w.reloads.Load(),
	}
}

// Version returns the token of the last successful reload.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Run calls reload once, then again after every detected change, until
// ctx is done. A failed reload is retried on every tick until one
// succeeds, whether or not the token moved.
func (w *Watcher) Run(ctx context.Context, reload func(context.Context) error) {
	log := w.logger.With("watcher", w.name)

	stale := true
	if v, err := w.detect(ctx, w.db); err != nil {
		w.errors.Add(1)
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		stale = !w.fire(ctx, log, reload, v)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		debounce *time.Timer
		fireCh   <-chan time.Time
		pending  int64
		waiting  bool
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx, w.db)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if stale && !waiting {
				log.Debug("watch: retrying reload", "version", cur)
				stale = !w.fire(ctx, log, reload, cur)
				continue
			}
			if cur == w.version.Load() || (waiting && cur == pending) {
				continue
			}
			w.changes.Add(1)
			if w.debounce <= 0 {
				stale = !w.fire(ctx, log, reload, cur)
				continue
			}
			pending, waiting = cur, true
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.debounce)
			fireCh = debounce.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-fireCh:
			fireCh = nil
			if waiting {
				waiting = false
				stale = !w.fire(ctx, log, reload, pending)
			}
		}
	}
}

// fire runs reload and records v on success.
func (w *Watcher) fire(ctx context.Context, log *slog.Logger, reload func(context.Context) error, v int64) bool {
	start := time.Now()
	if err := reload(ctx); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "version", v, "error", err)
		return false
	}
	w.reloads.Add(1)
	old := w.version.Swap(v)
	log.Debug("watch: reloaded", "old_version", old, "version", v, "duration", time.Since(start))
	return true
}

// DataVersion reads PRAGMA data_version, which moves when another
// connection writes the database. Watch through a dedicated
// single-connection pool so writes by the process itself are seen too.
func DataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// MaxColumn polls MAX(column) of table, for tables stamped with an
// increasing updated_at.
func MaxColumn(table, column string) Detector {
	query := "SELECT COALESCE(MAX(" + quoteIdent(column) + "), 0) FROM " + quoteIdent(table)
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		var v int64
		err := db.QueryRowContext(ctx, query).Scan(&v)
		return v, err
	}
}

// Digest hashes every value returned by query. Any change in the result
// set changes the token, whatever connection the query runs on.
func Digest(query string) Detector {
	return func(ctx context.Context, db *sql.DB) (int64, error) {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return 0, err
		}
		h := fnv.New64a()
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return 0, err
			}
			for _, v := range vals {
				fmt.Fprintf(h, "%t:%d:%s|", v.Valid, len(v.String), v.String)
			}
			h.Write([]byte{'\n'})
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return int64(h.Sum64() >> 1), nil
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
