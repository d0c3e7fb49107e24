// CLAUDE:SUMMARY Process logger construction (JSON, optional text fan-out) and the SQLite site event log.
package observability

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/idgen"
)

// NewLogger returns the process logger: JSON lines on w at info level.
// With debug set, records from debug level up also fan out to a text
// handler on stderr.
func NewLogger(w io.Writer, debug bool, attrs ...any) *slog.Logger {
	if !debug {
		return slog.New(slog.NewJSONHandler(w, nil)).With(attrs...)
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	return slog.New(slogmulti.Fanout(
		slog.NewJSONHandler(w, opts),
		slog.NewTextHandler(os.Stderr, opts),
	)).With(attrs...)
}

// SiteEvent is a domain event worth keeping: a form relayed or queued, a
// currency chosen, an ownership check.
type SiteEvent struct {
	Type      string // "form_submitted", "form_queued", "currency_changed", ...
	VisitorID string
	Subject   string // form name, currency code, token id
	Details   string // optional JSON
	Success   bool
}

// EventLogger writes site events to the site_events table.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// NewEventLogger creates an event logger on db. Apply Schema first.
func NewEventLogger(db *sql.DB) *EventLogger {
	return &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
		now:   time.Now,
	}
}

// Log records an event. Failures are logged, never returned: a broken
// event store must not fail the request that produced the event.
func (l *EventLogger) Log(ctx context.Context, ev SiteEvent) {
	_, err := dbopen.Exec(ctx, l.db, `
		INSERT INTO site_events (event_id, event_type, visitor_id, subject, details, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.newID(), ev.Type, ev.VisitorID, ev.Subject, ev.Details, ev.Success, l.now().Unix())
	if err != nil {
		slog.ErrorContext(ctx, "observability: event log failed", "error", err, "event_type", ev.Type)
	}
}

// Count returns how many events of type were recorded since t.
func (l *EventLogger) Count(ctx context.Context, eventType string, since time.Time) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM site_events WHERE event_type = ? AND created_at >= ?`,
		eventType, since.Unix()).Scan(&n)
	return n, err
}

// Cleanup deletes events older than retention and returns how many went.
func (l *EventLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := dbopen.Exec(ctx, l.db, `DELETE FROM site_events WHERE created_at < ?`,
		l.now().Add(-retention).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
