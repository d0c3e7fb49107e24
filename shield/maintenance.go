package shield

import (
	"context"
	"database/sql"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/masukame/watch"
)

// DefaultMaintenanceMessage is shown when no message is configured.
const DefaultMaintenanceMessage = "The site is under maintenance. Please check back shortly."

// MaintenanceMode answers 503 while the site is closed. It is closed when
// the configured flag is set (features.maintenance) or when the row in the
// maintenance table says so. db may be nil, leaving only the flag.
type MaintenanceMode struct {
	db      *sql.DB
	forced  atomic.Bool
	stored  atomic.Bool
	message atomic.Value // string
	exclude []string
	page    []byte
}

// NewMaintenanceMode creates the gate. Paths under excludePrefixes always
// pass (health checks, metrics).
func NewMaintenanceMode(db *sql.DB, excludePrefixes ...string) *MaintenanceMode {
	m := &MaintenanceMode{
		db:      db,
		exclude: excludePrefixes,
	}
	m.message.Store(DefaultMaintenanceMessage)
	m.reload(context.Background())
	return m
}

// Set forces the gate on or off, independently of the table.
func (m *MaintenanceMode) Set(active bool) {
	if m.forced.Swap(active) != active {
		slog.Info("maintenance: flag set", "active", active)
	}
}

// Active reports whether the site is closed.
func (m *MaintenanceMode) Active() bool {
	return m.forced.Load() || m.stored.Load()
}

// Message returns the current maintenance message.
func (m *MaintenanceMode) Message() string {
	s, _ := m.message.Load().(string)
	return s
}

// SetPage replaces the default 503 page with html.
func (m *MaintenanceMode) SetPage(html []byte) {
	m.page = html
}

// StartReloader re-reads the table whenever its row changes, polling at
// interval, until ctx is done.
func (m *MaintenanceMode) StartReloader(ctx context.Context, interval time.Duration) {
	if m.db == nil {
		return
	}
	w := watch.New(m.db,
		watch.WithInterval(interval),
		watch.WithDetector(watch.Digest(`SELECT active, message FROM maintenance WHERE id = 1`)),
		watch.WithName("maintenance"))
	go w.Run(ctx, func(ctx context.Context) error {
		m.reload(ctx)
		return nil
	})
}

func (m *MaintenanceMode) reload(ctx context.Context) {
	if m.db == nil {
		return
	}
	var active int
	var message string
	err := m.db.QueryRowContext(ctx, `SELECT active, message FROM maintenance WHERE id = 1`).Scan(&active, &message)
	if err != nil {
		// Missing table or row: open.
		m.stored.Store(false)
		return
	}

	was := m.stored.Swap(active == 1)
	if message != "" {
		m.message.Store(message)
	} else {
		m.message.Store(DefaultMaintenanceMessage)
	}
	switch {
	case active == 1 && !was:
		slog.Warn("maintenance: mode enabled", "message", message)
	case active != 1 && was:
		slog.Info("maintenance: mode disabled")
	}
}

// Middleware serves the 503 page while the gate is closed.
func (m *MaintenanceMode) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Active() {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range m.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusServiceUnavailable)
		if len(m.page) > 0 {
			w.Write(m.page)
			return
		}
		w.Write([]byte(maintenancePage(m.Message())))
	})
}

func maintenancePage(message string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MASUKAME | Maintenance</title>
<style>
  body { font-family: system-ui, sans-serif; display: flex; align-items: center;
         justify-content: center; min-height: 100vh; margin: 0; background: #0b0b0b; color: #eee; }
  .box { text-align: center; max-width: 480px; padding: 2rem; }
  h1 { font-size: 1.5rem; letter-spacing: .2em; }
  p  { color: #aaa; }
</style>
</head>
<body>
<div class="box">
  <h1>MASUKAME</h1>
  <p>` + html.EscapeString(message) + `</p>
</div>
</body>
</html>`
}
