package site

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/idgen"
)

// OutboxSchema defines the local store for submissions that could not be
// relayed to their provider, or whose form has no provider.
const OutboxSchema = `
CREATE TABLE IF NOT EXISTS form_outbox (
    id         TEXT PRIMARY KEY,
    form       TEXT NOT NULL,
    payload    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_form_outbox_created ON form_outbox(created_at);
`

// OutboxEntry is one stored submission.
type OutboxEntry struct {
	ID        string          `json:"id"`
	Form      string          `json:"form"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Outbox stores form submissions in SQLite.
type Outbox struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutbox creates the outbox table on db if needed.
func NewOutbox(db *sql.DB) (*Outbox, error) {
	if _, err := db.Exec(OutboxSchema); err != nil {
		return nil, fmt.Errorf("site: outbox schema: %w", err)
	}
	return &Outbox{db: db, now: time.Now}, nil
}

// Handler returns the local connectivity handler for form: it stores the
// payload and answers {"queued":true,"id":...}. The id is the payload's
// _submission_id when present.
func (o *Outbox) Handler(form string) connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var meta struct {
			ID string `json:"_submission_id"`
		}
		_ = json.Unmarshal(payload, &meta)
		if meta.ID == "" {
			meta.ID = idgen.Submission.New()
		}
		if _, err := dbopen.Exec(ctx, o.db,
			`INSERT OR IGNORE INTO form_outbox (id, form, payload, created_at) VALUES (?, ?, ?, ?)`,
			meta.ID, form, string(payload), o.now().Unix()); err != nil {
			return nil, fmt.Errorf("site: outbox %s: %w", form, err)
		}
		return json.Marshal(map[string]any{"queued": true, "id": meta.ID})
	}
}

// Pending lists stored submissions, oldest first. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	q := `SELECT id, form, payload, created_at FROM form_outbox ORDER BY created_at, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := o.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("site: outbox query: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var payload string
		var ts int64
		if err := rows.Scan(&e.ID, &e.Form, &payload, &ts); err != nil {
			return nil, fmt.Errorf("site: outbox scan: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = time.Unix(ts, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a handled submission.
func (o *Outbox) Delete(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, o.db, `DELETE FROM form_outbox WHERE id = ?`, id)
	return err
}

// Flush hands every pending submission to send, oldest first, and deletes
// those it accepted. It stops at the first error other than a send
// failure; send failures are joined into the returned error.
func (o *Outbox) Flush(ctx context.Context, send func(ctx context.Context, form string, payload []byte) error) (int, error) {
	pending, err := o.Pending(ctx, 0)
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := send(ctx, e.Form, e.Payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.ID, err))
			continue
		}
		if err := o.Delete(ctx, e.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
