package observability

import "database/sql"

// Schema defines the site event table.
const Schema = `
CREATE TABLE IF NOT EXISTS site_events (
    event_id   TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    visitor_id TEXT,
    subject    TEXT,
    details    TEXT,
    success    INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_site_events_type_time
    ON site_events(event_type, created_at DESC);
`

// Init creates the site event table.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
