package shield

import "database/sql"

// Schema defines the maintenance flag table: a single row, id 1. Writing
// active=1 from any process closes the site within one reload interval.
const Schema = `
CREATE TABLE IF NOT EXISTS maintenance (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    active  INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT ''
);

INSERT OR IGNORE INTO maintenance (id, active, message) VALUES (1, 0, '');
`

// Init creates the maintenance table if it doesn't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
