package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/masukame/dbopen"
)

// Schema defines the routes table. Operators override the configured form
// routes by editing it: "noop" silences a form, "local" sends it straight
// to the outbox, "http" points it at another provider. Any write bumps
// PRAGMA data_version, which Watch picks up.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
`

// Init creates the routes table if it doesn't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// LoadRoutes reads every row of the routes table.
func LoadRoutes(ctx context.Context, db *sql.DB) ([]Route, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT service_name, strategy, COALESCE(endpoint, ''), COALESCE(config, '{}') FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("connectivity: query routes: %w", err)
	}
	defer rows.Close()

	var out []Route
	for rows.Next() {
		var rt Route
		var cfg string
		if err := rows.Scan(&rt.Service, &rt.Strategy, &rt.Endpoint, &cfg); err != nil {
			return nil, fmt.Errorf("connectivity: scan route: %w", err)
		}
		rt.Config = json.RawMessage(cfg)
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("connectivity: rows: %w", err)
	}
	return out, nil
}

// Seed inserts routes that are not in the table yet. Existing rows win,
// so operator edits survive a restart with a different config file.
func Seed(ctx context.Context, db *sql.DB, routes []Route) error {
	return dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		for _, rt := range routes {
			cfg := string(rt.Config)
			if cfg == "" {
				cfg = "{}"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO routes (service_name, strategy, endpoint, config) VALUES (?, ?, ?, ?)`,
				rt.Service, rt.Strategy, rt.Endpoint, cfg); err != nil {
				return fmt.Errorf("connectivity: seed %s: %w", rt.Service, err)
			}
		}
		return nil
	})
}

// SetRoute inserts or replaces one route.
func SetRoute(ctx context.Context, db *sql.DB, rt Route) error {
	cfg := string(rt.Config)
	if cfg == "" {
		cfg = "{}"
	}
	_, err := dbopen.Exec(ctx, db,
		`INSERT INTO routes (service_name, strategy, endpoint, config) VALUES (?, ?, ?, ?)
		 ON CONFLICT(service_name) DO UPDATE SET
		   strategy = excluded.strategy,
		   endpoint = excluded.endpoint,
		   config = excluded.config,
		   updated_at = strftime('%s', 'now')`,
		rt.Service, rt.Strategy, rt.Endpoint, cfg)
	if err != nil {
		return fmt.Errorf("connectivity: set route %s: %w", rt.Service, err)
	}
	return nil
}
