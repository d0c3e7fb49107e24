// CLAUDE:SUMMARY Visitor currency preference stores: in-memory and SQLite-backed.
package currency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/masukame/dbopen"
)

// PreferenceStore persists each visitor's selected currency.
type PreferenceStore interface {
	Get(ctx context.Context, visitorID string) (Code, error)
	Set(ctx context.Context, visitorID string, code Code) error
}

// MemoryPreferences is a process-local PreferenceStore.
type MemoryPreferences struct {
	mu sync.RWMutex
	m  map[string]Code
}

// NewMemoryPreferences returns an empty store.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{m: make(map[string]Code)}
}

func (p *MemoryPreferences) Get(_ context.Context, visitorID string) (Code, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.m[visitorID], nil
}

func (p *MemoryPreferences) Set(_ context.Context, visitorID string, code Code) error {
	p.mu.Lock()
	p.m[visitorID] = code
	p.mu.Unlock()
	return nil
}

// Schema creates the preference table.
const Schema = `
CREATE TABLE IF NOT EXISTS currency_preferences (
	visitor_id TEXT PRIMARY KEY,
	currency   TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLitePreferences stores selections in currency_preferences.
type SQLitePreferences struct {
	db *sql.DB
}

// NewSQLitePreferences applies Schema and returns the store.
func NewSQLitePreferences(db *sql.DB) (*SQLitePreferences, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("currency: init schema: %w", err)
	}
	return &SQLitePreferences{db: db}, nil
}

// Get returns "" when the visitor has no stored selection.
func (p *SQLitePreferences) Get(ctx context.Context, visitorID string) (Code, error) {
	var code string
	err := p.db.QueryRowContext(ctx,
		`SELECT currency FROM currency_preferences WHERE visitor_id = ?`, visitorID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("currency: get preference: %w", err)
	}
	return Code(code), nil
}

func (p *SQLitePreferences) Set(ctx context.Context, visitorID string, code Code) error {
	_, err := dbopen.Exec(ctx, p.db,
		`INSERT INTO currency_preferences (visitor_id, currency, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(visitor_id) DO UPDATE SET currency = excluded.currency, updated_at = excluded.updated_at`,
		visitorID, string(code), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("currency: set preference: %w", err)
	}
	return nil
}
