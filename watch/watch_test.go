package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/masukame/dbopen"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func userVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

func setUserVersion(t *testing.T, db *sql.DB, v int) {
	t.Helper()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v)); err != nil {
		t.Fatal(err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRun_InitialAndOnChange(t *testing.T) {
	db := dbopen.OpenMemory(t)
	w := New(db, WithInterval(10*time.Millisecond), WithDetector(userVersion), WithLogger(quiet))

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(context.Context) error { reloads.Add(1); return nil })

	eventually(t, "initial reload", func() bool { return reloads.Load() == 1 })

	setUserVersion(t, db, 1)
	eventually(t, "reload on change", func() bool { return reloads.Load() == 2 })
	if w.Version() != 1 {
		t.Errorf("version = %d", w.Version())
	}

	time.Sleep(50 * time.Millisecond)
	if got := reloads.Load(); got != 2 {
		t.Fatalf("reloaded without a change: %d", got)
	}
}

func TestRun_FailedReloadRetries(t *testing.T) {
	db := dbopen.OpenMemory(t)
	w := New(db, WithInterval(10*time.Millisecond), WithDetector(userVersion), WithLogger(quiet))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(context.Context) error {
		if calls.Add(1) <= 3 {
			return errors.New("not yet")
		}
		return nil
	})
	eventually(t, "successful retry", func() bool { return w.Stats().Reloads == 1 })
	if w.Stats().Errors < 3 {
		t.Errorf("stats = %+v", w.Stats())
	}
	// The token never moved; once a reload succeeds the retries stop.
	n := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != n {
		t.Errorf("reload kept running after success: %d calls, was %d", got, n)
	}
}

func TestRun_FailedDebouncedReloadRetries(t *testing.T) {
	db := dbopen.OpenMemory(t)
	w := New(db,
		WithInterval(5*time.Millisecond),
		WithDebounce(20*time.Millisecond),
		WithDetector(userVersion),
		WithLogger(quiet))

	var fail atomic.Bool
	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(context.Context) error {
		if fail.Load() {
			fail.Store(false)
			return errors.New("transient")
		}
		reloads.Add(1)
		return nil
	})
	eventually(t, "initial reload", func() bool { return reloads.Load() == 1 })

	fail.Store(true)
	setUserVersion(t, db, 7)
	eventually(t, "retried reload", func() bool { return w.Version() == 7 })
	if reloads.Load() != 2 {
		t.Errorf("reloads = %d", reloads.Load())
	}
}

func TestRun_Debounce(t *testing.T) {
	db := dbopen.OpenMemory(t)
	w := New(db,
		WithInterval(5*time.Millisecond),
		WithDebounce(150*time.Millisecond),
		WithDetector(userVersion),
		WithLogger(quiet))

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func(context.Context) error { reloads.Add(1); return nil })
	eventually(t, "initial reload", func() bool { return reloads.Load() == 1 })

	for i := 1; i <= 4; i++ {
		setUserVersion(t, db, i)
		time.Sleep(15 * time.Millisecond)
	}
	eventually(t, "debounced reload", func() bool { return w.Version() == 4 })
	if got := reloads.Load(); got != 2 {
		t.Errorf("burst gave %d reloads, want 2", got)
	}
}

func TestMaxColumn(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE items (id INTEGER PRIMARY KEY, ts INTEGER)`))
	det := MaxColumn("items", "ts")
	ctx := context.Background()
	if v, err := det(ctx, db); err != nil || v != 0 {
		t.Fatalf("empty: %d %v", v, err)
	}
	db.Exec(`INSERT INTO items (ts) VALUES (100), (42)`)
	if v, _ := det(ctx, db); v != 100 {
		t.Fatalf("got %d", v)
	}
}

func TestDigest(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(
		`CREATE TABLE flag (id INTEGER PRIMARY KEY, active INTEGER, message TEXT);
		 INSERT INTO flag VALUES (1, 0, '');`))
	det := Digest(`SELECT active, message FROM flag WHERE id = 1`)
	ctx := context.Background()

	a, err := det(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := det(ctx, db); a != b {
		t.Fatal("digest not stable")
	}
	db.Exec(`UPDATE flag SET message = 'back soon'`)
	b, _ := det(ctx, db)
	if a == b {
		t.Fatal("message change not detected")
	}
	db.Exec(`UPDATE flag SET message = NULL`)
	c, _ := det(ctx, db)
	db.Exec(`UPDATE flag SET message = ''`)
	if d, _ := det(ctx, db); c == d || d != a {
		t.Fatal("NULL and empty string must differ")
	}

	if _, err := Digest(`SELECT * FROM missing`)(ctx, db); err == nil {
		t.Fatal("missing table not reported")
	}
}
