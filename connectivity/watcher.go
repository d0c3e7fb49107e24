package connectivity

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/masukame/watch"
)

// Watch applies the route table now and again whenever PRAGMA
// data_version moves, polling at interval. It blocks until ctx is done.
//
// data_version only moves for writes made through other connections, so
// db should be a dedicated single-connection pool and edits come from
// another pool or process (the CLI, sqlite3).
func (r *Router) Watch(ctx context.Context, db *sql.DB, interval time.Duration) {
	w := watch.New(db,
		watch.WithInterval(interval),
		watch.WithDebounce(interval/2),
		watch.WithLogger(r.logger),
		watch.WithName("routes"))
	w.Run(ctx, func(ctx context.Context) error {
		routes, err := LoadRoutes(ctx, db)
		if err != nil {
			return err
		}
		// Bad routes are reported and skipped; retrying them on every
		// poll would not fix them.
		if err := r.Apply(routes); err != nil {
			r.logger.Error("connectivity: routes applied with errors", "error", err)
		} else {
			r.logger.Info("connectivity: routes applied", "count", len(routes))
		}
		return nil
	})
}
