package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/kit"
)

// RequestIDHeader carries an id set by a fronting proxy.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// TraceID tags each request with an id and binds a logger derived from base
// to the request context. A well-formed X-Request-ID from upstream is kept
// so proxy and site logs line up; otherwise a random id is drawn. The id is
// echoed in X-Trace-ID.
func TraceID(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(RequestIDHeader)
			if len(traceID) > maxRequestIDLen || horosafe.ValidateIdentifier(traceID) != nil {
				traceID = newTraceID()
			}
			w.Header().Set("X-Trace-ID", traceID)

			logger := base.With("trace_id", traceID, "method", r.Method, "path", r.URL.Path)
			logger.Debug("request", "remote_addr", r.RemoteAddr)

			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = context.WithValue(ctx, LoggerKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTraceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GetLogger returns the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
