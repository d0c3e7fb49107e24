// Package shield holds the HTTP middleware in front of the site: security
// headers, body limits, request tracing, flash messages, per-IP rate
// limiting and the maintenance gate.
//
//	mm := shield.NewMaintenanceMode(db, "/healthz", "/metrics")
//	rl := shield.NewRateLimiter(cfg.RateLimit, "/api/", "/forms/")
//	for _, mw := range shield.Stack(logger, mm, rl) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// FlashKey is the context key for flash messages.
	FlashKey contextKey = "shield_flash"
)

// FlashKind selects how a flash message is styled.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// FlashMessage is a one-time notification shown on the next page.
type FlashMessage struct {
	Kind    FlashKind
	Message string
}

// GetFlash retrieves the flash message from the request context.
func GetFlash(ctx context.Context) *FlashMessage {
	v, _ := ctx.Value(FlashKey).(*FlashMessage)
	return v
}

// Stack returns the public middleware chain in order: maintenance gate,
// HEAD→GET, security headers, body limit, trace id, rate limiter, flash.
// A nil mm or rl is left out. Request loggers derive from logger.
func Stack(logger *slog.Logger, mm *MaintenanceMode, rl *RateLimiter) []func(http.Handler) http.Handler {
	var stack []func(http.Handler) http.Handler
	if mm != nil {
		stack = append(stack, mm.Middleware)
	}
	stack = append(stack,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64*1024),
		TraceID(logger),
	)
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return append(stack, Flash)
}

// HeadToGet lets GET routes answer HEAD requests; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
