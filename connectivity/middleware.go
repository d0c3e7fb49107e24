package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HandlerMiddleware wraps a Handler without changing its signature.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares; the first one is the outermost wrapper.
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call of service. Failures log at error level with
// the remote status when there is one; successes at debug.
func Logging(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			attrs := []any{
				"service", service,
				"duration_ms", time.Since(start).Milliseconds(),
				"payload_bytes", len(payload),
			}
			if err != nil {
				var rs *ErrRemoteStatus
				if errors.As(err, &rs) {
					attrs = append(attrs, "remote_status", rs.Status)
				}
				logger.ErrorContext(ctx, "connectivity: call failed", append(attrs, "error", err)...)
				return resp, err
			}
			logger.DebugContext(ctx, "connectivity: call ok", append(attrs, "response_bytes", len(resp))...)
			return resp, err
		}
	}
}

// Outcome labels of the calls counter.
const (
	OutcomeOK        = "ok"
	OutcomeRemote    = "remote_error"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// NewCallsCounter registers masukame_connectivity_calls_total{service,outcome}.
func NewCallsCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masukame",
		Subsystem: "connectivity",
		Name:      "calls_total",
		Help:      "Service calls by outcome.",
	}, []string{"service", "outcome"})
	reg.MustRegister(c)
	return c
}

// Metrics counts the calls of service by outcome.
func Metrics(calls *prometheus.CounterVec, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, err := next(ctx, payload)
			calls.WithLabelValues(service, outcome(ctx, err)).Inc()
			return resp, err
		}
	}
}

func outcome(ctx context.Context, err error) string {
	var rs *ErrRemoteStatus
	switch {
	case err == nil:
		return OutcomeOK
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.As(err, &rs):
		return OutcomeRemote
	}
	return OutcomeError
}

// Timeout bounds each call with a context deadline of d.
func Timeout(d time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, payload)
		}
	}
}

// Recovery turns a panic in a call of service into an *ErrPanic.
func Recovery(logger *slog.Logger, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					p := &ErrPanic{Service: service, Value: r, Stack: debug.Stack()}
					logger.ErrorContext(ctx, "connectivity: handler panic",
						"service", service, "panic", r, "stack", string(p.Stack))
					resp, err = nil, p
				}
			}()
			return next(ctx, payload)
		}
	}
}

// ErrPanic is a panic recovered from a handler.
type ErrPanic struct {
	Service string
	Value   any
	Stack   []byte
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("connectivity: %s panicked: %v", e.Service, e.Value)
}
