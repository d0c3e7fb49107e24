package connectivity

import (
	"context"
	"log/slog"
)

// WithFallback hands the payload to local when the wrapped handler fails,
// so a form whose provider is down is queued instead of lost. A cancelled
// or expired caller context is not a provider failure and is returned
// unchanged.
func WithFallback(local Handler, service string, logger *slog.Logger) HandlerMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		if local == nil {
			return next
		}
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			resp, remoteErr := next(ctx, payload)
			if remoteErr == nil || ctx.Err() != nil {
				return resp, remoteErr
			}
			resp, err := local(ctx, payload)
			logger.WarnContext(ctx, "connectivity: using local fallback",
				"service", service, "remote_error", remoteErr, "local_ok", err == nil)
			return resp, err
		}
	}
}
