package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/masukame/horosafe"
)

// maxHTTPResponseBody caps the response read from remote endpoints.
const maxHTTPResponseBody int64 = 1 << 20

// httpConfig is the per-route config JSON.
type httpConfig struct {
	TimeoutMs   int64  `json:"timeout_ms"`
	ContentType string `json:"content_type"`
}

type httpOptions struct {
	guard  func(string) error
	client *http.Client
}

// HTTPOption configures HTTPFactory.
type HTTPOption func(*httpOptions)

// WithURLGuard rejects endpoints for which guard returns an error, at
// route build time. Production passes horosafe.ValidateURL.
func WithURLGuard(guard func(string) error) HTTPOption {
	return func(o *httpOptions) { o.guard = guard }
}

// WithClient sets the HTTP client. Its Timeout is overridden by a
// route's timeout_ms.
func WithClient(c *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = c }
}

// HTTPFactory builds handlers that POST the payload to the route endpoint
// and return the response body. Payloads default to application/json,
// which is what form providers such as Formspree accept when asked for a
// JSON answer.
func HTTPFactory(opts ...HTTPOption) TransportFactory {
	o := httpOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		if o.guard != nil {
			if err := o.guard(endpoint); err != nil {
				return nil, nil, fmt.Errorf("connectivity/http: %w", err)
			}
		}

		var cfg httpConfig
		if len(config) > 0 {
			_ = json.Unmarshal(config, &cfg)
		}
		contentType := "application/json"
		if cfg.ContentType != "" {
			contentType = cfg.ContentType
		}

		client := &http.Client{Timeout: 15 * time.Second}
		if o.client != nil {
			c := *o.client
			client = &c
		}
		if cfg.TimeoutMs > 0 {
			client.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ErrRemoteStatus{Status: resp.StatusCode, Body: string(body)}
			}
			return body, nil
		}

		return handler, client.CloseIdleConnections, nil
	}
}
