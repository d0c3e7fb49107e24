// CLAUDE:SUMMARY Polls a live exchange-rate JSON API and merges results into the converter.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/masukame/horosafe"
)

// RateFetcher refreshes a Converter from an exchangerate-api style
// endpoint returning {"rates": {"EUR": 0.92, ...}}.
type RateFetcher struct {
	conv     *Converter
	endpoint string
	interval time.Duration
	client   *http.Client
	guard    func(string) error
	logger   *slog.Logger
}

// FetcherOption configures a RateFetcher.
type FetcherOption func(*RateFetcher)

// WithHTTPClient sets the HTTP client. Default: 10s timeout.
func WithHTTPClient(c *http.Client) FetcherOption { return func(f *RateFetcher) { f.client = c } }

// WithEndpointGuard validates the endpoint before each request, typically
// horosafe.ValidateURL.
func WithEndpointGuard(fn func(string) error) FetcherOption {
	return func(f *RateFetcher) { f.guard = fn }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l *slog.Logger) FetcherOption { return func(f *RateFetcher) { f.logger = l } }

// NewRateFetcher polls endpoint every interval (one hour when zero).
func NewRateFetcher(conv *Converter, endpoint string, interval time.Duration, opts ...FetcherOption) *RateFetcher {
	if interval <= 0 {
		interval = time.Hour
	}
	f := &RateFetcher{
		conv:     conv,
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// FetchOnce retrieves the rate table and applies it. It returns the number
// of rates updated.
func (f *RateFetcher) FetchOnce(ctx context.Context) (int, error) {
	if f.guard != nil {
		if err := f.guard(f.endpoint); err != nil {
			return 0, fmt.Errorf("currency: rates endpoint: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("currency: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("currency: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("currency: http %d", resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return 0, fmt.Errorf("currency: read body: %w", err)
	}

	var out ratesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("currency: json decode: %w", err)
	}

	update := make(map[Code]float64, len(Supported))
	for k, v := range out.Rates {
		if code, ok := ParseCode(k); ok {
			update[code] = v
		}
	}
	return f.conv.UpdateRates(update), nil
}

// Run fetches immediately and then on every interval until ctx is done.
// Failures are logged; the last good table stays in effect.
func (f *RateFetcher) Run(ctx context.Context) {
	tick := time.NewTicker(f.interval)
	defer tick.Stop()
	for {
		if n, err := f.FetchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("currency: rate refresh failed", "endpoint", f.endpoint, "error", err)
		} else {
			f.logger.Debug("currency: rates refreshed", "updated", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}
