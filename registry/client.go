// CLAUDE:SUMMARY Registry client: cache-then-backend-then-fallback search/statistics, verification, transfers.
// Package registry answers sculpture lookups and registry statistics from
// either the remote registry API or the bundled fallback dataset, behind a
// short-lived read-through cache.
package registry

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/siteconfig"
)

const (
	backendRemote  = "remote"
	backendDataset = "dataset"
)

// Client is the registry front. It is safe for concurrent use.
type Client struct {
	cfg    siteconfig.Config
	remote *remote
	cache  *queryCache
	logger *slog.Logger
	m      *Metrics
	now    func() time.Time

	dsMu     sync.Mutex
	dataset  *Dataset
	dsSource string

	subMu        sync.Mutex
	subs         map[string]*Subscription
	tickInterval time.Duration
	socketGuard  func(string) error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.remote.client = h } }

// WithMetrics records cache and backend counters.
func WithMetrics(m *Metrics) Option { return func(c *Client) { c.m = m } }

// WithSSRFGuard rejects API and websocket endpoints resolving to private
// or loopback addresses.
func WithSSRFGuard() Option {
	return func(c *Client) {
		c.remote.guard = horosafe.ValidateURL
		c.socketGuard = horosafe.ValidateSocketURL
	}
}

// WithUpdateInterval sets the period of the simulated development feed.
// Default: 30s.
func WithUpdateInterval(d time.Duration) Option { return func(c *Client) { c.tickInterval = d } }

// WithDataset installs an already loaded dataset.
func WithDataset(ds *Dataset) Option {
	return func(c *Client) { c.dataset, c.dsSource = ds, "provided" }
}

// New builds a Client from cfg.
func New(cfg siteconfig.Config, opts ...Option) *Client {
	c := &Client{
		cfg: cfg.Clone(),
		remote: &remote{
			base:   cfg.Registry.APIEndpoint,
			apiKey: cfg.Registry.APIKey,
			client: &http.Client{Timeout: 10 * time.Second},
		},
		cache:        newQueryCache(cfg.Registry.CacheTime),
		logger:       slog.Default(),
		now:          time.Now,
		subs:         make(map[string]*Subscription),
		tickInterval: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	if c.m == nil {
		c.m = NewMetrics(nil)
	}
	return c
}

// Normalize trims and lower-cases a query.
func Normalize(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

// Preload loads the fallback dataset now. Once loaded, remote failures can
// be answered from it.
func (c *Client) Preload() error {
	_, err := c.loadDataset()
	return err
}

func (c *Client) loadDataset() (*Dataset, error) {
	c.dsMu.Lock()
	defer c.dsMu.Unlock()
	if c.dataset != nil {
		return c.dataset, nil
	}
	ds, src, err := LoadDataset(c.cfg.Registry.FallbackData)
	if err != nil {
		c.logger.Error("registry: load fallback dataset", "error", err)
		return nil, err
	}
	c.dataset, c.dsSource = ds, src
	if c.cfg.Analytics.DebugMode {
		c.logger.Debug("registry: fallback dataset loaded", "source", src,
			"total_minted", ds.Info.TotalMinted, "sculptures", len(ds.Sculptures))
	}
	return ds, nil
}

// loadedDataset returns the dataset if it was loaded before, without
// loading it.
func (c *Client) loadedDataset() *Dataset {
	c.dsMu.Lock()
	defer c.dsMu.Unlock()
	return c.dataset
}

// Search finds a sculpture by serial or token id. A nil result with a nil
// error means not found or unavailable; the error is only set when ctx
// is done.
func (c *Client) Search(ctx context.Context, query string) (*Sculpture, error) {
	q := Normalize(query)
	// "2" and "002" name the same serial and share one entry.
	key := CacheKey{Kind: KindSearch, Arg: padSerial(q)}
	if v, ok := c.cache.get(key); ok {
		c.m.CacheHits.Inc()
		return v.(*Sculpture).clone(), nil
	}
	c.m.CacheMisses.Inc()

	var (
		res     *Sculpture
		err     error
		backend = backendRemote
	)
	if c.cfg.FallbackEnabled() {
		backend = backendDataset
		var ds *Dataset
		if ds, err = c.loadDataset(); err == nil {
			res = ds.Find(q)
		}
	} else {
		res, err = c.remote.search(ctx, query)
	}
	c.m.backend(backend, err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("registry: search failed", "query", q, "backend", backend, "error", err)
		if backend == backendRemote {
			if ds := c.loadedDataset(); ds != nil {
				c.m.Degraded.Inc()
				return ds.Find(q), nil
			}
		}
		return nil, nil
	}

	c.cache.set(key, res.clone())
	return res, nil
}

// Statistics returns registry aggregates. On remote failure the loaded
// dataset is summarised instead, zeros when none was loaded.
func (c *Client) Statistics(ctx context.Context) Statistics {
	key := CacheKey{Kind: KindStatistics}
	if v, ok := c.cache.get(key); ok {
		c.m.CacheHits.Inc()
		return v.(Statistics)
	}
	c.m.CacheMisses.Inc()

	var (
		stats   Statistics
		err     error
		backend = backendRemote
	)
	if c.cfg.FallbackEnabled() {
		backend = backendDataset
		var ds *Dataset
		if ds, err = c.loadDataset(); err == nil {
			stats = ds.Statistics()
		}
	} else {
		stats, err = c.remote.statistics(ctx)
	}
	c.m.backend(backend, err)

	if err != nil {
		c.logger.Warn("registry: statistics failed", "backend", backend, "error", err)
		c.m.Degraded.Inc()
		return c.loadedDataset().Statistics()
	}
	c.cache.set(key, stats)
	return stats
}

// VerifyOwnership checks that address owns tokenID. Development
// configurations get a synthetic verified answer; elsewhere the remote API
// decides and failures come back as an unverified result.
func (c *Client) VerifyOwnership(ctx context.Context, tokenID, address string) Verification {
	if c.cfg.Env == siteconfig.Development {
		c.logger.Debug("registry: simulated ownership verification", "token_id", tokenID, "wallet", address)
		return Verification{
			Verified:  true,
			Owner:     address,
			TokenID:   tokenID,
			Timestamp: c.now().UnixMilli(),
		}
	}

	v, err := c.remote.verify(ctx, tokenID, address)
	c.m.backend(backendRemote, err)
	if err != nil {
		c.logger.Warn("registry: ownership verification failed", "token_id", tokenID, "error", err)
		return Verification{Verified: false, Error: err.Error()}
	}
	return v
}

// MintEvent is the canned history returned in fallback mode.
var MintEvent = Transfer{
	From:      "0x0000...0000",
	To:        "0xAb5e...3491",
	Timestamp: "2024-03-15T14:30:00Z",
	Type:      "Mint",
}

// TransferHistory lists ownership events for tokenID, oldest first. It is
// informational: failures yield an empty list.
func (c *Client) TransferHistory(ctx context.Context, tokenID string) []Transfer {
	if c.cfg.FallbackEnabled() {
		return []Transfer{MintEvent}
	}
	out, err := c.remote.transfers(ctx, tokenID)
	c.m.backend(backendRemote, err)
	if err != nil {
		c.logger.Warn("registry: transfer history failed", "token_id", tokenID, "error", err)
		return []Transfer{}
	}
	if out == nil {
		out = []Transfer{}
	}
	return out
}

// CachedEntries reports how many entries the cache holds, expired ones
// included.
func (c *Client) CachedEntries() int { return c.cache.len() }

// Destroy closes every open subscription and clears the cache. It is safe
// to call more than once.
func (c *Client) Destroy() {
	c.subMu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[string]*Subscription)
	c.subMu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	c.cache.clear()
}
