// CLAUDE:SUMMARY Layered config load: defaults, optional YAML file, env vars, environment-mode overrides.
package siteconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	analyticsInit func(pixelID string)
	logger        *slog.Logger
	lookupEnv     func(string) (string, bool)
}

// WithAnalyticsInit registers a hook invoked once after load when a pixel
// id is configured.
func WithAnalyticsInit(fn func(pixelID string)) Option {
	return func(o *loadOptions) { o.analyticsInit = fn }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *loadOptions) { o.logger = l }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.lookupEnv = fn }
}

// Load builds the configuration: defaults, then the YAML file at path (an
// empty or missing path keeps defaults), then environment variables, then
// the overrides implied by env.
func Load(path string, env Environment, opts ...Option) (Config, error) {
	o := loadOptions{logger: slog.Default(), lookupEnv: os.LookupEnv}
	for _, fn := range opts {
		fn(&o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			o.logger.Info("siteconfig: no config file, using defaults", "path", path)
		case err != nil:
			return Config{}, fmt.Errorf("siteconfig: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("siteconfig: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(o.lookupEnv)
	cfg.applyDefaults()

	cfg.Env = env
	if env == Development {
		cfg.Analytics.DebugMode = true
		cfg.Registry.UseFallback = true
		o.logger.Info("siteconfig: development mode")
	}

	if cfg.Analytics.MetaPixelID != "" && o.analyticsInit != nil {
		initAnalytics(o.logger, o.analyticsInit, cfg.Analytics.MetaPixelID, cfg.Analytics.DebugMode)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("REGISTRY_API", &c.Registry.APIEndpoint)
	set("REGISTRY_API_KEY", &c.Registry.APIKey)
	set("REGISTRY_WS", &c.Registry.WebsocketEndpoint)
	set("ETHERSCAN_API_KEY", &c.Blockchain.EtherscanAPIKey)
}

// applyDefaults restores built-in values for fields a config file zeroed.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Registry.CacheTime <= 0 {
		c.Registry.CacheTime = def.Registry.CacheTime
	}
	if c.Currency.UpdateInterval <= 0 {
		c.Currency.UpdateInterval = def.Currency.UpdateInterval
	}
	if len(c.Currency.FallbackRates) == 0 {
		c.Currency.FallbackRates = def.Currency.FallbackRates
	}
	if c.Currency.Locale == "" {
		c.Currency.Locale = def.Currency.Locale
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = def.RateLimit.MaxRequests
	}
	if c.RateLimit.ThrottleDelay <= 0 {
		c.RateLimit.ThrottleDelay = def.RateLimit.ThrottleDelay
	}
}

func initAnalytics(logger *slog.Logger, fn func(string), pixelID string, debug bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("siteconfig: analytics init panicked", "panic", r)
		}
	}()
	fn(pixelID)
	if debug {
		logger.Debug("siteconfig: meta pixel initialized", "pixel_id", pixelID)
	}
}
