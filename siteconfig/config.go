// CLAUDE:SUMMARY Site configuration sections, hard-coded defaults and derived accessors.
// Package siteconfig holds the site's immutable configuration: third-party
// endpoints, feature flags and fallback values. A Config is built once by
// Load or Default and passed down by value.
package siteconfig

import (
	"maps"
	"time"
)

// Config is the top-level site configuration.
type Config struct {
	Env        Environment      `yaml:"-"`
	Forms      FormsConfig      `yaml:"forms"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Registry   RegistryConfig   `yaml:"registry"`
	Blockchain BlockchainConfig `yaml:"blockchain"`
	Currency   CurrencyConfig   `yaml:"currency"`
	Email      EmailConfig      `yaml:"email"`
	Features   FeaturesConfig   `yaml:"features"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// FormsConfig maps form names to their submission endpoints.
type FormsConfig struct {
	Purchase   string `yaml:"purchase"`
	Concierge  string `yaml:"concierge"`
	Newsletter string `yaml:"newsletter"`
}

// Endpoints returns the form endpoints keyed by form name.
func (f FormsConfig) Endpoints() map[string]string {
	return map[string]string{
		"purchase":   f.Purchase,
		"concierge":  f.Concierge,
		"newsletter": f.Newsletter,
	}
}

// AnalyticsConfig identifies the tracking pixels.
type AnalyticsConfig struct {
	MetaPixelID       string `yaml:"meta_pixel_id"`
	GoogleAnalyticsID string `yaml:"google_analytics_id"`
	DebugMode         bool   `yaml:"debug_mode"`
}

// RegistryConfig points at the registry API and its fallback dataset.
type RegistryConfig struct {
	APIEndpoint       string        `yaml:"api_endpoint"`
	WebsocketEndpoint string        `yaml:"websocket_endpoint"`
	UseFallback       bool          `yaml:"use_fallback"`
	FallbackData      string        `yaml:"fallback_data"`
	CacheTime         time.Duration `yaml:"cache_time"`
	APIKey            string        `yaml:"api_key"`
}

// BlockchainConfig describes the token contract.
type BlockchainConfig struct {
	Network         string `yaml:"network"`
	ContractAddress string `yaml:"contract_address"`
	EtherscanAPIKey string `yaml:"etherscan_api_key"`
	IPFSGateway     string `yaml:"ipfs_gateway"`
	ENSResolver     string `yaml:"ens_resolver"`
}

// CurrencyConfig configures live rates. FallbackRates is keyed by ISO code.
type CurrencyConfig struct {
	APIEndpoint    string             `yaml:"api_endpoint"`
	UpdateInterval time.Duration      `yaml:"update_interval"`
	FallbackRates  map[string]float64 `yaml:"fallback_rates"`
	Locale         string             `yaml:"locale"`
}

// EmailConfig lists contact addresses.
type EmailConfig struct {
	Concierge string `yaml:"concierge"`
	Support   string `yaml:"support"`
	Orders    string `yaml:"orders"`
}

// FeaturesConfig holds rollout flags.
type FeaturesConfig struct {
	EnableNFTRegistry     bool `yaml:"enable_nft_registry"`
	EnableLiveCurrency    bool `yaml:"enable_live_currency"`
	EnableWalletConnect   bool `yaml:"enable_wallet_connect"`
	EnableAR              bool `yaml:"enable_ar"`
	EnableSecondaryMarket bool `yaml:"enable_secondary_market"`
	Maintenance           bool `yaml:"maintenance"`
}

// RateLimitConfig bounds API usage per client.
type RateLimitConfig struct {
	MaxRequests   int           `yaml:"max_requests"`   // per minute
	ThrottleDelay time.Duration `yaml:"throttle_delay"`
}

// Default returns the built-in configuration for production.
func Default() Config {
	return Config{
		Env: Production,
		Forms: FormsConfig{
			Purchase:   "https://formspree.io/f/xkgnjzqr",
			Concierge:  "https://formspree.io/f/xabyqwrz",
			Newsletter: "https://formspree.io/f/xnqkjwrp",
		},
		Analytics: AnalyticsConfig{
			MetaPixelID:       "1234567890123456",
			GoogleAnalyticsID: "G-2VFDEPKDDW",
		},
		Registry: RegistryConfig{
			APIEndpoint:  "https://api.masukame.fomusglobal.com/v1/registry",
			UseFallback:  true,
			FallbackData: "/en/data/registry.sample.json",
			CacheTime:    300000 * time.Millisecond,
		},
		Blockchain: BlockchainConfig{
			Network:         "mainnet",
			ContractAddress: "0x0000000000000000000000000000000000000000",
			IPFSGateway:     "https://ipfs.io/ipfs/",
			ENSResolver:     "https://api.ensideas.com/ens/resolve/",
		},
		Currency: CurrencyConfig{
			APIEndpoint:    "https://api.exchangerate-api.com/v4/latest/USD",
			UpdateInterval: time.Hour,
			FallbackRates: map[string]float64{
				"USD": 1.0,
				"EUR": 0.92,
				"AED": 3.67,
				"JPY": 148.5,
			},
			Locale: "en-US",
		},
		Email: EmailConfig{
			Concierge: "concierge@fomusglobal.com",
			Support:   "support@masukame.fomusglobal.com",
			Orders:    "orders@masukame.fomusglobal.com",
		},
		Features: FeaturesConfig{
			EnableNFTRegistry:  true,
			EnableLiveCurrency: true,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   60,
			ThrottleDelay: time.Second,
		},
	}
}

// IsDevelopment reports whether the config was loaded for a development host.
func (c Config) IsDevelopment() bool { return c.Env == Development }

// FallbackEnabled reports whether registry queries use the bundled dataset.
func (c Config) FallbackEnabled() bool {
	return c.Registry.UseFallback || c.IsDevelopment()
}

// FallbackRates returns a copy of the configured fallback exchange rates.
func (c Config) FallbackRates() map[string]float64 {
	return maps.Clone(c.Currency.FallbackRates)
}

// FormEndpoint returns the submission endpoint for a named form.
func (c Config) FormEndpoint(name string) (string, bool) {
	var ep string
	switch name {
	case "purchase":
		ep = c.Forms.Purchase
	case "concierge":
		ep = c.Forms.Concierge
	case "newsletter":
		ep = c.Forms.Newsletter
	}
	return ep, ep != ""
}

// Clone returns a deep copy safe to hand to another owner.
func (c Config) Clone() Config {
	c.Currency.FallbackRates = maps.Clone(c.Currency.FallbackRates)
	return c
}
