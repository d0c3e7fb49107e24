package siteconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func TestDetectEnvironment(t *testing.T) {
	tests := []struct {
		host string
		want Environment
	}{
		{"localhost", Development},
		{"localhost:8080", Development},
		{"127.0.0.1", Development},
		{"127.0.0.1:3000", Development},
		{"staging.masukame.fomusglobal.com", Staging},
		{"masukame.fomusglobal.com", Production},
		{"", Production},
	}
	for _, tt := range tests {
		if got := DetectEnvironment(tt.host); got != tt.want {
			t.Errorf("DetectEnvironment(%q) = %s, want %s", tt.host, got, tt.want)
		}
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), Production, WithLookupEnv(noEnv))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry.CacheTime != 5*time.Minute {
		t.Errorf("cache time = %v", cfg.Registry.CacheTime)
	}
	if cfg.Currency.FallbackRates["JPY"] != 148.5 {
		t.Errorf("JPY = %v", cfg.Currency.FallbackRates["JPY"])
	}
	if cfg.Analytics.DebugMode {
		t.Error("debug mode on in production")
	}
	if cfg.RateLimit.MaxRequests != 60 {
		t.Errorf("max requests = %d", cfg.RateLimit.MaxRequests)
	}
}

func TestLoad_DevelopmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	os.WriteFile(path, []byte("registry:\n  use_fallback: false\nanalytics:\n  debug_mode: false\n"), 0o644)

	cfg, err := Load(path, Development, WithLookupEnv(noEnv))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Registry.UseFallback || !cfg.Analytics.DebugMode {
		t.Errorf("development overrides not applied: %+v", cfg.Registry)
	}
	if !cfg.FallbackEnabled() || !cfg.IsDevelopment() {
		t.Error("accessors disagree with env")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	os.WriteFile(path, []byte(`
registry:
  api_endpoint: https://file.example/v1
  use_fallback: false
  cache_time: 1m
currency:
  update_interval: 10m
`), 0o644)

	env := map[string]string{"REGISTRY_API": "https://env.example/v2", "REGISTRY_WS": "wss://ws.example"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg, err := Load(path, Production, WithLookupEnv(lookup))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry.APIEndpoint != "https://env.example/v2" {
		t.Errorf("endpoint = %s", cfg.Registry.APIEndpoint)
	}
	if cfg.Registry.WebsocketEndpoint != "wss://ws.example" {
		t.Errorf("ws = %s", cfg.Registry.WebsocketEndpoint)
	}
	if cfg.Registry.CacheTime != time.Minute || cfg.Currency.UpdateInterval != 10*time.Minute {
		t.Errorf("durations = %v %v", cfg.Registry.CacheTime, cfg.Currency.UpdateInterval)
	}
	if cfg.FallbackEnabled() {
		t.Error("fallback should be off")
	}
	if cfg.Forms.Purchase == "" {
		t.Error("unset sections lost their defaults")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("registry: [unterminated"), 0o644)
	if _, err := Load(path, Production, WithLookupEnv(noEnv)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_AnalyticsInit(t *testing.T) {
	var got string
	calls := 0
	_, err := Load("", Production, WithLookupEnv(noEnv), WithAnalyticsInit(func(id string) {
		calls++
		got = id
	}))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || got != "1234567890123456" {
		t.Errorf("calls=%d id=%q", calls, got)
	}

	// A panicking hook must not fail the load.
	if _, err := Load("", Production, WithLookupEnv(noEnv), WithAnalyticsInit(func(string) { panic("sdk missing") })); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_CopiesAreIndependent(t *testing.T) {
	a := Default()
	b := a.Clone()
	b.Currency.FallbackRates["EUR"] = 2
	if a.Currency.FallbackRates["EUR"] != 0.92 {
		t.Error("clone shares rate map")
	}
	r := a.FallbackRates()
	r["USD"] = 9
	if a.Currency.FallbackRates["USD"] != 1 {
		t.Error("FallbackRates leaked the internal map")
	}
}

func TestFormEndpoint(t *testing.T) {
	cfg := Default()
	if ep, ok := cfg.FormEndpoint("concierge"); !ok || ep != "https://formspree.io/f/xabyqwrz" {
		t.Errorf("concierge = %q %v", ep, ok)
	}
	if _, ok := cfg.FormEndpoint("unknown"); ok {
		t.Error("unknown form resolved")
	}
}
