package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/promoforge/internal/promo"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
shotstack:
  api_key: abcdefghijklmnopqrstuvwxyz
  env: v1
  timeout_seconds: 12
render:
  status:
    interval_ms: 250
    max_attempts: 4
scraper:
  headless: false
  jpeg_quality: 70
storage:
  backend: gcs
  bucket: promo-media
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Shotstack.BaseURL() != "https://api.shotstack.io/v1" {
		t.Fatalf("expected v1 host, got %s", cfg.Shotstack.BaseURL())
	}
	if got := cfg.ShotstackTimeout(); got != 12*time.Second {
		t.Fatalf("expected 12s timeout, got %v", got)
	}
	if got := cfg.Render.Status.Interval(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %v", got)
	}
	if cfg.Render.Status.MaxAttempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", cfg.Render.Status.MaxAttempts)
	}
	if cfg.Render.FullFlow.MaxAttempts != 60 || cfg.Render.FullFlow.Interval() != 5*time.Second {
		t.Fatalf("expected full-flow defaults, got %+v", cfg.Render.FullFlow)
	}
	if cfg.Scraper.Headless || cfg.Scraper.JPEGQuality != 70 {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.Bucket != "promo-media" {
		t.Fatalf("expected gcs storage: %+v", cfg.Storage)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Render.Status.Interval() != time.Second || cfg.Render.Status.MaxAttempts != 30 {
		t.Fatalf("unexpected status poll defaults: %+v", cfg.Render.Status)
	}
	if cfg.Scraper.ViewportWidth != 1920 || cfg.Scraper.ViewportHeight != 1080 {
		t.Fatalf("unexpected viewport defaults: %+v", cfg.Scraper)
	}
	if cfg.Speech.ModelID != "eleven_monolingual_v1" {
		t.Fatalf("unexpected speech model %q", cfg.Speech.ModelID)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Render.Provider != ProviderShotstack {
		t.Fatalf("expected shotstack provider, got %q", cfg.Render.Provider)
	}
	if cfg.Creatomate.BaseURL != "https://api.creatomate.com/v1" {
		t.Fatalf("unexpected creatomate base url %q", cfg.Creatomate.BaseURL)
	}
}

func TestLoadCreatomateEnvironment(t *testing.T) {
	t.Setenv("VIDEO_PROVIDER", "creatomate")
	t.Setenv("CREATOMATE_API_KEY", "cm-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Render.Provider != ProviderCreatomate {
		t.Fatalf("expected creatomate provider, got %q", cfg.Render.Provider)
	}
	if cfg.Creatomate.APIKey != "cm-key" {
		t.Fatalf("expected CREATOMATE_API_KEY fallback, got %q", cfg.Creatomate.APIKey)
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("SHOTSTACK_API_KEY", "legacy-key-0123456789")
	t.Setenv("SHOTSTACK_API_ENV", "v1")
	t.Setenv("PORT", "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected PORT fallback, got %d", cfg.Server.Port)
	}
	creds, err := cfg.Shotstack.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.APIKey != "legacy-key-0123456789" || creds.Host != "https://api.shotstack.io/v1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("SHOTSTACK_API_KEY", "legacy-key-0123456789")
	t.Setenv("PROMOFORGE_SHOTSTACK_API_KEY", "prefixed-key-0123456789")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Shotstack.APIKey != "prefixed-key-0123456789" {
		t.Fatalf("expected prefixed key, got %q", cfg.Shotstack.APIKey)
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cases := map[string]func(*Config){
		"port":          func(c *Config) { c.Server.Port = 0 },
		"status poll":   func(c *Config) { c.Render.Status.MaxAttempts = 0 },
		"full flow":     func(c *Config) { c.Render.FullFlow.IntervalMs = 0 },
		"backend":       func(c *Config) { c.Storage.Backend = "s3" },
		"bucket":        func(c *Config) { c.Storage.Backend = "gcs"; c.Storage.Bucket = "" },
		"auth":          func(c *Config) { c.Auth.Enabled = true; c.Auth.APIKey = "" },
		"jpeg quality":  func(c *Config) { c.Scraper.JPEGQuality = 101 },
		"parallelism":   func(c *Config) { c.Scraper.Headless = true; c.Scraper.MaxParallel = 0 },
		"local storage": func(c *Config) { c.Storage.Backend = "local"; c.Storage.LocalDir = "" },
		"provider":      func(c *Config) { c.Render.Provider = "runway" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCredentialsRejectsBadKeys(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":     "",
		"blank":     "   ",
		"newline":   "abcdefgh\nijklmnopqrst",
		"tab":       "abcdefgh\tijklmnopqrst",
		"quote":     `abcdefgh"ijklmnopqrst`,
		"backtick":  "abcdefgh`ijklmnopqrst",
		"too short": "abc123",
	}
	for name, key := range cases {
		_, err := ShotstackConfig{APIKey: key}.Credentials()
		var cfgErr *promo.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigError, got %v", name, err)
		}
		if strings.Contains(cfgErr.Error(), key) && key != "" && strings.TrimSpace(key) != "" {
			t.Fatalf("%s: error must not echo the key", name)
		}
	}
}

func TestCredentialsTrimsAndResolvesHost(t *testing.T) {
	t.Parallel()

	creds, err := ShotstackConfig{
		APIKey: "  0123456789abcdef  ",
		Host:   "https://render.internal.test/edit/",
	}.Credentials()
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if creds.APIKey != "0123456789abcdef" {
		t.Fatalf("expected trimmed key, got %q", creds.APIKey)
	}
	if creds.Host != "https://render.internal.test/edit" {
		t.Fatalf("expected trailing slash stripped, got %q", creds.Host)
	}

	if got := (ShotstackConfig{}).BaseURL(); got != "https://api.shotstack.io/stage" {
		t.Fatalf("expected stage default, got %q", got)
	}
}

func TestMaskForLog(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  string
		want string
	}{
		{"", "(unset)"},
		{"abcd", "***"},
		{"abcdefgh", "***"},
		{"abcdefghi", "abcd...fghi"},
		{strings.Repeat("x", 36) + "tail", "xxxx...tail"},
	}
	for _, tc := range cases {
		if got := MaskForLog(tc.key); got != tc.want {
			t.Fatalf("MaskForLog(len=%d) = %q, want %q", len(tc.key), got, tc.want)
		}
		if len(tc.key) > 8 && strings.Contains(MaskForLog(tc.key), tc.key) {
			t.Fatalf("mask leaked full key")
		}
	}
}
