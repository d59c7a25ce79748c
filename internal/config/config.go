// Package config loads and validates PromoForge configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Shotstack  ShotstackConfig  `mapstructure:"shotstack"`
	Creatomate CreatomateConfig `mapstructure:"creatomate"`
	Render     RenderConfig     `mapstructure:"render"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Errors     ErrorsConfig     `mapstructure:"errors"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ShotstackConfig locates and authenticates the rendering service.
type ShotstackConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Host           string `mapstructure:"host"`
	Env            string `mapstructure:"env"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CreatomateConfig authenticates the template-based slideshow provider.
type CreatomateConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PollConfig bounds one polling loop.
type PollConfig struct {
	IntervalMs  int `mapstructure:"interval_ms"`
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Interval returns the spacing between status reads.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Render providers for slideshow generation.
const (
	ProviderShotstack  = "shotstack"
	ProviderCreatomate = "creatomate"
)

// RenderConfig holds the slideshow provider and the polling constants for interactive and
// end-to-end flows.
type RenderConfig struct {
	Provider string     `mapstructure:"provider"`
	Status   PollConfig `mapstructure:"status"`
	FullFlow PollConfig `mapstructure:"full_flow"`
}

// SpeechConfig configures the text-to-speech provider.
type SpeechConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ModelID        string `mapstructure:"model_id"`
	DefaultVoice   string `mapstructure:"default_voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ScraperConfig configures the page scrapers.
type ScraperConfig struct {
	Headless          bool   `mapstructure:"headless"`
	MaxParallel       int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	UserAgent         string `mapstructure:"user_agent"`
	ViewportWidth     int    `mapstructure:"viewport_width"`
	ViewportHeight    int    `mapstructure:"viewport_height"`
	SettleMs          int    `mapstructure:"settle_ms"`
	ScrollDelayMs     int    `mapstructure:"scroll_delay_ms"`
	JPEGQuality       int    `mapstructure:"jpeg_quality"`
	CacheTTLSeconds   int    `mapstructure:"cache_ttl_seconds"`
}

// RateLimitConfig throttles scrapes per host.
type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// StorageConfig selects the blob backend for uploads, screenshots and voiceovers.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	LocalDir      string `mapstructure:"local_dir"`
}

// DatabaseConfig controls the optional render audit log.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for render-finished notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RedisConfig points at the optional scrape cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig describes the service to OpenTelemetry and sets the trace sampling ratio.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// ErrorsConfig controls how much internal detail reaches API clients.
type ErrorsConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// legacyEnv maps config keys to the unprefixed variable names used by existing deployments.
var legacyEnv = map[string]string{
	"shotstack.api_key":  "SHOTSTACK_API_KEY",
	"shotstack.host":     "SHOTSTACK_HOST",
	"shotstack.env":      "SHOTSTACK_API_ENV",
	"speech.api_key":     "ELEVENLABS_API_KEY",
	"creatomate.api_key": "CREATOMATE_API_KEY",
	"render.provider":    "VIDEO_PROVIDER",
	"server.port":        "PORT",
	"errors.verbose":     "VERBOSE_ERRORS",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROMOFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := "PROMOFORGE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 360)
	v.SetDefault("shotstack.env", "stage")
	v.SetDefault("shotstack.timeout_seconds", 30)
	v.SetDefault("creatomate.base_url", "https://api.creatomate.com/v1")
	v.SetDefault("creatomate.timeout_seconds", 30)
	v.SetDefault("render.provider", ProviderShotstack)
	v.SetDefault("render.status.interval_ms", 1000)
	v.SetDefault("render.status.max_attempts", 30)
	v.SetDefault("render.full_flow.interval_ms", 5000)
	v.SetDefault("render.full_flow.max_attempts", 60)
	v.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.model_id", "eleven_monolingual_v1")
	v.SetDefault("speech.default_voice", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("speech.timeout_seconds", 60)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.max_parallel", 2)
	v.SetDefault("scraper.nav_timeout_seconds", 30)
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.viewport_width", 1920)
	v.SetDefault("scraper.viewport_height", 1080)
	v.SetDefault("scraper.settle_ms", 2000)
	v.SetDefault("scraper.scroll_delay_ms", 1000)
	v.SetDefault("scraper.jpeg_quality", 90)
	v.SetDefault("scraper.cache_ttl_seconds", 900)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 0.5)
	v.SetDefault("rate_limit.default_burst", 2)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "data/media")
	v.SetDefault("database.table", "render_events")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.service_name", "promoforge")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("errors.verbose", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Render.Status.IntervalMs <= 0 || c.Render.Status.MaxAttempts <= 0 {
		return fmt.Errorf("render.status interval_ms and max_attempts must be > 0")
	}
	if c.Render.FullFlow.IntervalMs <= 0 || c.Render.FullFlow.MaxAttempts <= 0 {
		return fmt.Errorf("render.full_flow interval_ms and max_attempts must be > 0")
	}
	switch c.Render.Provider {
	case ProviderShotstack, ProviderCreatomate, "":
	default:
		return fmt.Errorf("render.provider %q is not supported", c.Render.Provider)
	}
	if c.Scraper.Headless && c.Scraper.MaxParallel <= 0 {
		return fmt.Errorf("scraper.max_parallel must be > 0 when headless is enabled")
	}
	if c.Scraper.JPEGQuality < 0 || c.Scraper.JPEGQuality > 100 {
		return fmt.Errorf("scraper.jpeg_quality must be within 0..100")
	}
	switch c.Storage.Backend {
	case "memory", "":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within 0..1")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// ShotstackTimeout returns the per-request timeout for rendering-service calls.
func (c Config) ShotstackTimeout() time.Duration {
	return time.Duration(c.Shotstack.TimeoutSeconds) * time.Second
}
