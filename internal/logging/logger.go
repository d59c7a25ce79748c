// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/promoforge/internal/config"
)

// New builds a zap.Logger configured for development or production at cfg.Level.
// An empty level means info.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", raw, err)
		}
		level = parsed
	}

	if cfg.Development {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := zcfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = false
	zcfg.EncoderConfig.TimeKey = "ts"
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// Secret logs a credential by its masked form only.
func Secret(key, value string) zap.Field {
	return zap.String(key, config.MaskForLog(value))
}

// Startup logs the effective configuration once, with credentials masked.
func Startup(logger *zap.Logger, cfg config.Config) {
	logger.Info("starting promoforge",
		zap.Int("port", cfg.Server.Port),
		zap.String("shotstack_host", cfg.Shotstack.BaseURL()),
		Secret("shotstack_key", cfg.Shotstack.APIKey),
		Secret("elevenlabs_key", cfg.Speech.APIKey),
		zap.String("slideshow_provider", cfg.Render.Provider),
		Secret("creatomate_key", cfg.Creatomate.APIKey),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("headless_scraper", cfg.Scraper.Headless),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
		zap.Bool("render_log", cfg.Database.DSN != ""),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
		zap.Bool("scrape_cache", cfg.Redis.Addr != ""),
	)
}
