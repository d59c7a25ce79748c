package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/promoforge/internal/config"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(config.LoggingConfig{Development: true, Level: "debug"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewProductionLoggerDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New(config.LoggingConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug to be disabled at info level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info to be enabled")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestStartupMasksSecrets(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	Startup(zap.New(core), config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Shotstack: config.ShotstackConfig{APIKey: "sk_live_abcdefghijklmnop"},
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["shotstack_key"]; got != "sk_l...mnop" {
		t.Fatalf("expected masked key, got %v", got)
	}
	if got := fields["elevenlabs_key"]; got != "(unset)" {
		t.Fatalf("expected unset marker, got %v", got)
	}
	for _, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(s, "abcdefghijklmnop") {
			t.Fatalf("secret leaked into log field: %s", s)
		}
	}
}
