package config

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/promoforge/internal/promo"
)

const (
	stageHost = "https://api.shotstack.io/stage"
	v1Host    = "https://api.shotstack.io/v1"

	minAPIKeyLength = 16
)

// CR, LF, tab and quote characters are rejected by strict HTTP header handling.
var forbiddenHeaderChars = regexp.MustCompile("[\r\n\t\"'`]")

// BaseURL resolves the rendering-service host, preferring an explicit host over the env selector.
func (s ShotstackConfig) BaseURL() string {
	host := strings.TrimSpace(s.Host)
	if host == "" {
		host = stageHost
		if s.Env == "v1" {
			host = v1Host
		}
	}
	return strings.TrimRight(host, "/")
}

// Credentials validates the API key and returns it with the resolved host.
func (s ShotstackConfig) Credentials() (promo.Credentials, error) {
	key := strings.TrimSpace(s.APIKey)
	switch {
	case key == "":
		return promo.Credentials{}, &promo.ConfigError{Field: "SHOTSTACK_API_KEY", Reason: "is not set"}
	case forbiddenHeaderChars.MatchString(key):
		return promo.Credentials{}, &promo.ConfigError{
			Field:  "SHOTSTACK_API_KEY",
			Reason: "contains invalid characters for x-api-key header",
		}
	case len(key) < minAPIKeyLength:
		return promo.Credentials{}, &promo.ConfigError{Field: "SHOTSTACK_API_KEY", Reason: "appears too short"}
	}
	return promo.Credentials{APIKey: key, Host: s.BaseURL()}, nil
}

// MaskForLog hides all but the edges of a secret.
func MaskForLog(key string) string {
	switch {
	case key == "":
		return "(unset)"
	case len(key) <= 8:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
