// Package speech synthesizes voiceover audio with ElevenLabs and stores it as a blob.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/promoforge/internal/promo"
)

const maxAudioBytes = 50 << 20

// PermissionMessage is returned when the API key lacks text-to-speech rights.
const PermissionMessage = "ElevenLabs API key is missing required permissions. " +
	"Please create a new API key with full TTS permissions at https://elevenlabs.io/app/settings/api-keys"

// ErrPermission marks a 401 or missing_permissions response.
var ErrPermission = errors.New(PermissionMessage)

// ErrUnconfigured marks a synthesis attempt without an API key.
var ErrUnconfigured = errors.New("speech synthesis is not configured")

// Config configures the ElevenLabs client.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// ElevenLabs calls the text-to-speech endpoint.
type ElevenLabs struct {
	cfg        Config
	httpClient *http.Client
}

// NewElevenLabs builds a client. A nil httpClient gets one with cfg.Timeout (default 60s).
func NewElevenLabs(cfg Config, httpClient *http.Client) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_monolingual_v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &ElevenLabs{cfg: cfg, httpClient: httpClient}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize returns MPEG audio for text spoken by voiceID.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: %w", ErrUnconfigured, &promo.ConfigError{Field: "ELEVENLABS_API_KEY", Reason: "is not set"})
	}
	payload, err := json.Marshal(synthesisRequest{Text: text, ModelID: e.cfg.ModelID})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}
	endpoint := e.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("xi-api-key", strings.TrimSpace(e.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &promo.TransportError{Op: "POST /v1/text-to-speech", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, &promo.TransportError{Op: "POST /v1/text-to-speech", Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized || bytes.Contains(body, []byte("missing_permissions")) {
		return nil, ErrPermission
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &promo.UpstreamError{Op: "synthesize speech", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
