// Package creatomate submits template-based slideshow renders to Creatomate.
package creatomate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/promoforge/internal/promo"
)

// Defaults used when the caller leaves them out.
const (
	DefaultBaseURL    = "https://api.creatomate.com/v1"
	DefaultTemplateID = "default-slideshow-template"
	DefaultAspect     = "9:16"

	slideSeconds     = 1.8
	slideTransition  = "fade"
	outputFormat     = "mp4"
	maxResponseBytes = 1 << 20
)

// Config locates and authenticates the Creatomate API.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client calls the Creatomate renders endpoint with bearer auth.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client. A nil httpClient gets a 30s default.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Slide is one template slide.
type Slide struct {
	Image      string  `json:"image"`
	Text       string  `json:"text"`
	Duration   float64 `json:"duration"`
	Transition string  `json:"transition"`
}

// Modifications fill the template's dynamic elements.
type Modifications struct {
	Slides []Slide `json:"slides"`
	Aspect string  `json:"aspect"`
}

// RenderRequest is the body of POST /renders.
type RenderRequest struct {
	TemplateID    string        `json:"template_id"`
	Modifications Modifications `json:"modifications"`
	OutputFormat  string        `json:"output_format"`
}

// Render is one entry of the renders response.
type Render struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// BuildRender maps shots onto template slides. Empty templateID and aspect take the defaults.
func BuildRender(shots []promo.Shot, templateID, aspect string) (RenderRequest, error) {
	if aspect == "" {
		aspect = DefaultAspect
	}
	if err := promo.ValidateShots(shots, aspect); err != nil {
		return RenderRequest{}, err
	}
	if strings.TrimSpace(templateID) == "" {
		templateID = DefaultTemplateID
	}
	slides := make([]Slide, 0, len(shots))
	for _, shot := range shots {
		slides = append(slides, Slide{
			Image:      shot.ImageURL,
			Text:       shot.Caption,
			Duration:   slideSeconds,
			Transition: slideTransition,
		})
	}
	return RenderRequest{
		TemplateID:    templateID,
		Modifications: Modifications{Slides: slides, Aspect: aspect},
		OutputFormat:  outputFormat,
	}, nil
}

// Submit posts req and returns the first render Creatomate queued.
func (c *Client) Submit(ctx context.Context, req RenderRequest) (Render, error) {
	key := strings.TrimSpace(c.cfg.APIKey)
	if key == "" {
		return Render{}, &promo.ConfigError{Field: "CREATOMATE_API_KEY", Reason: "is not set"}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Render{}, fmt.Errorf("encode creatomate render: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/renders", bytes.NewReader(payload))
	if err != nil {
		return Render{}, fmt.Errorf("build creatomate request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Render{}, &promo.TransportError{Op: "POST /renders", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Render{}, &promo.TransportError{Op: "POST /renders", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Render{}, &promo.UpstreamError{Op: "submit render", StatusCode: resp.StatusCode, Body: string(body)}
	}

	renders, err := decodeRenders(body)
	if err != nil || len(renders) == 0 || renders[0].ID == "" {
		return Render{}, &promo.InconsistentUpstreamError{Reason: "no id returned"}
	}
	return renders[0], nil
}

// SubmitSlideshow builds and submits a template render, returning its id.
func (c *Client) SubmitSlideshow(ctx context.Context, shots []promo.Shot, templateID, aspect string) (string, error) {
	req, err := BuildRender(shots, templateID, aspect)
	if err != nil {
		return "", err
	}
	render, err := c.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	return render.ID, nil
}

// decodeRenders accepts both the documented array reply and a single render object.
func decodeRenders(body []byte) ([]Render, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one Render
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode creatomate render: %w", err)
		}
		return []Render{one}, nil
	}
	var many []Render
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, fmt.Errorf("decode creatomate renders: %w", err)
	}
	return many, nil
}
