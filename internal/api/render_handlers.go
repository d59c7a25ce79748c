package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/config"
	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/render"
	"github.com/JakeFAU/promoforge/internal/shotstack"
)

// statusResponse is the normalized view of one render job.
type statusResponse struct {
	OK      bool               `json:"ok"`
	JobID   string             `json:"jobId,omitempty"`
	Status  promo.RenderStatus `json:"status,omitempty"`
	URL     string             `json:"url,omitempty"`
	Error   string             `json:"error,omitempty"`
	Hint    string             `json:"hint,omitempty"`
	Outcome render.Outcome     `json:"outcome,omitempty"`
}

func toStatusResponse(job promo.RenderJob) statusResponse {
	return statusResponse{
		OK:     true,
		Status: job.Status,
		URL:    job.URL,
		Error:  job.Error,
		Hint:   job.Hint,
	}
}

// submitRaw forwards {timeline, output, ...} to the rendering service as-is.
func (s *Server) submitRaw(w http.ResponseWriter, r *http.Request) {
	var edit map[string]json.RawMessage
	if err := decodeJSON(r, &edit); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	verr := &promo.ValidationError{}
	for _, field := range []string{"timeline", "output"} {
		if _, ok := edit[field]; !ok {
			verr.Add(field, "is required")
		}
	}
	if err := verr.OrNil(); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}

	resp, err := s.deps.Raw.SubmitRaw(r.Context(), edit)
	if err != nil {
		metrics.ObserveSubmission("error")
		s.writeFailure(w, r, err, "Failed to submit render")
		return
	}
	if !resp.OK() {
		metrics.ObserveSubmission("rejected")
		writeJSON(w, resp.StatusCode, map[string]any{
			"ok":                false,
			"status":            resp.StatusCode,
			"errorFromProvider": resp.Decode().Value(),
		})
		return
	}
	var env shotstack.RenderEnvelope
	if err := resp.DecodeInto(&env); err != nil || env.Response.ID == "" {
		metrics.ObserveSubmission("error")
		s.writeFailure(w, r, &promo.InconsistentUpstreamError{Reason: "no id returned"}, "")
		return
	}
	metrics.ObserveSubmission("ok")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobId": env.Response.ID})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !promo.ValidJobID(id) {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.deps.Renderer.Status(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to check status")
		return
	}
	resp := toStatusResponse(job)
	resp.JobID = id
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req promo.VideoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	spec, err := req.ToSpec()
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	edit, err := shotstack.BuildEdit(spec)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to build timeline")
		return
	}
	s.submitEdit(w, r, edit)
}

type slideshowRequest struct {
	Shots      []promo.Shot `json:"shots"`
	Aspect     string       `json:"aspect"`
	TemplateID string       `json:"templateId"`
}

func (s *Server) generateSlideshow(w http.ResponseWriter, r *http.Request) {
	var req slideshowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	if s.cfg.Render.Provider == config.ProviderCreatomate {
		s.submitTemplate(w, r, req)
		return
	}
	edit, err := shotstack.BuildSlideshow(req.Shots, req.Aspect)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to build timeline")
		return
	}
	s.submitEdit(w, r, edit)
}

// submitTemplate sends the slideshow to the template provider. Its jobs are not polled here.
func (s *Server) submitTemplate(w http.ResponseWriter, r *http.Request, req slideshowRequest) {
	if s.deps.Templates == nil {
		writeError(w, http.StatusServiceUnavailable, "template rendering is not configured")
		return
	}
	id, err := s.deps.Templates.SubmitSlideshow(r.Context(), req.Shots, req.TemplateID, req.Aspect)
	if err != nil {
		var verr *promo.ValidationError
		if !errors.As(err, &verr) {
			metrics.ObserveSubmission("error")
		}
		s.writeFailure(w, r, err, "Failed to submit render")
		return
	}
	metrics.ObserveSubmission("ok")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobId": id, "provider": config.ProviderCreatomate})
}

func (s *Server) submitEdit(w http.ResponseWriter, r *http.Request, edit shotstack.Edit) {
	id, err := s.deps.Renderer.Submit(r.Context(), edit)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to submit render")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobId": id})
}

// promoRequest drives the end-to-end flow: scrape a page, narrate it optionally, render, wait.
type promoRequest struct {
	URL             string   `json:"url"`
	ScreenshotCount int      `json:"screenshotCount"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Duration        *float64 `json:"duration"`
	ThemeColor      string   `json:"themeColor"`
	MusicURL        string   `json:"musicUrl"`
	MusicVolume     *float64 `json:"musicVolume"`
	VoiceoverText   string   `json:"voiceoverText"`
	VoiceID         string   `json:"voiceId"`
	Aspect          string   `json:"aspect"`
}

func (s *Server) promoFlow(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	ctx := r.Context()

	asset, err := s.deps.Scraper.Scrape(ctx, promo.ScrapeRequest{URL: req.URL, ScreenshotCount: req.ScreenshotCount})
	if err != nil {
		s.writeFailure(w, r, err, "Failed to scrape URL")
		return
	}

	video := videoFromAsset(asset, req)
	if req.VoiceoverText != "" {
		if s.deps.Speech == nil {
			writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
			return
		}
		voiceURL, err := s.deps.Speech.Voiceover(ctx, req.VoiceoverText, req.VoiceID)
		if err != nil {
			s.writeFailure(w, r, err, "Failed to generate voiceover")
			return
		}
		video.VoiceoverURL = voiceURL
	}

	spec, err := video.ToSpec()
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	edit, err := shotstack.BuildEdit(spec)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to build timeline")
		return
	}
	job, outcome, err := s.deps.FullFlow.Run(ctx, edit, nil)
	switch outcome {
	case render.OutcomeDone:
		writeJSON(w, http.StatusOK, statusResponse{OK: true, JobID: job.ID, Status: job.Status, URL: job.URL, Outcome: outcome})
	case render.OutcomeFailed:
		writeJSON(w, http.StatusBadGateway, statusResponse{JobID: job.ID, Status: job.Status, Error: job.Error, Outcome: outcome})
	case render.OutcomeCanceled:
		s.logger.Info("promo request abandoned by client", zap.String("job_id", job.ID))
	case render.OutcomeSubmissionFailed:
		s.writeFailure(w, r, err, "Failed to submit render")
	default:
		s.writeFailure(w, r, err, "Failed to render video")
	}
}

// videoFromAsset fills a video request from scraped metadata. Explicit request fields win, and
// scraped values the renderer cannot use are dropped rather than failing validation.
func videoFromAsset(asset promo.ScrapedAsset, req promoRequest) promo.VideoRequest {
	video := promo.VideoRequest{
		Title:       firstNonEmpty(req.Title, asset.Title, hostOf(asset.URL)),
		Description: firstNonEmpty(req.Description, asset.Description),
		Duration:    req.Duration,
		Images:      asset.Screenshots,
		MusicURL:    req.MusicURL,
		MusicVolume: req.MusicVolume,
		Aspect:      req.Aspect,
		ThemeColor:  req.ThemeColor,
	}
	if promo.IsHTTPURL(asset.Logo) {
		video.Logo = asset.Logo
	}
	if video.ThemeColor == "" && promo.ValidHexColor(asset.ThemeColor) {
		video.ThemeColor = asset.ThemeColor
	}
	return video
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
