// Package api exposes the PromoForge HTTP interface.
package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/config"
	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/render"
	"github.com/JakeFAU/promoforge/internal/scraper"
	"github.com/JakeFAU/promoforge/internal/shotstack"
	"github.com/JakeFAU/promoforge/internal/telemetry"
)

// Renderer submits edits and reports render progress.
type Renderer interface {
	Submit(ctx context.Context, edit shotstack.Edit) (string, error)
	Status(ctx context.Context, id string) (promo.RenderJob, error)
	Poll(ctx context.Context, id string, observe func(promo.RenderJob)) (promo.RenderJob, render.Outcome, error)
	Run(ctx context.Context, edit shotstack.Edit, observe func(promo.RenderJob)) (promo.RenderJob, render.Outcome, error)
}

// RawSubmitter forwards a caller-built edit to the rendering service unchanged.
type RawSubmitter interface {
	SubmitRaw(ctx context.Context, edit any) (shotstack.RawResponse, error)
}

// ScrapeService scrapes one or many pages.
type ScrapeService interface {
	Scrape(ctx context.Context, req promo.ScrapeRequest) (promo.ScrapedAsset, error)
	Multi(ctx context.Context, urls []string, screenshotCount int) ([]scraper.MultiResult, error)
}

// TemplateRenderer submits slideshows to a template-based provider.
type TemplateRenderer interface {
	SubmitSlideshow(ctx context.Context, shots []promo.Shot, templateID, aspect string) (string, error)
}

// VoiceoverService synthesizes and stores narration.
type VoiceoverService interface {
	Voiceover(ctx context.Context, text, voiceID string) (string, error)
}

// MediaReader serves stored blobs back over HTTP.
type MediaReader interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Deps are the collaborators behind the HTTP handlers. Templates, Speech and Media may be nil.
type Deps struct {
	Renderer  Renderer
	FullFlow  Renderer
	Raw       RawSubmitter
	Templates TemplateRenderer
	Scraper   ScrapeService
	Speech    VoiceoverService
	Blobs     promo.BlobStore
	Media     MediaReader
	Clock     promo.Clock
}

// Server wires HTTP handlers to the render workflow, scraper and blob storage.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.FullFlow == nil {
		deps.FullFlow = deps.Renderer
	}
	s := &Server{deps: deps, cfg: cfg, logger: logger}

	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 360 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}

		// Streams need the raw connection and the promo flow is bounded by its own poll attempts,
		// so neither sits behind the request timeout.
		r.Get("/status/{id}/stream", s.streamStatus)
		r.Post("/promo", s.promoFlow)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))

			r.Post("/render", s.submitRaw)
			r.Get("/status/{id}", s.getStatus)
			r.Post("/generate", s.generate)
			r.Post("/generate/slideshow", s.generateSlideshow)
			r.Post("/scrape", s.scrape)
			r.Post("/scrape/multiple", s.scrapeMultiple)
			r.Post("/tts", s.tts)
			r.Get("/tts/voices", s.voices)
			r.Post("/upload/screenshots", s.uploadScreenshots)
			r.Post("/upload/music", s.uploadMusic)
			r.Get("/media/*", s.media)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.cfg.Shotstack.Credentials(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// health reports which rendering host is in use and a masked form of the key.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	creds, err := s.cfg.Shotstack.Credentials()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"host":      creds.Host,
		"keyMasked": config.MaskForLog(creds.APIKey),
	})
}

func (s *Server) now() time.Time {
	if s.deps.Clock == nil {
		return time.Now().UTC()
	}
	return s.deps.Clock.Now()
}

// decodeJSON reads a JSON body into dst. Unknown fields are tolerated.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		verr := &promo.ValidationError{}
		verr.Add("body", "invalid JSON")
		return verr
	}
	return nil
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", requestID(r.Context())),
				zap.String("trace_id", telemetry.TraceID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("request_id", requestID(r.Context())),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"ok":false,"error":"request timed out"}`)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		rw.status = http.StatusSwitchingProtocols
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
