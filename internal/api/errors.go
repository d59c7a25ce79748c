package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/shotstack"
	"github.com/JakeFAU/promoforge/internal/speech"
)

const transportMessage = "Failed to reach an external service"

// writeFailure maps the error taxonomy onto a response. Upstream errors carry the provider's
// status and body; other internals are reduced to fallback unless verbose errors are enabled.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		verr      *promo.ValidationError
		cfgErr    *promo.ConfigError
		upstream  *promo.UpstreamError
		timeout   *promo.TimeoutError
		transport *promo.TransportError
		odd       *promo.InconsistentUpstreamError
	)
	logger := s.logger.With(zap.String("path", r.URL.Path), zap.String("request_id", requestID(r.Context())))

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":      false,
			"error":   "Validation failed",
			"details": verr.Issues,
		})
	case errors.Is(err, speech.ErrUnconfigured):
		msg := speech.ErrUnconfigured.Error()
		if errors.As(err, &cfgErr) {
			msg = cfgErr.Error()
		}
		writeError(w, http.StatusServiceUnavailable, msg)
	case errors.As(err, &cfgErr):
		logger.Error("configuration error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, cfgErr.Error())
	case errors.As(err, &upstream):
		logger.Warn("upstream error", zap.Int("upstream_status", upstream.StatusCode), zap.String("body", upstream.Body))
		writeJSON(w, upstreamStatus(upstream), map[string]any{
			"ok":                false,
			"status":            upstream.StatusCode,
			"error":             upstreamMessage(upstream),
			"errorFromProvider": providerBody(upstream.Body),
		})
	case errors.As(err, &timeout):
		writeJSON(w, http.StatusGatewayTimeout, map[string]any{
			"ok":    false,
			"jobId": timeout.JobID,
			"error": timeout.Error(),
		})
	case errors.As(err, &odd):
		logger.Warn("inconsistent upstream response", zap.Error(err))
		writeError(w, http.StatusBadGateway, odd.Error())
	case errors.As(err, &transport):
		logger.Error("transport failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, s.sanitize(err, transportMessage))
	case errors.Is(err, speech.ErrPermission):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, s.sanitize(err, "request timed out"))
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, s.sanitize(err, fallback))
	}
}

func (s *Server) sanitize(err error, fallback string) string {
	if s.cfg.Errors.Verbose {
		return err.Error()
	}
	return fallback
}

// upstreamStatus is 404 for unknown ids, the provider's own 4xx for submissions it rejected,
// and 502 for everything else.
func upstreamStatus(e *promo.UpstreamError) int {
	switch {
	case e.NotFound():
		return http.StatusNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500 && e.Op == "submit render":
		return e.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func upstreamMessage(e *promo.UpstreamError) string {
	if e.NotFound() {
		return "Render job not found"
	}
	return "Rendering service returned an error"
}

func providerBody(body string) any {
	return shotstack.RawResponse{Body: []byte(body)}.Decode().Value()
}
