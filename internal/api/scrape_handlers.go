package api

import (
	"net/http"

	"github.com/JakeFAU/promoforge/internal/promo"
)

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req promo.ScrapeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	asset, err := s.deps.Scraper.Scrape(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to scrape URL")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": asset})
}

type scrapeMultipleRequest struct {
	URLs            []string `json:"urls"`
	ScreenshotCount int      `json:"screenshotCount"`
}

type scrapeFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// scrapeMultiple returns the pages that scraped successfully, in request order, and lists the
// rest under failures.
func (s *Server) scrapeMultiple(w http.ResponseWriter, r *http.Request) {
	var req scrapeMultipleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	results, err := s.deps.Scraper.Multi(r.Context(), req.URLs, req.ScreenshotCount)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to scrape URLs")
		return
	}
	data := make([]promo.ScrapedAsset, 0, len(results))
	failures := make([]scrapeFailure, 0)
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, scrapeFailure{URL: res.URL, Error: s.sanitize(res.Err, "Failed to scrape URL")})
			continue
		}
		data = append(data, res.Asset)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"data":     data,
		"count":    len(data),
		"failures": failures,
	})
}
