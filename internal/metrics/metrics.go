// Package metrics exposes Prometheus collectors for the PromoForge service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	rendersSubmittedTotal      *prometheus.CounterVec
	renderOutcomesTotal        *prometheus.CounterVec
	renderPollAttempts         prometheus.Histogram
	scrapesTotal               *prometheus.CounterVec
	scrapeThrottleSeconds      *prometheus.HistogramVec
	uploadsTotal               *prometheus.CounterVec
	speechRequestsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeStreams              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
		rendersSubmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_renders_submitted_total",
				Help: "Render submissions, labeled by result (ok, rejected, error).",
			},
			[]string{"result"},
		)

		renderOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_render_outcomes_total",
				Help: "Terminal outcomes of polled renders.",
			},
			[]string{"outcome"},
		)

		renderPollAttempts = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "promoforge_render_poll_attempts",
				Help:    "Number of status reads made before a poll loop ended.",
				Buckets: []float64{1, 2, 4, 8, 15, 30, 60},
			},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_scrapes_total",
				Help: "Page scrapes, labeled by engine and status.",
			},
			[]string{"engine", "status"},
		)

		scrapeThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promoforge_scrape_throttle_seconds",
				Help:    "Histogram of per-host throttle waits before a scrape.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		uploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_uploads_total",
				Help: "Objects written to blob storage, labeled by kind.",
			},
			[]string{"kind"},
		)

		speechRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_speech_requests_total",
				Help: "Text-to-speech requests, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		activeStreams = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promoforge_active_status_streams",
				Help: "Number of websocket status streams currently open.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname for use as a label.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveSubmission counts a render submission.
func ObserveSubmission(result string) {
	Init()
	rendersSubmittedTotal.WithLabelValues(result).Inc()
}

// ObserveRenderOutcome counts a finished poll loop and how many reads it took.
func ObserveRenderOutcome(outcome string, attempts int) {
	Init()
	renderOutcomesTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		renderPollAttempts.Observe(float64(attempts))
	}
}

// ObserveScrape counts a scrape by engine and status.
func ObserveScrape(engine, status string) {
	Init()
	scrapesTotal.WithLabelValues(engine, status).Inc()
}

// ObserveThrottleDelay records how long a scrape waited on its host limiter.
func ObserveThrottleDelay(host string, duration time.Duration) {
	Init()
	scrapeThrottleSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveUpload counts an object written to blob storage.
func ObserveUpload(kind string) {
	Init()
	uploadsTotal.WithLabelValues(kind).Inc()
}

// ObserveSpeech counts a text-to-speech call.
func ObserveSpeech(status string) {
	Init()
	speechRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveStreams increments the open status stream gauge.
func IncActiveStreams() {
	Init()
	activeStreams.Inc()
}

// DecActiveStreams decrements the open status stream gauge.
func DecActiveStreams() {
	Init()
	activeStreams.Dec()
}
