// Package main hosts the PromoForge service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, render submission, status (one-shot and
//     websocket stream), the end-to-end /promo flow, scraping, text-to-speech and media uploads.
//   - Rendering: internal/render.Workflow submits timelines built by internal/shotstack and polls the
//     job until it is done, failed or out of attempts. The status route and the /promo flow use
//     separate polling constants from config. Slideshows can go to Creatomate templates instead
//     when render.provider is creatomate.
//   - Scraping: internal/scraper runs a chromedp engine (screenshots while scrolling, optional search
//     interaction) or a colly engine when no browser is available. A per-host rate limiter and an
//     optional Redis cache sit in front of either engine.
//   - Persistence & fanout: screenshots, uploads and voiceovers go to the configured BlobStore
//     (memory/local/GCS). Render lifecycle events are optionally written to Postgres, and a
//     render-finished notification is published when a Pub/Sub topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files (a local .env is loaded first);
//     zap provides structured logging; Prometheus metrics are exported at /metrics; OpenTelemetry
//     propagates trace context through inbound requests, outbound calls and Pub/Sub attributes.
//
// Operational notes:
//   - Rendering-service credentials are validated lazily: a missing or malformed SHOTSTACK_API_KEY
//     fails /health and the render routes, not startup. Run with -check-env to validate it up front.
//   - Headless scrapes are bounded by scraper.max_parallel. If Chrome cannot be started the service
//     falls back to the static engine and logs a warning.
//   - The process reacts to SIGINT/SIGTERM by draining the HTTP server and closing every backend.
//
// Quick checklist:
//   - Configure env vars: SHOTSTACK_API_KEY, SHOTSTACK_API_ENV or SHOTSTACK_HOST, ELEVENLABS_API_KEY,
//     VIDEO_PROVIDER and CREATOMATE_API_KEY, PORT, and PROMOFORGE_* for everything else
//     (e.g. PROMOFORGE_STORAGE_BACKEND=gcs).
//   - Run locally: go run ./cmd/promoforge -config config.yaml (or rely solely on env overrides).
//   - Validate credentials: go run ./cmd/promoforge -check-env
package main
