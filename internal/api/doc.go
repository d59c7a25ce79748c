// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /health, /healthz, /readyz for operators and probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /render, /generate, /generate/slideshow to submit renders.
//   - GET /status/{id} for one status read, /status/{id}/stream for a websocket feed.
//   - POST /promo for scrape, render and wait in one call.
//   - POST /scrape, /scrape/multiple, /tts and the upload endpoints.
package api
