package promo

import (
	"context"
	"io"
	"time"
)

// BlobStore writes artifacts and returns a URL the rendering service can fetch.
type BlobStore interface {
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes render notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Scraper extracts metadata and screenshots from a URL.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) (ScrapedAsset, error)
}

// ScrapeCache stores scrape results keyed by request fingerprint.
type ScrapeCache interface {
	Get(ctx context.Context, key string) (ScrapedAsset, bool, error)
	Set(ctx context.Context, key string, asset ScrapedAsset) error
}

// RenderLog appends render lifecycle events to an audit trail.
type RenderLog interface {
	Record(ctx context.Context, event RenderEvent) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces opaque unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
