// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

const publicHost = "https://storage.googleapis.com"

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// PublicBaseURL replaces https://storage.googleapis.com/<bucket> in returned URLs,
	// e.g. for a CDN in front of the bucket.
	PublicBaseURL string
}

// BlobStore writes media to a configured GCS bucket. The bucket must be readable by the
// rendering service, since the returned URLs are handed to it as asset sources.
type BlobStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = publicHost + "/" + cfg.Bucket
	}
	return &BlobStore{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

// PutObject uploads data and returns its public URL.
func (s *BlobStore) PutObject(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = "public, max-age=3600"
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return "", fmt.Errorf("copy object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the URL at which key is served.
func (s *BlobStore) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}
