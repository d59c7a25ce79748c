// Package memory stores blob content in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// BlobStore keeps objects in a map. URLs are only fetchable by the rendering service when
// baseURL points at a publicly reachable /media route of this process.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// NewBlobStore creates a new in-memory blob store. An empty baseURL yields memory:// URIs.
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PutObject stores the content and returns its URL.
func (s *BlobStore) PutObject(_ context.Context, key string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: byteData, contentType: contentType}
	if s.baseURL == "" {
		return "memory://" + key, nil
	}
	return s.baseURL + "/" + key, nil
}

// Get returns a copy of a stored object.
func (s *BlobStore) Get(_ context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("object %s: %w", key, os.ErrNotExist)
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Keys lists stored keys in no particular order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
