// Package redis caches scrape results in Redis so repeat scrapes of a page skip the browser.
package redis

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/promoforge/internal/promo"
)

const keyPrefix = "promoforge:scrape:"

// Client is the subset of Redis commands the cache uses.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	UseTLS   bool
}

type client struct {
	cli *goredis.Client
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (Client, error) {
	redisOpts := &goredis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.UseTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	c := &client{cli: goredis.NewClient(redisOpts)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return c, nil
}

func (c *client) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *client) Close() error { return c.cli.Close() }

// Cache stores ScrapedAsset values as JSON with a fixed TTL.
type Cache struct {
	client Client
	ttl    time.Duration
}

// New builds a Cache. A non-positive ttl disables expiry.
func New(c Client, ttl time.Duration) *Cache {
	return &Cache{client: c, ttl: ttl}
}

// Get returns the cached asset for key. A miss is (zero, false, nil).
func (c *Cache) Get(ctx context.Context, key string) (promo.ScrapedAsset, bool, error) {
	val, err := c.client.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return promo.ScrapedAsset{}, false, nil
	}
	if err != nil {
		return promo.ScrapedAsset{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var asset promo.ScrapedAsset
	if err := json.Unmarshal([]byte(val), &asset); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next Set.
		return promo.ScrapedAsset{}, false, nil
	}
	return asset, true, nil
}

// Set stores asset under key.
func (c *Cache) Set(ctx context.Context, key string, asset promo.ScrapedAsset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshal scraped asset: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key fingerprints everything in req that changes the scrape result.
func Key(req promo.ScrapeRequest) string {
	h := sha256.New()
	for _, part := range []string{
		req.URL,
		strconv.Itoa(req.ScreenshotCount),
		req.SearchQuery,
		req.SearchSelector,
		req.SubmitSelector,
		strconv.Itoa(req.WaitAfterSearch),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
