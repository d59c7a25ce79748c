package scraper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
)

// Engine is one scrape implementation.
type Engine interface {
	promo.Scraper
	Name() string
}

// Throttle delays outbound requests per host.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// KeyFunc derives a cache key from a normalized request.
type KeyFunc func(promo.ScrapeRequest) string

// Service validates scrape requests and runs them through the throttle, cache and engine.
type Service struct {
	engine   Engine
	throttle Throttle
	cache    promo.ScrapeCache
	key      KeyFunc
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithThrottle installs a per-host throttle.
func WithThrottle(t Throttle) Option {
	return func(s *Service) { s.throttle = t }
}

// WithCache caches successful scrapes under key(req).
func WithCache(c promo.ScrapeCache, key KeyFunc) Option {
	return func(s *Service) {
		s.cache = c
		s.key = key
	}
}

// NewService wraps engine.
func NewService(engine Engine, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{engine: engine, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine reports the name of the configured engine.
func (s *Service) Engine() string { return s.engine.Name() }

// Scrape normalizes req and scrapes it. Validation failures are *promo.ValidationError.
func (s *Service) Scrape(ctx context.Context, req promo.ScrapeRequest) (promo.ScrapedAsset, error) {
	req, err := req.Normalize()
	if err != nil {
		return promo.ScrapedAsset{}, err
	}
	return s.scrape(ctx, req)
}

func (s *Service) scrape(ctx context.Context, req promo.ScrapeRequest) (promo.ScrapedAsset, error) {
	engine := s.engine.Name()
	logger := s.logger.With(zap.String("url", req.URL), zap.String("engine", engine))

	var key string
	if s.cache != nil && s.key != nil {
		key = s.key(req)
		asset, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn("scrape cache read failed", zap.Error(err))
		case ok:
			metrics.ObserveScrape(engine, "cached")
			logger.Debug("scrape cache hit")
			return asset, nil
		}
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx, req.URL); err != nil {
			metrics.ObserveScrape(engine, "canceled")
			return promo.ScrapedAsset{}, err
		}
	}

	asset, err := s.engine.Scrape(ctx, req)
	if err != nil {
		status := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = "canceled"
		}
		metrics.ObserveScrape(engine, status)
		logger.Warn("scrape failed", zap.Error(err))
		return promo.ScrapedAsset{}, err
	}
	metrics.ObserveScrape(engine, "ok")
	logger.Info("scrape complete",
		zap.String("title", asset.Title),
		zap.Int("screenshots", len(asset.Screenshots)),
	)

	if key != "" {
		if err := s.cache.Set(ctx, key, asset); err != nil {
			logger.Warn("scrape cache write failed", zap.Error(err))
		}
	}
	return asset, nil
}

// MultiResult is the outcome of one URL in a batch.
type MultiResult struct {
	URL   string
	Asset promo.ScrapedAsset
	Err   error
}

// Multi scrapes urls sequentially with the same screenshot count and returns one result per
// url, in input order. A failing url does not stop the batch; cancellation does.
func (s *Service) Multi(ctx context.Context, urls []string, screenshotCount int) ([]MultiResult, error) {
	verr := &promo.ValidationError{}
	if len(urls) == 0 || len(urls) > promo.MaxScrapeURLs {
		verr.Add("urls", fmt.Sprintf("must contain between 1 and %d URLs", promo.MaxScrapeURLs))
	}
	reqs := make([]promo.ScrapeRequest, 0, len(urls))
	for i, u := range urls {
		req, err := promo.ScrapeRequest{URL: u, ScreenshotCount: screenshotCount}.Normalize()
		if err != nil {
			var v *promo.ValidationError
			if errors.As(err, &v) {
				for _, issue := range v.Issues {
					verr.Add(fmt.Sprintf("urls[%d].%s", i, issue.Field), issue.Message)
				}
				continue
			}
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	results := make([]MultiResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("scrape batch canceled: %w", err)
		}
		asset, err := s.scrape(ctx, req)
		results = append(results, MultiResult{URL: req.URL, Asset: asset, Err: err})
	}
	return results, nil
}
