package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/promoforge/internal/promo"
)

// StaticConfig controls the HTTP-only scraper.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Static scrapes page metadata over plain HTTP without a browser. It cannot take
// screenshots; the page's og:image stands in as the single screenshot when present.
type Static struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
	clock         promo.Clock
}

// NewStatic builds a Static scraper.
func NewStatic(cfg StaticConfig, clock promo.Clock) *Static {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Static{cfg: cfg, baseCollector: c, clock: clock}
}

// Name identifies the engine.
func (s *Static) Name() string { return EngineStatic }

// Scrape fetches req.URL and reads its head metadata. Search fields are ignored.
func (s *Static) Scrape(ctx context.Context, req promo.ScrapeRequest) (promo.ScrapedAsset, error) {
	var (
		meta     pageMeta
		finalURL string
		fetchErr error
	)
	collector := s.baseCollector.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
	})
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		meta = pageMeta{
			Title:          e.ChildText("head > title"),
			Description:    e.ChildAttr(`meta[name="description"]`, "content"),
			OGDescription:  e.ChildAttr(`meta[property="og:description"]`, "content"),
			ThemeColor:     e.ChildAttr(`meta[name="theme-color"]`, "content"),
			Icon:           e.ChildAttr(`link[rel="icon"]`, "href"),
			AppleTouchIcon: e.ChildAttr(`link[rel="apple-touch-icon"]`, "href"),
			Keywords:       e.ChildAttr(`meta[name="keywords"]`, "content"),
			OGImage:        e.ChildAttr(`meta[property="og:image"]`, "content"),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := runCollector(ctx, collector, req.URL, &fetchErr); err != nil {
		return promo.ScrapedAsset{}, err
	}
	if finalURL == "" {
		finalURL = req.URL
	}
	var screenshots []string
	if meta.OGImage != "" {
		screenshots = []string{absolute(finalURL, meta.OGImage)}
	}
	return buildAsset(req.URL, finalURL, meta, screenshots, EngineStatic, s.clock.Now()), nil
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("static scrape canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to scrape url: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("failed to scrape url: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
