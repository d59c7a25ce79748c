package scraper

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
)

const metaScript = `(() => {
  const attr = (sel, name) => {
    const el = document.querySelector(sel);
    return el ? (el.getAttribute(name) || "") : "";
  };
  return {
    title: document.title || "",
    description: attr('meta[name="description"]', "content"),
    ogDescription: attr('meta[property="og:description"]', "content"),
    themeColor: attr('meta[name="theme-color"]', "content"),
    icon: attr('link[rel="icon"]', "href"),
    appleTouchIcon: attr('link[rel="apple-touch-icon"]', "href"),
    keywords: attr('meta[name="keywords"]', "content"),
    ogImage: attr('meta[property="og:image"]', "content"),
  };
})()`

// HeadlessConfig controls the browser-backed scraper.
type HeadlessConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	Settle            time.Duration
	ScrollDelay       time.Duration
	JPEGQuality       int
}

// Headless scrapes pages with headless Chrome and uploads viewport screenshots.
type Headless struct {
	cfg         HeadlessConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	blobs       promo.BlobStore
	ids         promo.IDGenerator
	clock       promo.Clock
}

// NewHeadless creates a headless scraper. Chrome is started lazily on the first scrape.
func NewHeadless(cfg HeadlessConfig, blobs promo.BlobStore, ids promo.IDGenerator, clock promo.Clock) (*Headless, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if blobs == nil || ids == nil || clock == nil {
		return nil, fmt.Errorf("blob store, id generator and clock are required")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1920, 1080
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Headless{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		blobs:       blobs,
		ids:         ids,
		clock:       clock,
	}, nil
}

// Close stops the browser.
func (h *Headless) Close() {
	h.allocCancel()
}

// Name identifies the engine.
func (h *Headless) Name() string { return EngineHeadless }

// Scrape loads req.URL, optionally runs a search, reads the head metadata and captures
// req.ScreenshotCount viewport screenshots at evenly spaced scroll positions.
func (h *Headless) Scrape(ctx context.Context, req promo.ScrapeRequest) (promo.ScrapedAsset, error) {
	if err := h.acquire(ctx); err != nil {
		return promo.ScrapedAsset{}, err
	}
	defer h.release()

	taskCtx, taskCancel := chromedp.NewContext(h.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, h.budget(req))
	defer cancel()

	var (
		meta     pageMeta
		finalURL string
		shots    [][]byte
	)
	actions := []chromedp.Action{
		h.setupAction(),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(h.cfg.Settle),
	}
	actions = append(actions, searchActions(req)...)
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.Evaluate(metaScript, &meta),
	)
	for i, pos := range scrollPositions(req.ScreenshotCount) {
		if i > 0 {
			var scrolled bool
			actions = append(actions,
				chromedp.Evaluate(fmt.Sprintf(
					"window.scrollTo(0, document.documentElement.scrollHeight * %f); true", pos), &scrolled),
				chromedp.Sleep(h.cfg.ScrollDelay),
			)
		}
		actions = append(actions, h.captureAction(&shots))
	}

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return promo.ScrapedAsset{}, fmt.Errorf("scrape %s canceled: %w", req.URL, ctx.Err())
		}
		return promo.ScrapedAsset{}, fmt.Errorf("failed to scrape url: %w", err)
	}

	urls, err := h.upload(ctx, shots)
	if err != nil {
		return promo.ScrapedAsset{}, err
	}
	if finalURL == "" {
		finalURL = req.URL
	}
	return buildAsset(req.URL, finalURL, meta, urls, EngineHeadless, h.clock.Now()), nil
}

func (h *Headless) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if h.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(h.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		err := emulation.SetDeviceMetricsOverride(int64(h.cfg.ViewportWidth), int64(h.cfg.ViewportHeight), 1, false).Do(ctx)
		if err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		return nil
	})
}

func (h *Headless) captureAction(out *[][]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(h.cfg.JPEGQuality)).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		*out = append(*out, buf)
		return nil
	})
}

// searchActions types the query into the search field and submits it, by clicking the submit
// selector when given and pressing Enter otherwise.
func searchActions(req promo.ScrapeRequest) []chromedp.Action {
	if req.SearchQuery == "" || req.SearchSelector == "" {
		return nil
	}
	actions := []chromedp.Action{
		chromedp.WaitVisible(req.SearchSelector, chromedp.ByQuery),
		chromedp.SendKeys(req.SearchSelector, req.SearchQuery, chromedp.ByQuery),
	}
	if req.SubmitSelector != "" {
		actions = append(actions, chromedp.Click(req.SubmitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.SendKeys(req.SearchSelector, kb.Enter, chromedp.ByQuery))
	}
	return append(actions, chromedp.Sleep(time.Duration(req.WaitAfterSearch)*time.Millisecond))
}

func (h *Headless) upload(ctx context.Context, shots [][]byte) ([]string, error) {
	batch, err := h.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("screenshot batch id: %w", err)
	}
	stamp := h.clock.Now().UnixMilli()
	urls := make([]string, 0, len(shots))
	for i, shot := range shots {
		key := screenshotKey(stamp, batch, i)
		u, err := h.blobs.PutObject(ctx, key, "image/jpeg", bytes.NewReader(shot))
		if err != nil {
			return nil, fmt.Errorf("upload screenshot %d: %w", i, err)
		}
		metrics.ObserveUpload("screenshot")
		urls = append(urls, u)
	}
	return urls, nil
}

func screenshotKey(stamp int64, batch string, i int) string {
	return fmt.Sprintf("screenshots/%d-%s-%d.jpg", stamp, batch, i)
}

// budget bounds a whole scrape: navigation plus settle, search wait and one scroll per shot.
func (h *Headless) budget(req promo.ScrapeRequest) time.Duration {
	budget := h.cfg.NavigationTimeout + h.cfg.Settle
	if req.SearchQuery != "" {
		budget += time.Duration(req.WaitAfterSearch)*time.Millisecond + 10*time.Second
	}
	return budget + time.Duration(req.ScreenshotCount)*(h.cfg.ScrollDelay+5*time.Second)
}

func (h *Headless) acquire(ctx context.Context) error {
	if h.limiter == nil {
		return nil
	}
	select {
	case h.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (h *Headless) release() {
	if h.limiter == nil {
		return
	}
	select {
	case <-h.limiter:
	default:
	}
}
