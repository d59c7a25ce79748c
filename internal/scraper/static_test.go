package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/promoforge/internal/promo"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

const landingPage = `<!doctype html>
<html>
<head>
  <title>Acme Tasks</title>
  <meta name="description" content="Plan your day">
  <meta name="theme-color" content="#0F766E">
  <meta name="keywords" content="tasks, planning">
  <meta property="og:image" content="/og.png">
  <link rel="icon" href="/favicon.ico">
</head>
<body><h1>Acme</h1></body>
</html>`

func TestStaticScrapeReadsHead(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(landingPage))
	}))
	defer srv.Close()

	now := time.Unix(1700000000, 0).UTC()
	s := NewStatic(StaticConfig{UserAgent: "promoforge-test"}, fixedClock{now})
	asset, err := s.Scrape(context.Background(), promo.ScrapeRequest{URL: srv.URL + "/", ScreenshotCount: 3})
	require.NoError(t, err)

	assert.Equal(t, "promoforge-test", gotUA)
	assert.Equal(t, "Acme Tasks", asset.Title)
	assert.Equal(t, "Plan your day", asset.Description)
	assert.Equal(t, "#0F766E", asset.ThemeColor)
	assert.Equal(t, []string{"tasks", "planning"}, asset.Keywords)
	assert.Equal(t, srv.URL+"/favicon.ico", asset.Logo)
	assert.Equal(t, []string{srv.URL + "/og.png"}, asset.Screenshots)
	assert.Equal(t, EngineStatic, asset.Engine)
	assert.Equal(t, now, asset.Timestamp)

	again, err := s.Scrape(context.Background(), promo.ScrapeRequest{URL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, asset.Title, again.Title)
}

func TestStaticScrapeUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStatic(StaticConfig{}, fixedClock{})
	_, err := s.Scrape(context.Background(), promo.ScrapeRequest{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scrape url")
}

func TestStaticScrapeCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStatic(StaticConfig{}, fixedClock{})
	_, err := s.Scrape(ctx, promo.ScrapeRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}
