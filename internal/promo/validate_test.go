package promo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestVideoRequestToSpecAppliesDefaults(t *testing.T) {
	t.Parallel()

	spec, err := VideoRequest{
		Title:       "  Acme  ",
		Description: "Ship faster",
		Images:      []string{"https://cdn.example.com/1.jpg"},
	}.ToSpec()
	require.NoError(t, err)

	assert.Equal(t, "Acme", spec.Title)
	assert.Equal(t, float64(DefaultDurationSeconds), spec.DurationSeconds)
	assert.Equal(t, DefaultThemeColor, spec.ThemeColor)
	assert.Equal(t, DefaultMusicVolume, spec.MusicVolume)
	assert.Equal(t, DefaultAspect, spec.Aspect)
}

func TestVideoRequestToSpecKeepsExplicitZeroVolume(t *testing.T) {
	t.Parallel()

	spec, err := VideoRequest{
		Title:       "Acme",
		Description: "d",
		Images:      []string{"https://cdn.example.com/1.jpg"},
		MusicURL:    "https://cdn.example.com/a.mp3",
		MusicVolume: ptr(0.0),
		Duration:    ptr(30.0),
	}.ToSpec()
	require.NoError(t, err)
	assert.Equal(t, 0.0, spec.MusicVolume)
	assert.Equal(t, 30.0, spec.DurationSeconds)
}

func TestVideoRequestToSpecCollectsIssues(t *testing.T) {
	t.Parallel()

	_, err := VideoRequest{
		Duration:    ptr(61.0),
		Images:      []string{"not a url"},
		ThemeColor:  "blue",
		MusicVolume: ptr(1.5),
		Aspect:      "4:3",
	}.ToSpec()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, issue := range verr.Issues {
		fields[issue.Field] = true
	}
	for _, want := range []string{"title", "description", "duration", "images[0]", "themeColor", "musicVolume", "aspect"} {
		assert.True(t, fields[want], "missing issue for %s", want)
	}
}

func TestVideoRequestRequiresImages(t *testing.T) {
	t.Parallel()

	_, err := VideoRequest{Title: "t", Description: "d"}.ToSpec()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "At least one image is required")
}

func TestScrapeRequestNormalize(t *testing.T) {
	t.Parallel()

	req, err := ScrapeRequest{URL: " https://example.com "}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", req.URL)
	assert.Equal(t, DefaultScreenshotCount, req.ScreenshotCount)
	assert.Equal(t, DefaultWaitAfterSearch, req.WaitAfterSearch)

	_, err = ScrapeRequest{URL: "ftp://example.com", ScreenshotCount: 11}.Normalize()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)

	_, err = ScrapeRequest{URL: "https://example.com", SearchQuery: "shoes"}.Normalize()
	require.Error(t, err)
}

func TestValidJobID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidJobID("d2b6c2f1-9c3b-4f7e-8a8e-2f0a5b1c9e11"))
	assert.False(t, ValidJobID(""))
	assert.False(t, ValidJobID("../etc/passwd"))
	assert.False(t, ValidJobID("id with space"))
}

func TestValidateShots(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateShots([]Shot{{ImageURL: "https://x.test/a.png"}}, "9:16"))
	require.Error(t, ValidateShots(nil, ""))
	require.Error(t, ValidateShots([]Shot{{ImageURL: "x"}}, ""))
}

func TestRenderStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusFailed.Terminal())
	for _, s := range []RenderStatus{StatusQueued, StatusFetching, StatusRendering, StatusSaving} {
		assert.False(t, s.Terminal(), string(s))
		assert.True(t, s.Known())
	}
	assert.False(t, RenderStatus("paused").Known())
}

func TestUpstreamErrorNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, (&UpstreamError{StatusCode: 404}).NotFound())
	assert.False(t, (&UpstreamError{StatusCode: 500}).NotFound())
}
