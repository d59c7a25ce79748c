package promo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	jobIDPattern    = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)
)

// Limits enforced on client input.
const (
	MinDurationSeconds     = 5
	MaxDurationSeconds     = 60
	MaxScreenshots         = 10
	DefaultScreenshotCount = 3
	DefaultWaitAfterSearch = 3000
	MaxWaitAfterSearch     = 10000
	MaxScrapeURLs          = 10
)

// VideoRequest is the raw client payload for a promo video. Pointer fields
// distinguish "omitted" from zero so defaults can be applied.
type VideoRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Duration     *float64 `json:"duration"`
	Images       []string `json:"images"`
	Logo         string   `json:"logo"`
	ThemeColor   string   `json:"themeColor"`
	MusicURL     string   `json:"musicUrl"`
	MusicVolume  *float64 `json:"musicVolume"`
	VoiceoverURL string   `json:"voiceoverUrl"`
	Aspect       string   `json:"aspect"`
}

// ToSpec validates the request and returns the immutable VideoSpec.
func (r VideoRequest) ToSpec() (VideoSpec, error) {
	verr := &ValidationError{}
	spec := VideoSpec{
		Title:           strings.TrimSpace(r.Title),
		Description:     strings.TrimSpace(r.Description),
		DurationSeconds: DefaultDurationSeconds,
		Logo:            r.Logo,
		ThemeColor:      DefaultThemeColor,
		MusicURL:        r.MusicURL,
		MusicVolume:     DefaultMusicVolume,
		VoiceoverURL:    r.VoiceoverURL,
		Aspect:          DefaultAspect,
	}
	if spec.Title == "" {
		verr.Add("title", "Title is required")
	}
	if spec.Description == "" {
		verr.Add("description", "Description is required")
	}
	if r.Duration != nil {
		if *r.Duration < MinDurationSeconds || *r.Duration > MaxDurationSeconds {
			verr.Add("duration", fmt.Sprintf("must be between %d and %d", MinDurationSeconds, MaxDurationSeconds))
		}
		spec.DurationSeconds = *r.Duration
	}
	if len(r.Images) == 0 {
		verr.Add("images", "At least one image is required")
	}
	for i, img := range r.Images {
		if !IsHTTPURL(img) {
			verr.Add(fmt.Sprintf("images[%d]", i), "must be a valid URL")
		}
	}
	spec.Images = append([]string(nil), r.Images...)
	if r.Logo != "" && !IsHTTPURL(r.Logo) {
		verr.Add("logo", "must be a valid URL")
	}
	if r.ThemeColor != "" {
		if !ValidHexColor(r.ThemeColor) {
			verr.Add("themeColor", "Theme color must be a valid hex color")
		}
		spec.ThemeColor = r.ThemeColor
	}
	if r.MusicURL != "" && !IsHTTPURL(r.MusicURL) {
		verr.Add("musicUrl", "must be a valid URL")
	}
	if r.VoiceoverURL != "" && !IsHTTPURL(r.VoiceoverURL) {
		verr.Add("voiceoverUrl", "must be a valid URL")
	}
	if r.MusicVolume != nil {
		if *r.MusicVolume < 0 || *r.MusicVolume > 1 {
			verr.Add("musicVolume", "must be between 0 and 1")
		}
		spec.MusicVolume = *r.MusicVolume
	}
	if r.Aspect != "" {
		if !ValidAspect(r.Aspect) {
			verr.Add("aspect", "must be one of 9:16, 1:1, 16:9")
		}
		spec.Aspect = r.Aspect
	}
	if err := verr.OrNil(); err != nil {
		return VideoSpec{}, err
	}
	return spec, nil
}

// ValidateShots checks a slideshow request.
func ValidateShots(shots []Shot, aspect string) error {
	verr := &ValidationError{}
	if len(shots) == 0 {
		verr.Add("shots", "At least one shot is required")
	}
	for i, shot := range shots {
		if !IsHTTPURL(shot.ImageURL) {
			verr.Add(fmt.Sprintf("shots[%d].imageUrl", i), "Must be a valid URL")
		}
	}
	if aspect != "" && !ValidAspect(aspect) {
		verr.Add("aspect", "must be one of 9:16, 1:1, 16:9")
	}
	return verr.OrNil()
}

// Normalize validates a scrape request and fills in defaults.
func (r ScrapeRequest) Normalize() (ScrapeRequest, error) {
	verr := &ValidationError{}
	out := r
	out.URL = strings.TrimSpace(r.URL)
	if !IsHTTPURL(out.URL) {
		verr.Add("url", "Please enter a valid app URL")
	}
	if out.ScreenshotCount == 0 {
		out.ScreenshotCount = DefaultScreenshotCount
	}
	if out.ScreenshotCount < 1 || out.ScreenshotCount > MaxScreenshots {
		verr.Add("screenshotCount", fmt.Sprintf("must be between 1 and %d", MaxScreenshots))
	}
	if out.WaitAfterSearch == 0 {
		out.WaitAfterSearch = DefaultWaitAfterSearch
	}
	if out.WaitAfterSearch < 0 || out.WaitAfterSearch > MaxWaitAfterSearch {
		verr.Add("waitAfterSearch", fmt.Sprintf("must be between 0 and %d", MaxWaitAfterSearch))
	}
	if out.SearchQuery != "" && out.SearchSelector == "" {
		verr.Add("searchSelector", "required when searchQuery is set")
	}
	if err := verr.OrNil(); err != nil {
		return ScrapeRequest{}, err
	}
	return out, nil
}

// ValidJobID reports whether id is shaped like a rendering-service job id.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// ValidAspect reports whether aspect is a supported output aspect ratio.
func ValidAspect(aspect string) bool {
	switch aspect {
	case "9:16", "1:1", "16:9":
		return true
	default:
		return false
	}
}

// IsHTTPURL reports whether raw is an absolute http(s) URL with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidHexColor reports whether c is a #RRGGBB color.
func ValidHexColor(c string) bool {
	return hexColorPattern.MatchString(c)
}
