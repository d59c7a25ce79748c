// Package promo defines the core types shared across PromoForge subsystems.
package promo

import "time"

// RenderStatus is the status string reported by the rendering service for a job.
type RenderStatus string

// Render status values reported upstream.
const (
	StatusQueued    RenderStatus = "queued"
	StatusFetching  RenderStatus = "fetching"
	StatusRendering RenderStatus = "rendering"
	StatusSaving    RenderStatus = "saving"
	StatusDone      RenderStatus = "done"
	StatusFailed    RenderStatus = "failed"
)

// Terminal reports whether no further transition can happen after s.
func (s RenderStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Known reports whether s is one of the documented upstream statuses.
func (s RenderStatus) Known() bool {
	switch s {
	case StatusQueued, StatusFetching, StatusRendering, StatusSaving, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// RenderJob is the locally observed state of one render on the rendering service.
// It is only ever produced by status reads; the client never mutates it.
type RenderJob struct {
	ID      string       `json:"id"`
	Status  RenderStatus `json:"status"`
	URL     string       `json:"url,omitempty"`
	Error   string       `json:"error,omitempty"`
	Hint    string       `json:"hint,omitempty"`
	Attempt int          `json:"attempt,omitempty"`
}

// Defaults applied to video requests that omit optional fields.
const (
	DefaultDurationSeconds = 15
	DefaultThemeColor      = "#3B82F6"
	DefaultMusicVolume     = 0.5
	DefaultAspect          = "16:9"
)

// VideoSpec is the validated, immutable input of the timeline builder.
type VideoSpec struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DurationSeconds float64  `json:"duration"`
	Images          []string `json:"images"`
	Logo            string   `json:"logo,omitempty"`
	ThemeColor      string   `json:"themeColor"`
	MusicURL        string   `json:"musicUrl,omitempty"`
	MusicVolume     float64  `json:"musicVolume"`
	VoiceoverURL    string   `json:"voiceoverUrl,omitempty"`
	Aspect          string   `json:"aspect,omitempty"`
}

// Shot is one slide of a caption slideshow.
type Shot struct {
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption,omitempty"`
}

// ScrapeRequest captures everything needed to scrape a page.
type ScrapeRequest struct {
	URL             string `json:"url"`
	ScreenshotCount int    `json:"screenshotCount,omitempty"`
	SearchQuery     string `json:"searchQuery,omitempty"`
	SearchSelector  string `json:"searchSelector,omitempty"`
	SubmitSelector  string `json:"submitSelector,omitempty"`
	WaitAfterSearch int    `json:"waitAfterSearch,omitempty"`
}

// ScrapedAsset is the metadata and imagery extracted from a page.
type ScrapedAsset struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Screenshots []string  `json:"screenshots"`
	Logo        string    `json:"logo,omitempty"`
	ThemeColor  string    `json:"themeColor,omitempty"`
	Keywords    []string  `json:"keywords"`
	Engine      string    `json:"engine"`
	Timestamp   time.Time `json:"timestamp"`
}

// Credentials authenticate calls to the rendering service.
type Credentials struct {
	APIKey string
	Host   string
}

// RenderEvent is one audit row describing a render lifecycle transition.
type RenderEvent struct {
	JobID      string       `json:"job_id"`
	Event      string       `json:"event"`
	Status     RenderStatus `json:"status,omitempty"`
	URL        string       `json:"url,omitempty"`
	Error      string       `json:"error,omitempty"`
	Title      string       `json:"title,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// RenderFinished is the notification payload published when polling reaches an outcome.
type RenderFinished struct {
	JobID      string       `json:"job_id"`
	Outcome    string       `json:"outcome"`
	Status     RenderStatus `json:"status,omitempty"`
	URL        string       `json:"url,omitempty"`
	Error      string       `json:"error,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
}
