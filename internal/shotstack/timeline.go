// Package shotstack talks to the Shotstack Edit API: it signs requests, describes timelines
// and builds them from validated video specs.
package shotstack

// Edit is the request body of POST /render.
type Edit struct {
	Timeline Timeline `json:"timeline"`
	Output   Output   `json:"output"`
	Callback string   `json:"callback,omitempty"`
}

// Timeline holds the tracks rendered on top of each other; Tracks[0] is the top layer.
type Timeline struct {
	Soundtrack *Soundtrack `json:"soundtrack,omitempty"`
	Background string      `json:"background,omitempty"`
	Tracks     []Track     `json:"tracks"`
}

// Soundtrack is a single background-audio overlay applied to the whole timeline.
type Soundtrack struct {
	Src    string   `json:"src"`
	Effect string   `json:"effect,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// Track is one layer of clips.
type Track struct {
	Clips []Clip `json:"clips"`
}

// Clip places an asset on the timeline. Start and Length are seconds.
type Clip struct {
	Asset      Asset       `json:"asset"`
	Start      float64     `json:"start"`
	Length     float64     `json:"length"`
	Fit        string      `json:"fit,omitempty"`
	Effect     string      `json:"effect,omitempty"`
	Position   string      `json:"position,omitempty"`
	Scale      *float64    `json:"scale,omitempty"`
	Offset     *Offset     `json:"offset,omitempty"`
	Transition *Transition `json:"transition,omitempty"`
}

// End returns the time at which the clip stops playing.
func (c Clip) End() float64 {
	return c.Start + c.Length
}

// Asset types used by the builders.
const (
	AssetImage = "image"
	AssetTitle = "title"
	AssetAudio = "audio"
)

// Asset is the media shown by a clip. Only the fields relevant to Type are set.
type Asset struct {
	Type       string   `json:"type"`
	Src        string   `json:"src,omitempty"`
	Text       string   `json:"text,omitempty"`
	Style      string   `json:"style,omitempty"`
	Position   string   `json:"position,omitempty"`
	Background string   `json:"background,omitempty"`
	Color      string   `json:"color,omitempty"`
	Size       string   `json:"size,omitempty"`
	Volume     *float64 `json:"volume,omitempty"`
}

// Offset nudges a positioned clip; values are fractions of the viewport.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transition names the in and out effects of a clip.
type Transition struct {
	In  string `json:"in,omitempty"`
	Out string `json:"out,omitempty"`
}

// Output describes the rendered file.
type Output struct {
	Format      string `json:"format"`
	Resolution  string `json:"resolution"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	FPS         int    `json:"fps,omitempty"`
}

// RenderEnvelope is the JSON wrapper returned by both render endpoints.
type RenderEnvelope struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Response RenderResult `json:"response"`
}

// RenderResult is the job portion of a render envelope. Submission replies only carry ID.
type RenderResult struct {
	ID      string `json:"id"`
	Owner   string `json:"owner,omitempty"`
	URL     string `json:"url,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Created string `json:"created,omitempty"`
	Updated string `json:"updated,omitempty"`
}
