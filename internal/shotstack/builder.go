package shotstack

import (
	"math"

	"github.com/JakeFAU/promoforge/internal/promo"
)

// Layout constants for promo timelines.
const (
	TitleSeconds       = 3.0
	SlideSeconds       = 2.0
	captionDelay       = 0.2
	captionSeconds     = 1.6
	logoScale          = 0.15
	logoOffset         = -0.05
	outputFormat       = "mp4"
	outputResolution   = "hd"
	outputFPS          = 25
	soundtrackEffect   = "fadeInFadeOut"
	transitionFade     = "fade"
	imageFit           = "cover"
	imageEffect        = "zoomIn"
	titleStyle         = "minimal"
	positionCenter     = "center"
	positionBottom     = "bottom"
	positionTopRight   = "topRight"
	descriptionStyle   = "subtitle"
	defaultSlideAspect = "9:16"
)

// BuildEdit turns a validated VideoSpec into a render request. It is pure: the same spec always
// yields the same Edit. Tracks are ordered logo, title, description, images, voiceover.
func BuildEdit(spec promo.VideoSpec) (Edit, error) {
	if len(spec.Images) == 0 {
		verr := &promo.ValidationError{}
		verr.Add("images", "At least one image is required")
		return Edit{}, verr
	}
	duration := spec.DurationSeconds
	titleLength := math.Min(TitleSeconds, duration)

	var tracks []Track
	if spec.Logo != "" {
		scale := logoScale
		tracks = append(tracks, Track{Clips: []Clip{{
			Asset:    Asset{Type: AssetImage, Src: spec.Logo},
			Start:    0,
			Length:   duration,
			Position: positionTopRight,
			Scale:    &scale,
			Offset:   &Offset{X: logoOffset, Y: logoOffset},
		}}})
	}

	tracks = append(tracks,
		Track{Clips: []Clip{{
			Asset: Asset{
				Type:       AssetTitle,
				Text:       spec.Title,
				Style:      titleStyle,
				Background: spec.ThemeColor,
				Position:   positionCenter,
			},
			Start:      0,
			Length:     titleLength,
			Transition: &Transition{In: transitionFade, Out: transitionFade},
		}}},
		Track{Clips: []Clip{{
			Asset: Asset{
				Type:     AssetTitle,
				Text:     spec.Description,
				Style:    descriptionStyle,
				Position: positionBottom,
			},
			Start:  titleLength,
			Length: duration - titleLength,
		}}},
		Track{Clips: imageClips(spec.Images, duration)},
	)

	if spec.VoiceoverURL != "" {
		tracks = append(tracks, Track{Clips: []Clip{{
			Asset:  Asset{Type: AssetAudio, Src: spec.VoiceoverURL},
			Start:  0,
			Length: duration,
		}}})
	}

	edit := Edit{
		Timeline: Timeline{Tracks: tracks},
		Output:   output(spec.Aspect),
	}
	if spec.MusicURL != "" {
		volume := spec.MusicVolume
		edit.Timeline.Soundtrack = &Soundtrack{Src: spec.MusicURL, Effect: soundtrackEffect, Volume: &volume}
	}
	return edit, nil
}

// imageClips splits duration evenly. Starts are computed as i*length so the clips tile the
// timeline without drift between neighbours.
func imageClips(images []string, duration float64) []Clip {
	length := duration / float64(len(images))
	clips := make([]Clip, 0, len(images))
	for i, src := range images {
		clips = append(clips, Clip{
			Asset:      Asset{Type: AssetImage, Src: src},
			Start:      float64(i) * length,
			Length:     length,
			Fit:        imageFit,
			Effect:     imageEffect,
			Transition: &Transition{In: transitionFade, Out: transitionFade},
		})
	}
	return clips
}

// BuildSlideshow lays shots out back to back, SlideSeconds each, with optional captions on a
// single track. An empty aspect means 9:16.
func BuildSlideshow(shots []promo.Shot, aspect string) (Edit, error) {
	if aspect == "" {
		aspect = defaultSlideAspect
	}
	if err := promo.ValidateShots(shots, aspect); err != nil {
		return Edit{}, err
	}
	clips := make([]Clip, 0, len(shots)*2)
	for i, shot := range shots {
		start := float64(i) * SlideSeconds
		clips = append(clips, Clip{
			Asset:  Asset{Type: AssetImage, Src: shot.ImageURL},
			Start:  start,
			Length: SlideSeconds,
			Fit:    imageFit,
			Effect: imageEffect,
		})
		if shot.Caption != "" {
			clips = append(clips, Clip{
				Asset: Asset{
					Type:     AssetTitle,
					Text:     shot.Caption,
					Style:    titleStyle,
					Position: positionBottom,
				},
				Start:  start + captionDelay,
				Length: captionSeconds,
			})
		}
	}
	return Edit{
		Timeline: Timeline{Tracks: []Track{{Clips: clips}}},
		Output:   output(aspect),
	}, nil
}

// output only names the aspect ratio when it differs from the service default of 16:9.
func output(aspect string) Output {
	out := Output{Format: outputFormat, Resolution: outputResolution, FPS: outputFPS}
	if aspect == "9:16" || aspect == "1:1" {
		out.AspectRatio = aspect
	}
	return out
}

// Duration returns the end of the latest clip in the edit.
func (e Edit) Duration() float64 {
	var end float64
	for _, track := range e.Timeline.Tracks {
		for _, clip := range track.Clips {
			end = math.Max(end, clip.End())
		}
	}
	return end
}

// Title returns the text of the first title clip, or "" when the edit has none.
func (e Edit) Title() string {
	for _, track := range e.Timeline.Tracks {
		for _, clip := range track.Clips {
			if clip.Asset.Type == AssetTitle {
				return clip.Asset.Text
			}
		}
	}
	return ""
}
