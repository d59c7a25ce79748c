package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
)

// MaxTextLength bounds a single synthesis request, in characters.
const MaxTextLength = 5000

// Voice is one entry of the voice catalogue.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultVoiceID is Rachel.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

var catalogue = []Voice{
	{ID: DefaultVoiceID, Name: "Rachel", Description: "Calm, young female voice"},
	{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Description: "Strong, confident female voice"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Description: "Soft, gentle female voice"},
	{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Description: "Well-rounded male voice"},
	{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold", Description: "Crisp, authoritative male voice"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Description: "Deep, resonant male voice"},
}

// Voices returns a copy of the voice catalogue.
func Voices() []Voice {
	return append([]Voice(nil), catalogue...)
}

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Service synthesizes voiceovers and uploads them.
type Service struct {
	synth        Synthesizer
	blobs        promo.BlobStore
	ids          promo.IDGenerator
	clock        promo.Clock
	defaultVoice string
	logger       *zap.Logger
}

// NewService wires a Service. An empty defaultVoice falls back to DefaultVoiceID.
func NewService(
	synth Synthesizer,
	blobs promo.BlobStore,
	ids promo.IDGenerator,
	clock promo.Clock,
	defaultVoice string,
	logger *zap.Logger,
) *Service {
	if defaultVoice == "" {
		defaultVoice = DefaultVoiceID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{synth: synth, blobs: blobs, ids: ids, clock: clock, defaultVoice: defaultVoice, logger: logger}
}

// Voiceover synthesizes text and returns the public URL of the uploaded MP3.
func (s *Service) Voiceover(ctx context.Context, text, voiceID string) (string, error) {
	n := utf8.RuneCountInString(text)
	if n < 1 || n > MaxTextLength {
		verr := &promo.ValidationError{}
		verr.Add("text", fmt.Sprintf("must be between 1 and %d characters", MaxTextLength))
		return "", verr
	}
	if voiceID == "" {
		voiceID = s.defaultVoice
	}

	audio, err := s.synth.Synthesize(ctx, text, voiceID)
	if err != nil {
		metrics.ObserveSpeech(speechStatus(err))
		s.logger.Warn("speech synthesis failed", zap.String("voice", voiceID), zap.Error(err))
		if errors.Is(err, ErrPermission) {
			return "", err
		}
		return "", fmt.Errorf("failed to generate voiceover: %w", err)
	}
	metrics.ObserveSpeech("ok")

	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("voiceover id: %w", err)
	}
	key := fmt.Sprintf("voiceovers/%d-%s-voiceover.mp3", s.clock.Now().UnixMilli(), id)
	u, err := s.blobs.PutObject(ctx, key, "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("upload voiceover: %w", err)
	}
	metrics.ObserveUpload("voiceover")
	s.logger.Info("voiceover stored", zap.String("voice", voiceID), zap.Int("bytes", len(audio)), zap.String("url", u))
	return u, nil
}

func speechStatus(err error) string {
	var cfgErr *promo.ConfigError
	switch {
	case errors.Is(err, ErrPermission):
		return "forbidden"
	case errors.As(err, &cfgErr):
		return "unconfigured"
	default:
		return "error"
	}
}
