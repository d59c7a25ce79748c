package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/speech"
)

const (
	maxUploadBytes      = 10 << 20
	maxScreenshotFiles  = 10
	multipartMemory     = 32 << 20
	screenshotFormField = "screenshots"
	musicFormField      = "file"
)

var (
	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
	}
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

type ttsRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

func (s *Server) tts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	audioURL, err := s.deps.Speech.Voiceover(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to generate voiceover")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "audioUrl": audioURL})
}

func (s *Server) voices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "voices": speech.Voices()})
}

// uploadScreenshots stores 1..10 images under uploads/<ts>-<i>-<name>. All files are checked
// before any is written.
func (s *Server) uploadScreenshots(w http.ResponseWriter, r *http.Request) {
	files, err := s.parseFiles(w, r, screenshotFormField, maxScreenshotFiles*maxUploadBytes)
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	switch {
	case len(files) == 0:
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	case len(files) > maxScreenshotFiles:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d screenshots allowed", maxScreenshotFiles))
		return
	}
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !allowedImageTypes[contentType] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid file type: %s. Allowed: JPEG, PNG, WebP", contentType))
			return
		}
		if fh.Size > maxUploadBytes {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File %s exceeds 10MB limit", fh.Filename))
			return
		}
	}

	stamp := s.now().UnixMilli()
	urls := make([]string, 0, len(files))
	for i, fh := range files {
		key := fmt.Sprintf("uploads/%d-%d-%s", stamp, i, safeFilename(fh.Filename))
		u, err := s.store(r, fh, key)
		if err != nil {
			s.writeFailure(w, r, err, "Failed to upload screenshots")
			return
		}
		metrics.ObserveUpload("screenshot_upload")
		urls = append(urls, u)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"data": map[string]any{"screenshots": urls, "count": len(urls)},
	})
}

func (s *Server) uploadMusic(w http.ResponseWriter, r *http.Request) {
	files, err := s.parseFiles(w, r, musicFormField, maxUploadBytes)
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	fh := files[0]
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "audio/") {
		writeError(w, http.StatusBadRequest, "File must be an audio file")
		return
	}
	if fh.Size > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "File size must be less than 10MB")
		return
	}
	key := fmt.Sprintf("music/%d-%s", s.now().UnixMilli(), safeFilename(fh.Filename))
	u, err := s.store(r, fh, key)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to upload music file")
		return
	}
	metrics.ObserveUpload("music")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": u, "filename": fh.Filename})
}

// parseFiles reads a multipart body capped at limit plus form overhead.
func (s *Server) parseFiles(w http.ResponseWriter, r *http.Request, field string, limit int64) ([]*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		verr := &promo.ValidationError{}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			verr.Add(field, "upload exceeds size limit")
		} else {
			verr.Add("body", "expected multipart/form-data")
		}
		return nil, verr
	}
	return r.MultipartForm.File[field], nil
}

func (s *Server) store(r *http.Request, fh *multipart.FileHeader, key string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close() //nolint:errcheck // read-only
	u, err := s.deps.Blobs.PutObject(r.Context(), key, fh.Header.Get("Content-Type"), f)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	s.logger.Info("upload stored", zap.String("key", key), zap.Int64("bytes", fh.Size))
	return u, nil
}

// media serves blobs from the local backend.
func (s *Server) media(w http.ResponseWriter, r *http.Request) {
	if s.deps.Media == nil {
		writeError(w, http.StatusNotFound, "media is not served by this storage backend")
		return
	}
	key := chi.URLParam(r, "*")
	data, contentType, err := s.deps.Media.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.writeFailure(w, r, err, "Failed to read media")
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("media write failed", zap.String("key", key), zap.Error(err))
	}
}

func safeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "-")
	base = strings.Trim(base, ".-")
	if base == "" {
		return "upload"
	}
	return base
}
