package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/render"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// streamFrame is one websocket message. "status" frames carry each poll result, the single
// "outcome" frame closes the stream.
type streamFrame struct {
	Type    string           `json:"type"`
	Job     *promo.RenderJob `json:"job,omitempty"`
	Outcome render.Outcome   `json:"outcome,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// streamStatus polls a job and pushes every observed status to the client. Closing the socket
// stops polling; the render itself keeps going upstream.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !promo.ValidJobID(id) {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.Close() //nolint:errcheck // best-effort close

	metrics.IncActiveStreams()
	defer metrics.DecActiveStreams()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("status stream read ended", zap.String("job_id", id), zap.Error(err))
				}
				return
			}
		}
	}()

	send := func(frame streamFrame) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Debug("status stream write failed", zap.String("job_id", id), zap.Error(err))
			cancel()
			return false
		}
		return true
	}

	job, outcome, err := s.deps.Renderer.Poll(ctx, id, func(job promo.RenderJob) {
		send(streamFrame{Type: "status", Job: &job})
	})
	if outcome == render.OutcomeCanceled {
		return
	}
	final := streamFrame{Type: "outcome", Outcome: outcome, Job: &job}
	if err != nil {
		final.Error = err.Error()
	} else if job.Error != "" {
		final.Error = job.Error
	}
	if !send(final) {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(outcome)),
		time.Now().Add(streamWriteWait))
}
