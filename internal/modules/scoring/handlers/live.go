package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/scoring"
)

const (
	liveWriteTimeout = 5 * time.Second
	liveReadLimit    = 64 << 10
)

// LiveReply answers one message on the live scoring socket
type LiveReply struct {
	Assessment *scoring.Assessment `json:"assessment,omitempty"`
	Error      string              `json:"error,omitempty"`
	Violations []string            `json:"violations,omitempty"`
}

// HandleLive handles GET /api/score/live.
//
// Every text message is an applicant payload and is answered with one LiveReply, so a
// form can re-score on each edit without a request per keystroke. Invalid payloads are
// reported on the socket and do not close it.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept live scoring connection")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")
	conn.SetReadLimit(liveReadLimit)

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("Live scoring connection opened")

	ctx := r.Context()
	for {
		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				h.log.Debug().Msg("Live scoring connection closed by client")
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			h.log.Warn().Err(err).Msg("Live scoring read failed")
			return
		}

		if msgType != websocket.MessageText {
			if err := h.writeLive(ctx, conn, LiveReply{Error: "expected a text message"}); err != nil {
				return
			}
			continue
		}

		if err := h.writeLive(ctx, conn, h.scoreLive(message)); err != nil {
			h.log.Warn().Err(err).Msg("Live scoring write failed")
			return
		}
	}
}

func (h *Handler) scoreLive(message []byte) LiveReply {
	var record domain.ApplicantRecord
	if err := decodeValidated(applicantSchema, message, &record); err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			return LiveReply{Error: "Invalid applicant payload", Violations: schemaErr.Violations}
		}
		return LiveReply{Error: "Invalid applicant payload"}
	}

	assessment, err := h.service.Score(record)
	switch {
	case err == nil:
		return LiveReply{Assessment: assessment}
	case errors.Is(err, domain.ErrInvalidApplicant):
		return LiveReply{Error: err.Error()}
	case errors.Is(err, domain.ErrModelNotLoaded):
		return LiveReply{Error: "No model loaded"}
	default:
		h.log.Error().Err(err).Msg("Failed to score applicant")
		return LiveReply{Error: "Failed to score applicant"}
	}
}

func (h *Handler) writeLive(ctx context.Context, conn *websocket.Conn, reply LiveReply) error {
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
