// Package handlers provides HTTP handlers for applicant scoring.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/scoring"
)

const maxBodyBytes = 4 << 20

// Handler handles scoring HTTP requests
type Handler struct {
	service *scoring.Service
	log     zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(service *scoring.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scoring").Logger(),
	}
}

// HandleScore handles POST /api/score
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var record domain.ApplicantRecord
	if err := decodeValidated(applicantSchema, body, &record); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	assessment, err := h.service.Score(record)
	if err != nil {
		h.writeScoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, assessment)
}

// HandleScoreBatch handles POST /api/score/batch
func (h *Handler) HandleScoreBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var records []domain.ApplicantRecord
	if err := decodeValidated(batchSchema, body, &records); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	items, err := h.service.ScoreBatch(records)
	if err != nil {
		h.writeScoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": items,
		"count":   len(items),
	})
}

// HandleGetModel handles GET /api/model
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	m := h.service.Current()
	if m == nil {
		h.writeError(w, http.StatusServiceUnavailable, "No model loaded")
		return
	}
	h.writeJSON(w, http.StatusOK, m.Summarize())
}

// HandleGetSchema handles GET /api/score/schema
func (h *Handler) HandleGetSchema(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ApplicantSchema())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      "Invalid applicant payload",
			"violations": schemaErr.Violations,
		})
		return
	}
	h.log.Error().Err(err).Msg("Failed to decode payload")
	h.writeError(w, http.StatusBadRequest, "Invalid applicant payload")
}

func (h *Handler) writeScoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidApplicant):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrModelNotLoaded):
		h.writeError(w, http.StatusServiceUnavailable, "No model loaded")
	default:
		h.log.Error().Err(err).Msg("Failed to score applicant")
		h.writeError(w, http.StatusInternalServerError, "Failed to score applicant")
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
