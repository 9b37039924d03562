package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string  `json:"status"`
	Service      string  `json:"service"`
	ModelVersion string  `json:"model_version,omitempty"`
	MemoryUsed   float64 `json:"memory_used_percent"`
	Database     string  `json:"database,omitempty"`
}

// handleHealth reports healthy when a model is loaded and the run registry answers.
// Without a model the service is up but cannot score, so it reports degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Service: "creditrisk",
	}
	status := http.StatusOK

	if s.cfg.Scoring != nil {
		if m := s.cfg.Scoring.Current(); m != nil {
			response.ModelVersion = m.Version
		}
	}
	if response.ModelVersion == "" {
		response.Status = "degraded"
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response.MemoryUsed = vm.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory statistics")
	}

	if s.cfg.RunsDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.RunsDB.Ping(ctx); err != nil {
			s.log.Error().Err(err).Msg("Run registry health check failed")
			response.Status = "unhealthy"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	s.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
