package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/aristath/creditrisk/internal/modules/model"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	scoring     *scoring.Service
	runsDB      *database.DB
	scheduler   *scheduler.Scheduler
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	scoringService *scoring.Service,
	runsDB *database.DB,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		scoring:     scoringService,
		runsDB:      runsDB,
		scheduler:   sched,
	}
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	ModelVersion  string  `json:"model_version,omitempty"`
	ModelVariant  string  `json:"model_variant,omitempty"`
	ModelCreated  string  `json:"model_created_at,omitempty"`
	TrainingRuns  int     `json:"training_runs"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Name  string          `json:"name"`
	Path  string          `json:"path"`
	Stats *database.Stats `json:"stats"`
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
	}

	if m := h.currentModel(); m != nil {
		response.ModelVersion = m.Version
		response.ModelVariant = string(m.Classifier.Variant())
		response.ModelCreated = m.CreatedAt.Format(time.RFC3339)
	} else {
		response.Status = "degraded"
	}

	if h.runsDB != nil {
		if err := h.runsDB.Conn().QueryRow("SELECT COUNT(*) FROM training_runs").Scan(&response.TrainingRuns); err != nil {
			h.log.Warn().Err(err).Msg("Failed to count training runs")
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsStatus lists the scheduled background jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.scheduler != nil {
		jobs = h.scheduler.Jobs()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleTriggerJob runs a registered job immediately and reports its outcome
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.scheduler == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Scheduler not running"})
		return
	}

	err := h.scheduler.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, scheduler.ErrJobRunning):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		h.log.Warn().Err(err).Str("job", name).Msg("Triggered job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		h.writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
	}
}

// HandleDatabaseStats returns run registry database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.runsDB == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Run registry not configured"})
		return
	}

	stats, err := h.runsDB.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get database stats"})
		return
	}

	h.writeJSON(w, http.StatusOK, []DatabaseStatsResponse{{
		Name:  h.runsDB.Name(),
		Path:  h.runsDB.Path(),
		Stats: stats,
	}})
}

func (h *SystemHandlers) currentModel() *model.TrainedModel {
	if h.scoring == nil {
		return nil
	}
	return h.scoring.Current()
}

// getSystemStats calculates CPU and RAM usage percentages over a short interval
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
