package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/scheduler"
)

type noopJob struct{}

func (noopJob) Name() string { return "noop" }
func (noopJob) Run() error   { return nil }

func setupServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "runs.db"), Name: "runs"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	reg := prometheus.NewRegistry()
	bucketizer, err := bucketing.New(bucketing.DefaultConfig())
	require.NoError(t, err)
	svc, err := scoring.NewService(nil, bucketizer, scoring.DefaultOptions(), zerolog.Nop(), scoring.NewMetrics(reg))
	require.NoError(t, err)

	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("@every 1h", noopJob{}))

	return New(Config{
		Log:       zerolog.Nop(),
		Scoring:   svc,
		RunsDB:    db,
		Scheduler: sched,
		Gatherer:  reg,
		Metrics:   NewHTTPMetrics(reg),
		Port:      0,
		DevMode:   true,
	})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestHealth_DegradedWithoutModel(t *testing.T) {
	s := setupServer(t)

	w := get(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "creditrisk", body.Service)
	assert.Equal(t, "ok", body.Database)
	assert.Empty(t, body.ModelVersion)
}

func TestDashboard(t *testing.T) {
	s := setupServer(t)

	w := get(t, s, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/api/score/live")
}

func TestMetrics(t *testing.T) {
	s := setupServer(t)

	w := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "creditrisk_model_swaps_total")
}

func TestRoutesAreRegistered(t *testing.T) {
	s := setupServer(t)

	testCases := []struct {
		path   string
		status int
	}{
		{"/api/system/status", http.StatusOK},
		{"/api/system/jobs", http.StatusOK},
		{"/api/system/database/stats", http.StatusOK},
		{"/api/runs", http.StatusOK},
		{"/api/model", http.StatusServiceUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := get(t, s, tc.path)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/score", strings.NewReader(`{}`))
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSystemStatus(t *testing.T) {
	s := setupServer(t)

	w := get(t, s, "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, 0, body.TrainingRuns)
	assert.Positive(t, body.Goroutines)
}

func TestJobsStatus(t *testing.T) {
	s := setupServer(t)

	w := get(t, s, "/api/system/jobs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Jobs  []scheduler.JobInfo `json:"jobs"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "noop", body.Jobs[0].Name)
}

func TestTriggerJob(t *testing.T) {
	s := setupServer(t)
	post := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest("POST", path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, post("/api/system/jobs/noop/run").Code)
	assert.Equal(t, http.StatusNotFound, post("/api/system/jobs/missing/run").Code)

	var body struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(get(t, s, "/api/system/jobs").Body).Decode(&body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, 1, body.Jobs[0].Runs)
}

func TestHTTPMetrics_LabelByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := chi.NewRouter()
	r.Use(observe(zerolog.Nop(), m))
	// a handler that never writes still answers 200
	r.Get("/api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/api/model", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/runs/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/model", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/runs/{id}", "200")))
	assert.Zero(t, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/runs/{id}", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/model", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
	assert.Zero(t, testutil.ToFloat64(m.inFlight))
}

func TestSkipWebsocket(t *testing.T) {
	called := false
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}
	h := skipWebsocket(mw)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/api/score/live", nil)
	req.Header.Set("Upgrade", "websocket")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, called)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	assert.True(t, called)
}
