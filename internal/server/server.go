// Package server provides the HTTP server and routing for the scoring service.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/database"
	"github.com/aristath/creditrisk/internal/modules/runs"
	runshandlers "github.com/aristath/creditrisk/internal/modules/runs/handlers"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	scoringhandlers "github.com/aristath/creditrisk/internal/modules/scoring/handlers"
	"github.com/aristath/creditrisk/internal/scheduler"
	"github.com/aristath/creditrisk/pkg/embedded"
)

const requestTimeout = 60 * time.Second

// Config wires the server to the scoring service and its optional companions
type Config struct {
	Log       zerolog.Logger
	Scoring   *scoring.Service
	RunsDB    *database.DB         // enables /api/runs
	Scheduler *scheduler.Scheduler // enables job listing and triggering
	Gatherer  prometheus.Gatherer  // served on /metrics; defaults to the global registry
	Metrics   *HTTPMetrics
	Port      int
	DevMode   bool // disables response compression
}

// Server is the scoring HTTP API
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

func New(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}
	s.router.Use(s.middlewares()...)
	s.mount()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: live scoring sockets stay open; handlers bound their own writes.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) middlewares() []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		middleware.Recoverer,
		middleware.RequestID,
		middleware.RealIP,
		observe(s.log, s.cfg.Metrics),
		skipWebsocket(middleware.Timeout(requestTimeout)),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	}
	if !s.cfg.DevMode {
		chain = append(chain, skipWebsocket(middleware.Compress(5)))
	}
	return chain
}

func (s *Server) mount() {
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	if s.cfg.Scoring != nil {
		scoringhandlers.NewHandler(s.cfg.Scoring, s.log).RegisterRoutes(s.router)
	}
	if s.cfg.RunsDB != nil {
		repo := runs.NewRepository(s.cfg.RunsDB.Conn(), s.log)
		runshandlers.NewHandler(repo, s.log).RegisterRoutes(s.router)
	}

	system := NewSystemHandlers(s.cfg.Log, s.cfg.Scoring, s.cfg.RunsDB, s.cfg.Scheduler)
	s.router.Route("/api/system", func(r chi.Router) {
		r.Get("/status", system.HandleSystemStatus)
		r.Get("/jobs", system.HandleJobsStatus)
		r.Post("/jobs/{name}/run", system.HandleTriggerJob)
		r.Get("/database/stats", system.HandleDatabaseStats)
	})
}

// Start blocks serving requests until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Bool("dev_mode", s.cfg.DevMode).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown drains open requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(embedded.Files, "web/index.html")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read embedded dashboard")
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(page); err != nil {
		s.log.Debug().Err(err).Msg("Client went away while sending dashboard")
	}
}
