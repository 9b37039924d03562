package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/scheduler"
	"github.com/aristath/creditrisk/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the scoring API, the live dashboard and metrics",
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	log := e.log
	log.Info().Str("version", version).Msg("Starting creditrisk")

	db, err := e.openRunsDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.IntegrityCheck(ctx); err != nil {
		return err
	}

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	key := e.cfg.Artifact.Key

	// Serving starts without a model; the reload job picks one up once it is published
	m, err := store.Load(ctx, key)
	switch {
	case errors.Is(err, domain.ErrModelNotLoaded):
		log.Warn().Str("location", store.Location(key)).Msg("No model published yet, scoring is unavailable until one is")
		m = nil
	case err != nil:
		return err
	default:
		log.Info().Str("model_version", m.Version).Str("location", store.Location(key)).Msg("Model loaded")
	}

	bucketizer, err := bucketing.New(e.cfg.Risk)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	svc, err := scoring.NewService(m, bucketizer, e.cfg.Guidance, log, scoring.NewMetrics(registry))
	if err != nil {
		return err
	}

	sched := scheduler.New(log)
	if e.cfg.ModelReloadSchedule != "" {
		if err := sched.AddJob(e.cfg.ModelReloadSchedule, scheduler.NewReloadModelJob(store, svc, key, log)); err != nil {
			return err
		}
	}
	if e.cfg.WALCheckpointSchedule != "" {
		if err := sched.AddJob(e.cfg.WALCheckpointSchedule, scheduler.NewCheckWALCheckpointsJob(log, db)); err != nil {
			return err
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Scoring:   svc,
		RunsDB:    db,
		Scheduler: sched,
		Gatherer:  registry,
		Metrics:   server.NewHTTPMetrics(registry),
		Port:      e.cfg.Port,
		DevMode:   e.cfg.DevMode,
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	log.Info().Int("port", e.cfg.Port).Msg("Server started successfully")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	log.Info().Msg("Shutting down server...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return err
}
