package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/aristath/creditrisk/internal/config"
	"github.com/aristath/creditrisk/internal/database"
	"github.com/aristath/creditrisk/internal/modules/artifact"
	"github.com/aristath/creditrisk/pkg/logger"
)

// env is what every command needs before it does its own work
type env struct {
	cfg *config.Config
	log zerolog.Logger
	out io.Writer
}

func setup(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if cmd.Bool(debugFlag) {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	return &env{cfg: cfg, log: log, out: cmd.Root().Writer}, nil
}

// openStore returns the artifact backend selected by ARTIFACT_BACKEND
func (e *env) openStore(ctx context.Context) (artifact.Store, error) {
	if e.cfg.Artifact.Backend == config.BackendS3 {
		store, err := artifact.NewS3Store(ctx, e.cfg.Artifact.S3, e.log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := artifact.NewFileStore(e.cfg.ModelsDir(), e.log)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// openRunsDB opens and migrates the training run registry
func (e *env) openRunsDB() (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:       e.cfg.RunsDBPath(),
		Durability: database.DurabilityFull,
		Name:       "runs",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run registry: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate run registry: %w", err)
	}
	return db, nil
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
