package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/model"
)

const reloadTimeout = 2 * time.Minute

// ModelLoader reads a persisted model
type ModelLoader interface {
	Load(ctx context.Context, key string) (*model.TrainedModel, error)
	Location(key string) string
}

// ModelSwapper serves a model and accepts replacements
type ModelSwapper interface {
	Current() *model.TrainedModel
	Swap(m *model.TrainedModel) error
}

// ReloadModelJob replaces the serving model when a newer artifact has been published
type ReloadModelJob struct {
	log     zerolog.Logger
	loader  ModelLoader
	swapper ModelSwapper
	key     string
}

// NewReloadModelJob creates a new ReloadModelJob
func NewReloadModelJob(loader ModelLoader, swapper ModelSwapper, key string, log zerolog.Logger) *ReloadModelJob {
	return &ReloadModelJob{
		log:     log.With().Str("job", "reload_model").Logger(),
		loader:  loader,
		swapper: swapper,
		key:     key,
	}
}

// Name returns the job name
func (j *ReloadModelJob) Name() string {
	return "reload_model"
}

// Run loads the artifact and swaps it in if its version differs from the serving one.
// A missing artifact is not an error; the service keeps what it has.
func (j *ReloadModelJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	m, err := j.loader.Load(ctx, j.key)
	if errors.Is(err, domain.ErrModelNotLoaded) {
		j.log.Debug().Str("location", j.loader.Location(j.key)).Msg("No model artifact published yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load model artifact: %w", err)
	}

	if current := j.swapper.Current(); current != nil && current.Version == m.Version {
		j.log.Debug().Str("version", m.Version).Msg("Serving model is up to date")
		return nil
	}

	if err := j.swapper.Swap(m); err != nil {
		return fmt.Errorf("failed to swap model: %w", err)
	}
	j.log.Info().
		Str("version", m.Version).
		Str("location", j.loader.Location(j.key)).
		Msg("Reloaded model artifact")
	return nil
}
