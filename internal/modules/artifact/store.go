package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/model"
)

// DefaultKey is the artifact name used when none is configured
const DefaultKey = "model.msgpack"

// Store saves and loads model artifacts by key
type Store interface {
	Save(ctx context.Context, key string, m *model.TrainedModel) error
	Load(ctx context.Context, key string) (*model.TrainedModel, error)
	// Location describes where key lives, for logs and reports
	Location(key string) string
}

// FileStore keeps artifacts in a local directory
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{
		dir: dir,
		log: log.With().Str("component", "artifact_store").Str("backend", "file").Logger(),
	}, nil
}

func (s *FileStore) Location(key string) string {
	return filepath.Join(s.dir, cleanKey(key))
}

// Save writes to a temporary file and renames it into place so readers never
// observe a partial artifact.
func (s *FileStore) Save(ctx context.Context, key string, m *model.TrainedModel) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	path := s.Location(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}

	s.log.Info().Str("path", path).Str("model_version", m.Version).Int("bytes", len(data)).Msg("Model artifact saved")
	return nil
}

func (s *FileStore) Load(ctx context.Context, key string) (*model.TrainedModel, error) {
	path := s.Location(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no artifact at %s", domain.ErrModelNotLoaded, path)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("path", path).Str("model_version", m.Version).Msg("Model artifact loaded")
	return m, nil
}

func cleanKey(key string) string {
	key = strings.TrimLeft(filepath.Clean("/"+key), "/")
	if key == "" || key == "." {
		return DefaultKey
	}
	return key
}
