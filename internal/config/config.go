// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/artifact"
	"github.com/aristath/creditrisk/internal/modules/bucketing"
	"github.com/aristath/creditrisk/internal/modules/scoring"
	"github.com/aristath/creditrisk/internal/modules/training"
)

// Artifact backends
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the run registry and file artifacts (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Artifact ArtifactConfig
	Risk     bucketing.Config
	Guidance scoring.Options

	ModelReloadSchedule   string // empty disables hot reload
	WALCheckpointSchedule string
}

// ArtifactConfig selects where trained models are published
type ArtifactConfig struct {
	Backend string
	Key     string
	S3      artifact.S3Config
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CREDITRISK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var errs []error
	port, err := getEnvAsInt("PORT", 8080)
	errs = append(errs, err)
	low, err := getEnvAsFloat("RISK_LOW_THRESHOLD", bucketing.DefaultLowThreshold)
	errs = append(errs, err)
	high, err := getEnvAsFloat("RISK_HIGH_THRESHOLD", bucketing.DefaultHighThreshold)
	errs = append(errs, err)
	topK, err := getEnvAsInt("GUIDANCE_TOP_K", scoring.DefaultTopK)
	errs = append(errs, err)
	minImpact, err := getEnvAsFloat("GUIDANCE_MIN_IMPACT", scoring.DefaultMinImpact)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     port,
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Artifact: ArtifactConfig{
			Backend: strings.ToLower(getEnv("ARTIFACT_BACKEND", BackendFile)),
			Key:     getEnv("ARTIFACT_KEY", artifact.DefaultKey),
			S3: artifact.S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Prefix:          getEnv("S3_PREFIX", ""),
				Region:          getEnv("AWS_REGION", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			},
		},
		Risk:                  bucketing.Config{LowThreshold: low, HighThreshold: high},
		Guidance:              scoring.Options{TopK: topK, MinImpact: minImpact},
		ModelReloadSchedule:   getEnv("MODEL_RELOAD_SCHEDULE", "@every 5m"),
		WALCheckpointSchedule: getEnv("WAL_CHECKPOINT_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every option eagerly so a bad deployment fails at startup
func (c *Config) Validate() error {
	invalid := func(option, reason string) error {
		return &domain.InvalidConfigurationError{Option: option, Reason: reason}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return invalid("PORT", fmt.Sprintf("%d is not a valid port", c.Port))
	}
	switch c.Artifact.Backend {
	case BackendFile:
	case BackendS3:
		if c.Artifact.S3.Bucket == "" {
			return invalid("S3_BUCKET", "required when ARTIFACT_BACKEND is s3")
		}
	default:
		return invalid("ARTIFACT_BACKEND", fmt.Sprintf("unknown backend %q (expected file or s3)", c.Artifact.Backend))
	}
	if strings.TrimSpace(c.Artifact.Key) == "" {
		return invalid("ARTIFACT_KEY", "must not be empty")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Guidance.Validate(); err != nil {
		return err
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for option, schedule := range map[string]string{
		"MODEL_RELOAD_SCHEDULE":   c.ModelReloadSchedule,
		"WAL_CHECKPOINT_SCHEDULE": c.WALCheckpointSchedule,
	} {
		if schedule == "" {
			continue
		}
		if _, err := parser.Parse(schedule); err != nil {
			return invalid(option, err.Error())
		}
	}

	return nil
}

// RunsDBPath is the location of the training run registry
func (c *Config) RunsDBPath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// ModelsDir is the directory used by the file artifact backend
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// LoadTrainingConfig reads a YAML training configuration. Options missing from the
// file keep their defaults; unknown options are rejected. An empty path yields the defaults.
func LoadTrainingConfig(path string) (training.Config, error) {
	cfg := training.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open training config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, &domain.InvalidConfigurationError{Option: path, Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return 0, &domain.InvalidConfigurationError{Option: key, Reason: fmt.Sprintf("%q is not an integer", value)}
	}
	return intVal, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &domain.InvalidConfigurationError{Option: key, Reason: fmt.Sprintf("%q is not a number", value)}
	}
	return f, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
