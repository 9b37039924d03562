// Package runs keeps the registry of training runs and their evaluation reports.
package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/training"
)

// Summary is the list view of a training run
type Summary struct {
	ID                string             `json:"id"`
	ModelVersion      string             `json:"model_version"`
	StartedAt         time.Time          `json:"started_at"`
	DurationMS        int64              `json:"duration_ms"`
	Variant           classifier.Variant `json:"variant"`
	Seed              int64              `json:"seed"`
	CalibrationMethod calibration.Method `json:"calibration_method"`
	TrainSize         int                `json:"train_size"`
	CalibrationSize   int                `json:"calibration_size"`
	TestSize          int                `json:"test_size"`
	Prevalence        float64            `json:"prevalence"`
	ROCAUC            float64            `json:"roc_auc"`
	Accuracy          float64            `json:"accuracy"`
	BrierScore        float64            `json:"brier_score"`
	ArtifactLocation  string             `json:"artifact_location,omitempty"`
}

// Repository handles training run persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Record stores a finished run. Reports are immutable, so recording the same run
// twice is an error.
func (r *Repository) Record(report training.Report, artifactLocation string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO training_runs (
			id, model_version, started_at, duration_ms, variant, seed, calibration_method,
			train_size, calibration_size, test_size, prevalence, roc_auc, accuracy,
			brier_score, artifact_location, report_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		report.RunID,
		report.ModelVersion,
		report.StartedAt.Unix(),
		report.Duration.Milliseconds(),
		string(report.Variant),
		report.Seed,
		string(report.CalibrationMethod),
		report.TrainSize,
		report.CalibrationSize,
		report.TestSize,
		report.Prevalence,
		report.Metrics.ROCAUC,
		report.Metrics.Accuracy,
		report.BrierScore,
		nullString(artifactLocation),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}

	r.log.Debug().Str("run_id", report.RunID).Msg("Training run recorded")
	return nil
}

// List returns the most recent runs first
func (r *Repository) List(limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, model_version, started_at, duration_ms, variant, seed, calibration_method,
		       train_size, calibration_size, test_size, prevalence, roc_auc, accuracy,
		       brier_score, artifact_location
		FROM training_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Summary, 0)
	for rows.Next() {
		var (
			s         Summary
			startedAt int64
			variant   string
			method    string
			location  sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &s.ModelVersion, &startedAt, &s.DurationMS, &variant, &s.Seed, &method,
			&s.TrainSize, &s.CalibrationSize, &s.TestSize, &s.Prevalence, &s.ROCAUC, &s.Accuracy,
			&s.BrierScore, &location,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		s.StartedAt = time.Unix(startedAt, 0).UTC()
		s.Variant = classifier.Variant(variant)
		s.CalibrationMethod = calibration.Method(method)
		s.ArtifactLocation = location.String
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training runs: %w", err)
	}
	return runs, nil
}

// Get returns the full report of a run, or nil when the id is unknown
func (r *Repository) Get(id string) (*training.Report, error) {
	var payload string
	err := r.db.QueryRow("SELECT report_json FROM training_runs WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}

	var report training.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %s: %w", id, err)
	}
	return &report, nil
}

// Count returns the number of recorded runs
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM training_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count training runs: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
