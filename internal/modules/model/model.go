// Package model bundles the fitted pieces of the scoring pipeline into one
// immutable, versioned unit.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
	"github.com/aristath/creditrisk/internal/modules/features"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// Profile holds per-feature statistics computed once at training time
type Profile struct {
	// Importances are the classifier's normalised feature importances
	Importances []float64 `json:"importances" msgpack:"importances"`
	// Directions is +1 where larger encoded values go with more defaults, -1 for the
	// opposite and 0 when the feature carries no linear signal
	Directions []float64 `json:"directions" msgpack:"directions"`
}

// TrainedModel is never mutated after construction; retraining produces a new one
type TrainedModel struct {
	Version    string
	CreatedAt  time.Time
	Encoder    *features.FittedEncoder
	Classifier classifier.Model
	Calibrator calibration.Calibrator
	Profile    Profile
}

// New assembles and validates a freshly trained model
func New(enc *features.FittedEncoder, clf classifier.Model, cal calibration.Calibrator, profile Profile) (*TrainedModel, error) {
	if cal == nil {
		cal = calibration.Identity{}
	}
	m := &TrainedModel{
		Version:    uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Encoder:    enc,
		Classifier: clf,
		Calibrator: cal,
		Profile:    profile,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that the encoder, classifier and profile agree on the vector length
func (m *TrainedModel) Validate() error {
	if m.Encoder == nil || m.Classifier == nil || m.Calibrator == nil {
		return fmt.Errorf("model %s is incomplete", m.Version)
	}
	if err := m.Encoder.Validate(); err != nil {
		return fmt.Errorf("invalid encoder: %w", err)
	}
	dim := m.Encoder.Dimension()
	if got := m.Classifier.Dimension(); got != dim {
		return &domain.DimensionMismatchError{Expected: dim, Got: got}
	}
	if len(m.Profile.Importances) != dim {
		return &domain.DimensionMismatchError{Expected: dim, Got: len(m.Profile.Importances)}
	}
	if len(m.Profile.Directions) != dim {
		return &domain.DimensionMismatchError{Expected: dim, Got: len(m.Profile.Directions)}
	}
	return nil
}

// Dimension is the encoded vector length
func (m *TrainedModel) Dimension() int {
	return m.Encoder.Dimension()
}

// Prediction is the output of a single pass through the pipeline
type Prediction struct {
	Vector []float64
	Raw    float64
	PD     float64
}

// Predict encodes a record, scores it and calibrates the score
func (m *TrainedModel) Predict(record domain.ApplicantRecord) (Prediction, error) {
	x := m.Encoder.Transform(record)
	raw, err := m.Classifier.PredictProba(x)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Vector: x, Raw: raw, PD: m.Calibrator.Calibrate(raw)}, nil
}

// BuildProfile derives risk directions from the training matrix and pairs them
// with the classifier's importances.
func BuildProfile(X [][]float64, y []bool, importances []float64) Profile {
	labels := formulas.BoolsToFloats(y)
	dim := len(importances)
	directions := make([]float64, dim)
	column := make([]float64, len(X))
	for j := 0; j < dim; j++ {
		for i, row := range X {
			column[i] = row[j]
		}
		c := formulas.Correlation(column, labels)
		switch {
		case c > 0:
			directions[j] = 1
		case c < 0:
			directions[j] = -1
		}
	}
	return Profile{
		Importances: append([]float64(nil), importances...),
		Directions:  directions,
	}
}

// FeatureSummary describes one encoded position for display
type FeatureSummary struct {
	features.Feature
	Importance float64 `json:"importance"`
	Direction  float64 `json:"direction"`
}

// Summary is the public description of a loaded model
type Summary struct {
	Version     string             `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	Variant     classifier.Variant `json:"variant"`
	Calibration calibration.Method `json:"calibration"`
	Dimension   int                `json:"dimension"`
	Features    []FeatureSummary   `json:"features"`
}

// Summarize lists the model metadata and its features ordered as encoded
func (m *TrainedModel) Summarize() Summary {
	feats := m.Encoder.Features()
	out := make([]FeatureSummary, len(feats))
	for i, f := range feats {
		out[i] = FeatureSummary{Feature: f}
		if i < len(m.Profile.Importances) {
			out[i].Importance = roundTo(m.Profile.Importances[i], 6)
			out[i].Direction = m.Profile.Directions[i]
		}
	}
	return Summary{
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		Variant:     m.Classifier.Variant(),
		Calibration: m.Calibrator.Method(),
		Dimension:   m.Dimension(),
		Features:    out,
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
