package training

import (
	"sort"
	"time"

	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
)

// FeatureImportance pairs an encoded feature name with its importance
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Report is the immutable summary of one training run
type Report struct {
	RunID             string                   `json:"run_id"`
	ModelVersion      string                   `json:"model_version"`
	StartedAt         time.Time                `json:"started_at"`
	Duration          time.Duration            `json:"duration_ns"`
	Variant           classifier.Variant       `json:"variant"`
	Seed              int64                    `json:"seed"`
	TrainSize         int                      `json:"train_size"`
	CalibrationSize   int                      `json:"calibration_size"`
	TestSize          int                      `json:"test_size"`
	Prevalence        float64                  `json:"prevalence"`
	Metrics           classifier.Metrics       `json:"metrics"`
	CalibrationMethod calibration.Method       `json:"calibration_method"`
	BrierScore        float64                  `json:"brier_score"`
	Reliability       []calibration.CurvePoint `json:"reliability"`
	Importances       []FeatureImportance      `json:"feature_importances"`
	Warnings          []string                 `json:"warnings,omitempty"`
}

// rankImportances sorts features by importance, ties by encoded position
func rankImportances(names []string, importances []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(names))
	for i, name := range names {
		out[i] = FeatureImportance{Feature: name, Importance: importances[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}
