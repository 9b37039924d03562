// Package classifier provides the trainable default-probability models.
//
// Three interchangeable variants share one capability set: a Classifier fits a
// Model from a labeled feature matrix, and a Model turns an encoded vector into a
// default probability. The variant is chosen by configuration through New.
package classifier

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/domain"
)

// Variant names a classifier implementation
type Variant string

const (
	VariantLogisticRegression Variant = "logistic_regression"
	VariantRandomForest       Variant = "random_forest"
	VariantGradientBoosting   Variant = "gradient_boosting"
)

// MinPrevalence is the positive-class share below which a LabelImbalanceWarning is raised
const MinPrevalence = 0.01

// Classifier trains a Model
type Classifier interface {
	Variant() Variant
	Fit(X [][]float64, y []bool) (Model, error)
}

// Model is an immutable fitted classifier
type Model interface {
	Variant() Variant
	// Dimension is the feature vector length established at fit time
	Dimension() int
	// PredictProba returns the probability of the positive (default) class
	PredictProba(x []float64) (float64, error)
	// FeatureImportances returns non-negative importances that sum to 1 (or all zero)
	FeatureImportances() []float64
}

// LogisticConfig holds logistic regression hyperparameters
type LogisticConfig struct {
	L2            float64 `yaml:"l2" json:"l2"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
}

// ForestConfig holds random forest hyperparameters
type ForestConfig struct {
	Trees       int `yaml:"trees" json:"trees"`
	MaxDepth    int `yaml:"max_depth" json:"max_depth"`
	MinLeaf     int `yaml:"min_leaf" json:"min_leaf"`
	MaxFeatures int `yaml:"max_features" json:"max_features"` // 0 = sqrt(L)
}

// BoostingConfig holds gradient boosting hyperparameters
type BoostingConfig struct {
	Rounds       int     `yaml:"rounds" json:"rounds"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxDepth     int     `yaml:"max_depth" json:"max_depth"`
	MinLeaf      int     `yaml:"min_leaf" json:"min_leaf"`
	Subsample    float64 `yaml:"subsample" json:"subsample"`
}

// Config selects and parameterises a variant
type Config struct {
	Variant  Variant        `yaml:"variant" json:"variant"`
	Seed     int64          `yaml:"seed" json:"seed"`
	Logistic LogisticConfig `yaml:"logistic" json:"logistic"`
	Forest   ForestConfig   `yaml:"forest" json:"forest"`
	Boosting BoostingConfig `yaml:"boosting" json:"boosting"`
}

// DefaultConfig returns the hyperparameters used when none are configured
func DefaultConfig() Config {
	return Config{
		Variant: VariantRandomForest,
		Seed:    42,
		Logistic: LogisticConfig{
			L2:            1e-4,
			MaxIterations: 200,
		},
		Forest: ForestConfig{
			Trees:    60,
			MaxDepth: 10,
			MinLeaf:  5,
		},
		Boosting: BoostingConfig{
			Rounds:       120,
			LearningRate: 0.1,
			MaxDepth:     3,
			MinLeaf:      10,
			Subsample:    0.8,
		},
	}
}

// Variants lists every supported variant
func Variants() []Variant {
	return []Variant{VariantLogisticRegression, VariantRandomForest, VariantGradientBoosting}
}

// Validate checks the configuration of the selected variant
func (c Config) Validate() error {
	invalid := func(option, reason string) error {
		return &domain.InvalidConfigurationError{Option: option, Reason: reason}
	}

	switch c.Variant {
	case VariantLogisticRegression:
		if c.Logistic.L2 < 0 || math.IsNaN(c.Logistic.L2) {
			return invalid("logistic.l2", "must be a non-negative number")
		}
		if c.Logistic.MaxIterations <= 0 {
			return invalid("logistic.max_iterations", "must be positive")
		}
	case VariantRandomForest:
		if c.Forest.Trees <= 0 {
			return invalid("forest.trees", "must be positive")
		}
		if c.Forest.MaxDepth <= 0 {
			return invalid("forest.max_depth", "must be positive")
		}
		if c.Forest.MinLeaf <= 0 {
			return invalid("forest.min_leaf", "must be positive")
		}
		if c.Forest.MaxFeatures < 0 {
			return invalid("forest.max_features", "must not be negative")
		}
	case VariantGradientBoosting:
		if c.Boosting.Rounds <= 0 {
			return invalid("boosting.rounds", "must be positive")
		}
		if !(c.Boosting.LearningRate > 0 && c.Boosting.LearningRate <= 1) {
			return invalid("boosting.learning_rate", "must be in (0, 1]")
		}
		if c.Boosting.MaxDepth <= 0 {
			return invalid("boosting.max_depth", "must be positive")
		}
		if c.Boosting.MinLeaf <= 0 {
			return invalid("boosting.min_leaf", "must be positive")
		}
		if !(c.Boosting.Subsample > 0 && c.Boosting.Subsample <= 1) {
			return invalid("boosting.subsample", "must be in (0, 1]")
		}
	default:
		return invalid("classifier_variant", fmt.Sprintf("unknown variant %q", c.Variant))
	}
	return nil
}

// New builds the classifier selected by cfg.Variant
func New(cfg Config, log zerolog.Logger) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.With().Str("component", "classifier").Str("variant", string(cfg.Variant)).Logger()

	switch cfg.Variant {
	case VariantLogisticRegression:
		return &LogisticRegression{cfg: cfg.Logistic, log: logger}, nil
	case VariantRandomForest:
		return &RandomForest{cfg: cfg.Forest, seed: cfg.Seed, log: logger}, nil
	default:
		return &GradientBoosting{cfg: cfg.Boosting, seed: cfg.Seed, log: logger}, nil
	}
}

// validateTrainingSet checks X/y shape and content and returns the feature count
func validateTrainingSet(X [][]float64, y []bool) (int, error) {
	if len(X) != len(y) {
		return 0, &domain.TrainingError{Reason: fmt.Sprintf("feature matrix has %d rows but label vector has %d", len(X), len(y))}
	}
	if len(X) == 0 {
		return 0, &domain.TrainingError{Reason: "empty training set"}
	}
	dim := len(X[0])
	if dim == 0 {
		return 0, &domain.TrainingError{Reason: "feature vectors are empty"}
	}
	for i, row := range X {
		if len(row) != dim {
			return 0, &domain.TrainingError{Reason: fmt.Sprintf("row %d has %d features, expected %d", i, len(row), dim)}
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, &domain.TrainingError{Reason: fmt.Sprintf("row %d contains a non-finite value", i)}
			}
		}
	}
	return dim, nil
}

// CheckPrevalence returns a LabelImbalanceWarning when positives are rarer than MinPrevalence
func CheckPrevalence(y []bool) *domain.LabelImbalanceWarning {
	if len(y) == 0 {
		return nil
	}
	p := prevalence(y)
	if p < MinPrevalence {
		return &domain.LabelImbalanceWarning{Prevalence: p, Minimum: MinPrevalence}
	}
	return nil
}

func prevalence(y []bool) float64 {
	positives := 0
	for _, v := range y {
		if v {
			positives++
		}
	}
	return float64(positives) / float64(len(y))
}

func warnOnImbalance(log zerolog.Logger, y []bool) {
	if w := CheckPrevalence(y); w != nil {
		log.Warn().
			Float64("prevalence", w.Prevalence).
			Float64("minimum", w.Minimum).
			Msg("Positive class is rare, probabilities may be poorly estimated")
	}
}

func checkDimension(expected int, x []float64) error {
	if len(x) != expected {
		return &domain.DimensionMismatchError{Expected: expected, Got: len(x)}
	}
	return nil
}
