package training

import (
	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/calibration"
	"github.com/aristath/creditrisk/internal/modules/classifier"
)

// Config controls a training run
type Config struct {
	TestSplitRatio      float64                   `yaml:"test_split_ratio" json:"test_split_ratio"`
	RandomSeed          int64                     `yaml:"random_seed" json:"random_seed"`
	ClassifierVariant   classifier.Variant        `yaml:"classifier_variant" json:"classifier_variant"`
	CalibrationMethod   calibration.Method        `yaml:"calibration_method" json:"calibration_method"`
	CalibrationFraction float64                   `yaml:"calibration_fraction" json:"calibration_fraction"`
	DecisionThreshold   float64                   `yaml:"decision_threshold" json:"decision_threshold"`
	CalibrationBins     int                       `yaml:"calibration_bins" json:"calibration_bins"`
	Logistic            classifier.LogisticConfig `yaml:"logistic" json:"logistic"`
	Forest              classifier.ForestConfig   `yaml:"forest" json:"forest"`
	Boosting            classifier.BoostingConfig `yaml:"boosting" json:"boosting"`
}

// DefaultConfig returns the settings used when no configuration file is given
func DefaultConfig() Config {
	clf := classifier.DefaultConfig()
	return Config{
		TestSplitRatio:      0.2,
		RandomSeed:          clf.Seed,
		ClassifierVariant:   clf.Variant,
		CalibrationMethod:   calibration.MethodIdentity,
		CalibrationFraction: 0.25,
		DecisionThreshold:   classifier.DefaultDecisionThreshold,
		CalibrationBins:     calibration.DefaultBins,
		Logistic:            clf.Logistic,
		Forest:              clf.Forest,
		Boosting:            clf.Boosting,
	}
}

// Classifier returns the classifier section of the configuration
func (c Config) Classifier() classifier.Config {
	return classifier.Config{
		Variant:  c.ClassifierVariant,
		Seed:     c.RandomSeed,
		Logistic: c.Logistic,
		Forest:   c.Forest,
		Boosting: c.Boosting,
	}
}

// Validate checks every option before any computation starts
func (c Config) Validate() error {
	invalid := func(option, reason string) error {
		return &domain.InvalidConfigurationError{Option: option, Reason: reason}
	}
	if !(c.TestSplitRatio > 0 && c.TestSplitRatio < 1) {
		return invalid("test_split_ratio", "must be in (0, 1)")
	}
	if !(c.DecisionThreshold > 0 && c.DecisionThreshold < 1) {
		return invalid("decision_threshold", "must be in (0, 1)")
	}
	if c.CalibrationBins <= 0 {
		return invalid("calibration_bins", "must be positive")
	}
	method, err := calibration.ParseMethod(string(c.CalibrationMethod))
	if err != nil {
		return err
	}
	if method != calibration.MethodIdentity && !(c.CalibrationFraction > 0 && c.CalibrationFraction < 1) {
		return invalid("calibration_fraction", "must be in (0, 1)")
	}
	return c.Classifier().Validate()
}

func (c Config) calibrates() bool {
	return c.CalibrationMethod != "" && c.CalibrationMethod != calibration.MethodIdentity
}
