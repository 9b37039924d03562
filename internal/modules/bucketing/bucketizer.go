// Package bucketing maps a calibrated PD to a risk tier.
package bucketing

import (
	"fmt"
	"math"

	"github.com/aristath/creditrisk/internal/domain"
)

const (
	DefaultLowThreshold  = 0.20
	DefaultHighThreshold = 0.50
)

// Config holds the tier cut points
type Config struct {
	LowThreshold  float64 `yaml:"low_threshold" json:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold" json:"high_threshold"`
}

// DefaultConfig returns the 0.20 / 0.50 cut points
func DefaultConfig() Config {
	return Config{LowThreshold: DefaultLowThreshold, HighThreshold: DefaultHighThreshold}
}

// Validate requires 0 <= low < high <= 1
func (c Config) Validate() error {
	for _, opt := range []struct {
		name  string
		value float64
	}{
		{"low_threshold", c.LowThreshold},
		{"high_threshold", c.HighThreshold},
	} {
		if math.IsNaN(opt.value) || opt.value < 0 || opt.value > 1 {
			return &domain.InvalidConfigurationError{Option: opt.name, Reason: fmt.Sprintf("%v is outside [0, 1]", opt.value)}
		}
	}
	if c.LowThreshold >= c.HighThreshold {
		return &domain.InvalidConfigurationError{
			Option: "low_threshold",
			Reason: fmt.Sprintf("%v must be below high_threshold %v", c.LowThreshold, c.HighThreshold),
		}
	}
	return nil
}

// Bucketizer classifies PDs against validated thresholds
type Bucketizer struct {
	cfg Config
}

// New validates cfg and returns a Bucketizer
func New(cfg Config) (*Bucketizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bucketizer{cfg: cfg}, nil
}

// Config returns the thresholds in use
func (b *Bucketizer) Config() Config {
	return b.cfg
}

// Classify returns Low below the low threshold, High above the high threshold and
// Medium otherwise, boundaries included.
func (b *Bucketizer) Classify(pd float64) domain.RiskTier {
	switch {
	case pd < b.cfg.LowThreshold:
		return domain.RiskTierLow
	case pd > b.cfg.HighThreshold:
		return domain.RiskTierHigh
	default:
		return domain.RiskTierMedium
	}
}
