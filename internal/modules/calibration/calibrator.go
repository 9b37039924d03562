// Package calibration maps raw classifier scores to calibrated probabilities of default.
package calibration

import (
	"fmt"
	"math"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// Method names a calibration strategy
type Method string

const (
	MethodIdentity Method = "identity"
	MethodIsotonic Method = "isotonic"
	MethodSigmoid  Method = "sigmoid"
)

// MinCalibrationSamples is the smallest holdout a fitted calibrator accepts
const MinCalibrationSamples = 10

// Calibrator turns a raw score into a probability in [0, 1]
type Calibrator interface {
	Method() Method
	Calibrate(raw float64) float64
}

// Methods lists every supported method
func Methods() []Method {
	return []Method{MethodIdentity, MethodIsotonic, MethodSigmoid}
}

// ParseMethod validates a method name. An empty name selects identity.
func ParseMethod(name string) (Method, error) {
	if name == "" {
		return MethodIdentity, nil
	}
	for _, m := range Methods() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", &domain.InvalidConfigurationError{
		Option: "calibration_method",
		Reason: fmt.Sprintf("unknown method %q", name),
	}
}

// Fit builds a calibrator of the given method from held-out scores and labels.
// Identity needs no data and ignores both slices.
func Fit(method Method, scores []float64, labels []bool) (Calibrator, error) {
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	if method == MethodIdentity || method == "" {
		return Identity{}, nil
	}

	if len(scores) != len(labels) {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("calibration set has %d scores but %d labels", len(scores), len(labels)),
		}
	}
	if len(scores) < MinCalibrationSamples {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("calibration needs at least %d samples, got %d", MinCalibrationSamples, len(scores)),
		}
	}
	if !formulas.AllFinite(scores) {
		return nil, &domain.InsufficientDataError{Reason: "calibration scores contain non-finite values"}
	}

	if method == MethodIsotonic {
		return fitIsotonic(scores, labels), nil
	}
	return fitSigmoid(scores, labels)
}

// Identity passes scores through unchanged apart from clamping into [0, 1]
type Identity struct{}

func (Identity) Method() Method { return MethodIdentity }

func (Identity) Calibrate(raw float64) float64 {
	return clampProbability(raw)
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return formulas.Clamp(p, 0, 1)
}
