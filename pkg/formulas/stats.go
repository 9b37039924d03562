// Package formulas holds the numeric building blocks shared by the model packages.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// MeanStdDev returns the mean and sample standard deviation.
// A single observation has zero spread.
func MeanStdDev(data []float64) (mean, std float64) {
	switch len(data) {
	case 0:
		return 0, 0
	case 1:
		return data[0], 0
	}
	return stat.MeanStdDev(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets.
// Returns 0 when either series is constant.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// Sigmoid is the numerically stable logistic function
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Log1pExp computes log(1 + exp(z)) without overflow
func Log1pExp(z float64) float64 {
	if z > 35 {
		return z
	}
	if z < -35 {
		return math.Exp(z)
	}
	return math.Log1p(math.Exp(z))
}

// Logit is the inverse of Sigmoid with p clamped away from 0 and 1
func Logit(p float64) float64 {
	p = Clamp(p, 1e-12, 1-1e-12)
	return math.Log(p / (1 - p))
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Normalize scales non-negative values so they sum to 1. All-zero input is returned unchanged.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	total := floats.Sum(out)
	if total <= 0 {
		return out
	}
	floats.Scale(1/total, out)
	return out
}

// AllFinite reports whether every value is neither NaN nor infinite
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BoolsToFloats maps true to 1 and false to 0
func BoolsToFloats(labels []bool) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			out[i] = 1
		}
	}
	return out
}
