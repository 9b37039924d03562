package calibration

import (
	"fmt"

	"github.com/aristath/creditrisk/internal/domain"
)

// DefaultBins is the number of equal-width reliability bins
const DefaultBins = 10

// CurvePoint describes one non-empty reliability bin
type CurvePoint struct {
	Lower        float64 `json:"lower" msgpack:"lower"`
	Upper        float64 `json:"upper" msgpack:"upper"`
	Count        int     `json:"count" msgpack:"count"`
	MeanPD       float64 `json:"mean_pd" msgpack:"mean_pd"`
	ObservedRate float64 `json:"observed_rate" msgpack:"observed_rate"`
}

// ReliabilityCurve calibrates raw scores with c and groups them into equal-width
// bins over [0, 1]. Empty bins are omitted. A PD of exactly 1 falls in the last bin.
func ReliabilityCurve(c Calibrator, scores []float64, labels []bool, bins int) ([]CurvePoint, error) {
	if bins <= 0 {
		return nil, &domain.InvalidConfigurationError{Option: "calibration_bins", Reason: "must be positive"}
	}
	if len(scores) != len(labels) {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("%d scores but %d labels", len(scores), len(labels)),
		}
	}
	if len(scores) == 0 {
		return nil, &domain.InsufficientDataError{Reason: "reliability curve needs at least one sample"}
	}

	counts := make([]int, bins)
	sumPD := make([]float64, bins)
	defaults := make([]int, bins)
	for i, raw := range scores {
		pd := c.Calibrate(raw)
		b := int(pd * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
		sumPD[b] += pd
		if labels[i] {
			defaults[b]++
		}
	}

	width := 1 / float64(bins)
	points := make([]CurvePoint, 0, bins)
	for b := 0; b < bins; b++ {
		if counts[b] == 0 {
			continue
		}
		points = append(points, CurvePoint{
			Lower:        float64(b) * width,
			Upper:        float64(b+1) * width,
			Count:        counts[b],
			MeanPD:       sumPD[b] / float64(counts[b]),
			ObservedRate: float64(defaults[b]) / float64(counts[b]),
		})
	}
	return points, nil
}

// BrierScore is the mean squared difference between calibrated PD and outcome
func BrierScore(c Calibrator, scores []float64, labels []bool) (float64, error) {
	if len(scores) != len(labels) || len(scores) == 0 {
		return 0, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("brier score needs matching non-empty inputs, got %d scores and %d labels", len(scores), len(labels)),
		}
	}
	total := 0.0
	for i, raw := range scores {
		d := c.Calibrate(raw)
		if labels[i] {
			d -= 1
		}
		total += d * d
	}
	return total / float64(len(scores)), nil
}
