package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// Sigmoid is Platt scaling: PD = 1 / (1 + exp(A*raw + B))
type Sigmoid struct {
	A float64 `msgpack:"a" json:"a"`
	B float64 `msgpack:"b" json:"b"`
}

func (*Sigmoid) Method() Method { return MethodSigmoid }

func (c *Sigmoid) Calibrate(raw float64) float64 {
	return clampProbability(formulas.Sigmoid(-(c.A*raw + c.B)))
}

// fitSigmoid minimises the cross-entropy against Platt's smoothed targets,
// t+ = (N+ + 1)/(N+ + 2) and t- = 1/(N- + 2), which keeps the fit finite on
// separable holdouts.
func fitSigmoid(scores []float64, labels []bool) (*Sigmoid, error) {
	var nPos, nNeg float64
	for _, l := range labels {
		if l {
			nPos++
		} else {
			nNeg++
		}
	}
	hi := (nPos + 1) / (nPos + 2)
	lo := 1 / (nNeg + 2)
	targets := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			targets[i] = hi
		} else {
			targets[i] = lo
		}
	}

	// With z = A*f + B the calibrated probability is sigmoid(-z), so the per-sample
	// loss is log(1+exp(z)) - (1-t)*z and its derivative in z is t - sigmoid(-z).
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			a, b := params[0], params[1]
			loss := 0.0
			for i, f := range scores {
				z := a*f + b
				loss += formulas.Log1pExp(z) - (1-targets[i])*z
			}
			return loss
		},
		Grad: func(grad, params []float64) {
			a, b := params[0], params[1]
			grad[0], grad[1] = 0, 0
			for i, f := range scores {
				d := targets[i] - formulas.Sigmoid(-(a*f + b))
				grad[0] += d * f
				grad[1] += d
			}
		},
	}

	initial := []float64{0, math.Log((nNeg + 1) / (nPos + 1))}
	settings := &optimize.Settings{
		MajorIterations:   200,
		GradientThreshold: 1e-9,
	}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.LBFGS{})
	if result == nil || !formulas.AllFinite(result.X) {
		reason := "sigmoid calibration did not converge"
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return nil, &domain.TrainingError{Reason: reason}
	}
	return &Sigmoid{A: result.X[0], B: result.X[1]}, nil
}
