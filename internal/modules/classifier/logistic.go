package classifier

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// LogisticRegression fits an L2-regularised logistic model with L-BFGS.
// Training starts from zero weights, so it is deterministic and ignores the seed.
type LogisticRegression struct {
	cfg LogisticConfig
	log zerolog.Logger
}

// LogisticModel is a fitted logistic regression
type LogisticModel struct {
	Weights   []float64 `msgpack:"weights"`
	Intercept float64   `msgpack:"intercept"`
}

func (lr *LogisticRegression) Variant() Variant { return VariantLogisticRegression }

// Fit minimises mean log-loss + (L2/2)*||w||^2. The intercept is not penalised.
func (lr *LogisticRegression) Fit(X [][]float64, y []bool) (Model, error) {
	dim, err := validateTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	warnOnImbalance(lr.log, y)

	targets := formulas.BoolsToFloats(y)
	n := float64(len(X))
	l2 := lr.cfg.L2

	// params[0] is the intercept, params[1:] are the weights
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			b, w := params[0], params[1:]
			loss := 0.0
			for i, row := range X {
				z := b + floats.Dot(w, row)
				loss += formulas.Log1pExp(z) - targets[i]*z
			}
			return loss/n + 0.5*l2*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			b, w := params[0], params[1:]
			for i := range grad {
				grad[i] = 0
			}
			gw := grad[1:]
			for i, row := range X {
				residual := formulas.Sigmoid(b+floats.Dot(w, row)) - targets[i]
				grad[0] += residual
				floats.AddScaled(gw, residual, row)
			}
			floats.Scale(1/n, grad)
			floats.AddScaled(gw, l2, w)
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   lr.cfg.MaxIterations,
		GradientThreshold: 1e-7,
	}

	initial := make([]float64, dim+1)
	result, err := optimize.Minimize(problem, initial, settings, &optimize.LBFGS{})
	if result == nil || !formulas.AllFinite(result.X) {
		reason := "optimizer returned no finite solution"
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return nil, &domain.TrainingError{Reason: reason}
	}
	if err != nil {
		// Line search stalls near the optimum are reported as errors but leave a usable location.
		lr.log.Debug().Err(err).Str("status", result.Status.String()).Msg("Optimizer stopped early")
	}

	lr.log.Debug().
		Int("iterations", result.Stats.MajorIterations).
		Float64("loss", result.F).
		Msg("Logistic regression fitted")

	params := result.X
	return &LogisticModel{
		Weights:   append([]float64(nil), params[1:]...),
		Intercept: params[0],
	}, nil
}

func (m *LogisticModel) Variant() Variant { return VariantLogisticRegression }

func (m *LogisticModel) Dimension() int { return len(m.Weights) }

func (m *LogisticModel) PredictProba(x []float64) (float64, error) {
	if err := checkDimension(len(m.Weights), x); err != nil {
		return 0, err
	}
	return formulas.Sigmoid(m.Intercept + floats.Dot(m.Weights, x)), nil
}

// FeatureImportances returns normalised absolute weights. Inputs are standardised
// or one-hot, so weight magnitudes are comparable across features.
func (m *LogisticModel) FeatureImportances() []float64 {
	abs := make([]float64, len(m.Weights))
	for i, w := range m.Weights {
		abs[i] = math.Abs(w)
	}
	return formulas.Normalize(abs)
}
