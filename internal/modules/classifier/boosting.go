package classifier

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/pkg/formulas"
)

// maxLeafStep bounds a single Newton step in log-odds space
const maxLeafStep = 10.0

// GradientBoosting fits an additive log-odds model of shallow regression trees
// to the binomial deviance, using Newton steps in the leaves.
type GradientBoosting struct {
	cfg  BoostingConfig
	seed int64
	log  zerolog.Logger
}

// BoostingModel is a fitted gradient boosting model
type BoostingModel struct {
	Dim          int       `msgpack:"dim"`
	InitialLogit float64   `msgpack:"initial_logit"`
	LearningRate float64   `msgpack:"learning_rate"`
	Trees        []Tree    `msgpack:"trees"`
	Importances  []float64 `msgpack:"importances"`
}

func (gb *GradientBoosting) Variant() Variant { return VariantGradientBoosting }

func (gb *GradientBoosting) Fit(X [][]float64, y []bool) (Model, error) {
	dim, err := validateTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	warnOnImbalance(gb.log, y)

	labels := formulas.BoolsToFloats(y)
	n := len(X)
	rng := newRand(gb.seed)

	model := &BoostingModel{
		Dim:          dim,
		InitialLogit: formulas.Logit(prevalence(y)),
		LearningRate: gb.cfg.LearningRate,
		Trees:        make([]Tree, 0, gb.cfg.Rounds),
	}

	logits := make([]float64, n)
	for i := range logits {
		logits[i] = model.InitialLogit
	}

	residuals := make([]float64, n)
	hessians := make([]float64, n)
	newtonLeaf := func(rows []int) float64 {
		var g, h float64
		for _, r := range rows {
			g += residuals[r]
			h += hessians[r]
		}
		if h < 1e-12 {
			return 0
		}
		return formulas.Clamp(g/h, -maxLeafStep, maxLeafStep)
	}
	builder := newTreeBuilder(X, residuals, gb.cfg.MaxDepth, gb.cfg.MinLeaf, 0, rng, newtonLeaf)

	sampleSize := int(math.Max(1, math.Round(gb.cfg.Subsample*float64(n))))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < gb.cfg.Rounds; round++ {
		for i := range logits {
			p := formulas.Sigmoid(logits[i])
			residuals[i] = labels[i] - p
			hessians[i] = p * (1 - p)
		}

		rows := all
		if sampleSize < n {
			perm := rng.Perm(n)
			rows = perm[:sampleSize]
		}

		tree := builder.build(rows)
		model.Trees = append(model.Trees, *tree)
		for i, row := range X {
			logits[i] += gb.cfg.LearningRate * tree.predict(row)
		}
	}
	model.Importances = formulas.Normalize(builder.importances)

	gb.log.Debug().
		Int("rounds", len(model.Trees)).
		Float64("initial_logit", model.InitialLogit).
		Msg("Gradient boosting fitted")

	return model, nil
}

func (m *BoostingModel) Variant() Variant { return VariantGradientBoosting }

func (m *BoostingModel) Dimension() int { return m.Dim }

func (m *BoostingModel) PredictProba(x []float64) (float64, error) {
	if err := checkDimension(m.Dim, x); err != nil {
		return 0, err
	}
	logit := m.InitialLogit
	for i := range m.Trees {
		logit += m.LearningRate * m.Trees[i].predict(x)
	}
	return formulas.Sigmoid(logit), nil
}

func (m *BoostingModel) FeatureImportances() []float64 {
	return append([]float64(nil), m.Importances...)
}
