package classifier

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/pkg/formulas"
)

// RandomForest bags CART trees grown on bootstrap samples with random feature subsets
type RandomForest struct {
	cfg  ForestConfig
	seed int64
	log  zerolog.Logger
}

// ForestModel is a fitted random forest; the probability is the mean leaf frequency
type ForestModel struct {
	Dim         int       `msgpack:"dim"`
	Trees       []Tree    `msgpack:"trees"`
	Importances []float64 `msgpack:"importances"`
}

func (rf *RandomForest) Variant() Variant { return VariantRandomForest }

func (rf *RandomForest) Fit(X [][]float64, y []bool) (Model, error) {
	dim, err := validateTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	warnOnImbalance(rf.log, y)

	maxFeatures := rf.cfg.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Max(1, math.Round(math.Sqrt(float64(dim)))))
	}

	target := formulas.BoolsToFloats(y)
	rng := newRand(rf.seed)
	builder := newTreeBuilder(X, target, rf.cfg.MaxDepth, rf.cfg.MinLeaf, maxFeatures, rng, meanLeaf(target))

	model := &ForestModel{Dim: dim, Trees: make([]Tree, 0, rf.cfg.Trees)}
	n := len(X)
	sample := make([]int, n)
	for t := 0; t < rf.cfg.Trees; t++ {
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		model.Trees = append(model.Trees, *builder.build(sample))
	}
	model.Importances = formulas.Normalize(builder.importances)

	nodes := 0
	for _, t := range model.Trees {
		nodes += len(t.Nodes)
	}
	rf.log.Debug().
		Int("trees", len(model.Trees)).
		Int("nodes", nodes).
		Int("max_features", maxFeatures).
		Msg("Random forest fitted")

	return model, nil
}

func (m *ForestModel) Variant() Variant { return VariantRandomForest }

func (m *ForestModel) Dimension() int { return m.Dim }

func (m *ForestModel) PredictProba(x []float64) (float64, error) {
	if err := checkDimension(m.Dim, x); err != nil {
		return 0, err
	}
	if len(m.Trees) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i := range m.Trees {
		sum += m.Trees[i].predict(x)
	}
	return formulas.Clamp(sum/float64(len(m.Trees)), 0, 1), nil
}

func (m *ForestModel) FeatureImportances() []float64 {
	return append([]float64(nil), m.Importances...)
}
