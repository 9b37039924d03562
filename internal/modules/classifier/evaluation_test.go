package classifier

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/creditrisk/internal/domain"
)

func TestROCAUC(t *testing.T) {
	testCases := []struct {
		name     string
		scores   []float64
		labels   []bool
		expected float64
	}{
		{
			name:     "perfect separation",
			scores:   []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			labels:   []bool{false, false, false, true, true, true},
			expected: 1,
		},
		{
			name:     "inverted ranking",
			scores:   []float64{0.9, 0.8, 0.1, 0.2},
			labels:   []bool{false, false, true, true},
			expected: 0,
		},
		{
			name:     "one misordered pair",
			scores:   []float64{0, 3, 5, 6, 7.5, 8},
			labels:   []bool{false, true, false, true, true, true},
			expected: 0.875,
		},
		{
			name:     "all tied",
			scores:   []float64{0.4, 0.4, 0.4, 0.4},
			labels:   []bool{false, true, false, true},
			expected: 0.5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			auc, err := ROCAUC(tc.scores, tc.labels)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, auc, 1e-12)
		})
	}
}

func TestROCAUC_DeterministicAndNonMutating(t *testing.T) {
	scores := []float64{0.42, 0.13, 0.77, 0.5, 0.31, 0.66, 0.05, 0.91}
	labels := []bool{true, false, true, false, false, true, false, true}
	scoresCopy := append([]float64(nil), scores...)
	labelsCopy := append([]bool(nil), labels...)

	first, err := ROCAUC(scores, labels)
	require.NoError(t, err)
	second, err := ROCAUC(scores, labels)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(first), math.Float64bits(second))
	assert.Equal(t, scoresCopy, scores)
	assert.Equal(t, labelsCopy, labels)
}

func TestROCAUC_SingleClass(t *testing.T) {
	_, err := ROCAUC([]float64{0.1, 0.2}, []bool{true, true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	_, err = ROCAUC([]float64{0.1}, []bool{true, false})
	assert.True(t, errors.Is(err, domain.ErrTraining))
}

func TestEvaluateScores(t *testing.T) {
	scores := []float64{0.9, 0.6, 0.5, 0.4, 0.2, 0.1}
	labels := []bool{true, false, true, true, false, false}

	m, err := EvaluateScores(scores, labels, 0.5)
	require.NoError(t, err)

	// 0.5 sits on the threshold and counts as a predicted default
	assert.Equal(t, ConfusionMatrix{TruePositives: 2, FalsePositives: 1, TrueNegatives: 2, FalseNegatives: 1}, m.Confusion)
	assert.Equal(t, 6, m.Support)
	assert.Equal(t, 3, m.Positives)
	assert.InDelta(t, 4.0/6.0, m.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, m.F1, 1e-12)
	assert.InDelta(t, 7.0/9.0, m.ROCAUC, 1e-12)
}

func TestEvaluateScores_NoPredictedPositives(t *testing.T) {
	m, err := EvaluateScores([]float64{0.1, 0.2, 0.3}, []bool{true, false, false}, 0.9)
	require.NoError(t, err)
	assert.Zero(t, m.Precision)
	assert.Zero(t, m.Recall)
	assert.Zero(t, m.F1)
}

func TestEvaluateScores_InvalidThreshold(t *testing.T) {
	for _, threshold := range []float64{0, 1, -0.5, math.NaN()} {
		_, err := EvaluateScores([]float64{0.1, 0.9}, []bool{false, true}, threshold)
		assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration), "threshold %v", threshold)
	}
}
