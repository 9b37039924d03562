package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/features"
)

func numeric(name string) features.Feature {
	return features.Feature{Name: name, Field: name, Kind: features.KindNumeric}
}

func category(field, value string) features.Feature {
	return features.Feature{Name: field + "=" + value, Field: field, Kind: features.KindCategorical, Category: value}
}

func TestExplain(t *testing.T) {
	feats := []features.Feature{
		numeric(domain.FieldLoanPercentIncome),
		numeric(domain.FieldIncome),
		category(domain.FieldPreviousDefault, "Y"),
		numeric(domain.FieldAge),
	}
	importances := []float64{0.5, 0.3, 0.2, 0.4}
	directions := []float64{1, -1, 1, -1}
	// contributions: 1.0, 0.3, 0.2 and 0 (age is above the mean, the safe side)
	x := []float64{2, -1, 1, 0.5}

	out := explain(feats, importances, directions, x, 0.4, DefaultOptions())
	require.Len(t, out, 3)
	assert.Equal(t, domain.FieldLoanPercentIncome, out[0].Feature)
	assert.InDelta(t, 40.0/1.5, out[0].Impact, 1e-9)
	assert.Equal(t, "Loan-to-Income Ratio", out[0].Label)
	assert.Equal(t, domain.FieldIncome, out[1].Feature)
	assert.InDelta(t, 8.0, out[1].Impact, 1e-9)
	assert.Equal(t, "cb_person_default_on_file=Y", out[2].Feature)
	assert.InDelta(t, 0.2/1.5*40, out[2].Impact, 1e-9)
	assert.Equal(t, "Previous Default: Yes", out[2].Label)

	out = explain(feats, importances, directions, x, 0.4, Options{TopK: 3, MinImpact: 6})
	assert.Len(t, out, 2, "impacts below the minimum are skipped")

	out = explain(feats, importances, directions, x, 0.4, Options{TopK: 1, MinImpact: 0})
	assert.Len(t, out, 1)
}

func TestExplain_TiesKeepFeatureOrder(t *testing.T) {
	feats := []features.Feature{numeric(domain.FieldAge), numeric(domain.FieldIncome), numeric(domain.FieldLoanAmount)}
	out := explain(feats, []float64{0.2, 0.4, 0.4}, []float64{1, 1, 1}, []float64{1, 1, 1}, 0.5, DefaultOptions())
	require.Len(t, out, 3)
	assert.Equal(t, domain.FieldIncome, out[0].Feature)
	assert.Equal(t, domain.FieldLoanAmount, out[1].Feature)
	assert.Equal(t, domain.FieldAge, out[2].Feature)
}

func TestExplain_NothingPushesRiskUp(t *testing.T) {
	feats := []features.Feature{numeric(domain.FieldAge), numeric(domain.FieldIncome)}
	out := explain(feats, []float64{0.5, 0.5}, []float64{1, -1}, []float64{-1, 2}, 0.3, DefaultOptions())
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestLabelAndSuggestion(t *testing.T) {
	tests := []struct {
		feature    features.Feature
		label      string
		suggestion string
	}{
		{numeric(domain.FieldIncome), "Annual Income", suggestions[domain.FieldIncome]},
		{category(domain.FieldLoanIntent, "EDUCATION"), "Loan Purpose: Education", suggestions["loan_intent=EDUCATION"]},
		{category(domain.FieldLoanGrade, "B"), "Loan Grade: B", fallbackSuggestion},
		{category(domain.FieldLoanGrade, "E"), "Loan Grade: E", "A better loan grade (A to C) would significantly lower risk."},
		{category(domain.FieldLoanIntent, features.UnknownCategory), "Loan Purpose: Other", fallbackSuggestion},
		{category("employer_type", "PUBLIC"), "Employer Type: PUBLIC", fallbackSuggestion},
	}
	for _, tt := range tests {
		t.Run(tt.feature.Name, func(t *testing.T) {
			assert.Equal(t, tt.label, Label(tt.feature))
			assert.Equal(t, tt.suggestion, Suggestion(tt.feature))
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.ErrorIs(t, Options{TopK: 0}.Validate(), domain.ErrInvalidConfiguration)
	assert.ErrorIs(t, Options{TopK: 3, MinImpact: -1}.Validate(), domain.ErrInvalidConfiguration)
}
