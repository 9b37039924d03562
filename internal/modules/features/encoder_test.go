package features

import (
	"errors"
	"math"
	"testing"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpus() []domain.ApplicantRecord {
	ownership := []string{"RENT", "OWN", "MORTGAGE", "RENT"}
	intents := []string{"EDUCATION", "MEDICAL", "VENTURE", "PERSONAL", "DEBTCONSOLIDATION", "HOMEIMPROVEMENT"}
	grades := []string{"A", "B", "C", "D"}
	flags := []string{"N", "Y", "N"}

	records := make([]domain.ApplicantRecord, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, domain.ApplicantRecord{
			Age:                 float64(22 + i),
			Income:              float64(30000 + 5000*i),
			HomeOwnership:       ownership[i%len(ownership)],
			EmploymentLength:    float64(i % 7),
			LoanIntent:          intents[i%len(intents)],
			LoanGrade:           grades[i%len(grades)],
			LoanAmount:          float64(5000 + 1000*i),
			InterestRate:        8 + float64(i)*0.5,
			LoanPercentIncome:   0.1 + float64(i)*0.01,
			PreviousDefault:     flags[i%len(flags)],
			CreditHistoryLength: float64(2 + i%5),
		})
	}
	return records
}

func TestFit_Layout(t *testing.T) {
	enc, err := Fit(corpus())
	require.NoError(t, err)
	require.NoError(t, enc.Validate())

	// 7 numeric + (3+1) ownership + (6+1) intent + (4+1) grade + (2+1) default flag
	assert.Equal(t, 7+4+7+5+3, enc.Dimension())

	names := enc.FeatureNames()
	require.Len(t, names, enc.Dimension())
	assert.Equal(t, domain.FieldAge, names[0])
	assert.Equal(t, domain.FieldCreditHistoryLength, names[6])
	assert.Equal(t, "person_home_ownership=MORTGAGE", names[7])
	assert.Equal(t, "person_home_ownership=<unknown>", names[10])
	assert.Equal(t, "cb_person_default_on_file=<unknown>", names[len(names)-1])

	assert.Equal(t, []string{"MORTGAGE", "OWN", "RENT"}, enc.Categorical[0].Values, "vocabulary is sorted")
}

func TestFit_InsufficientData(t *testing.T) {
	_, err := Fit(corpus()[:MinFitRecords-1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))

	records := corpus()
	for i := range records {
		records[i].LoanGrade = ""
	}
	_, err = Fit(records)
	require.Error(t, err)
	var insufficient *domain.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Contains(t, insufficient.Reason, domain.FieldLoanGrade)
}

func TestFit_ConstantNumericFieldUsesUnitScale(t *testing.T) {
	records := corpus()
	for i := range records {
		records[i].EmploymentLength = 4
	}
	enc, err := Fit(records)
	require.NoError(t, err)

	assert.Equal(t, 1.0, enc.Numeric[2].Std)
	vec := enc.Transform(records[0])
	assert.Equal(t, 0.0, vec[2])
}

func TestTransform_Deterministic(t *testing.T) {
	records := corpus()
	enc, err := Fit(records)
	require.NoError(t, err)

	for _, r := range records {
		copyOfRecord := r
		a := enc.Transform(r)
		b := enc.Transform(copyOfRecord)
		require.Len(t, a, enc.Dimension())
		for i := range a {
			assert.Equal(t, math.Float64bits(a[i]), math.Float64bits(b[i]), "position %d", i)
		}
	}
}

func TestTransform_StandardisesNumericFields(t *testing.T) {
	records := corpus()
	enc, err := Fit(records)
	require.NoError(t, err)

	X := enc.TransformAll(records)
	for col := 0; col < len(numericFields); col++ {
		sum := 0.0
		for _, row := range X {
			sum += row[col]
		}
		assert.InDelta(t, 0.0, sum/float64(len(X)), 1e-9, "column %d should be centred", col)
	}
}

func TestTransform_OneHotPerField(t *testing.T) {
	records := corpus()
	enc, err := Fit(records)
	require.NoError(t, err)

	vec := enc.Transform(records[1])
	offset := len(numericFields)
	for _, vocab := range enc.Categorical {
		active := 0.0
		for i := 0; i <= len(vocab.Values); i++ {
			active += vec[offset+i]
		}
		assert.Equal(t, 1.0, active, "field %s has exactly one active slot", vocab.Field)
		offset += len(vocab.Values) + 1
	}
}

func TestTransform_UnseenCategoryFallsBackToUnknown(t *testing.T) {
	enc, err := Fit(corpus())
	require.NoError(t, err)

	record := corpus()[0]
	record.LoanIntent = "WEDDING"

	var vec []float64
	require.NotPanics(t, func() { vec = enc.Transform(record) })

	unknownIdx, ok := enc.CategoryIndex(domain.FieldLoanIntent, "WEDDING")
	assert.False(t, ok)
	label, err := enc.Decode(domain.FieldLoanIntent, unknownIdx)
	require.NoError(t, err)
	assert.Equal(t, UnknownCategory, label)

	names := enc.FeatureNames()
	for i, name := range names {
		if name == "loan_intent=<unknown>" {
			assert.Equal(t, 1.0, vec[i])
		}
		if name == "loan_intent=EDUCATION" {
			assert.Equal(t, 0.0, vec[i])
		}
	}

	unseen := enc.Unseen(record)
	require.Len(t, unseen, 1)
	assert.Equal(t, domain.FieldLoanIntent, unseen[0].Field)
	assert.Equal(t, "WEDDING", unseen[0].Value)
	assert.True(t, errors.Is(unseen[0], domain.ErrUnseenCategory))

	assert.Empty(t, enc.Unseen(corpus()[0]))
}

func TestCategoryRoundTrip(t *testing.T) {
	enc, err := Fit(corpus())
	require.NoError(t, err)

	for _, vocab := range enc.Categorical {
		for _, value := range vocab.Values {
			idx, ok := enc.CategoryIndex(vocab.Field, value)
			require.True(t, ok)
			decoded, err := enc.Decode(vocab.Field, idx)
			require.NoError(t, err)
			assert.Equal(t, value, decoded)
		}
	}

	_, err = enc.Decode(domain.FieldLoanGrade, 99)
	assert.Error(t, err)
	_, err = enc.Decode("no_such_field", 0)
	assert.Error(t, err)
	idx, ok := enc.CategoryIndex("no_such_field", "A")
	assert.Equal(t, -1, idx)
	assert.False(t, ok)
}

func TestValidate_RejectsForeignLayout(t *testing.T) {
	enc, err := Fit(corpus())
	require.NoError(t, err)

	broken := *enc
	broken.Numeric = append([]NumericScaler{}, enc.Numeric[1:]...)
	assert.Error(t, broken.Validate())

	swapped := *enc
	swapped.Categorical = append([]Vocabulary{}, enc.Categorical...)
	swapped.Categorical[0], swapped.Categorical[1] = swapped.Categorical[1], swapped.Categorical[0]
	assert.Error(t, swapped.Validate())
}

func TestFeatures_Kinds(t *testing.T) {
	enc, err := Fit(corpus())
	require.NoError(t, err)

	feats := enc.Features()
	assert.Equal(t, KindNumeric, feats[0].Kind)
	assert.Empty(t, feats[0].Category)
	assert.Equal(t, KindCategorical, feats[7].Kind)
	assert.Equal(t, domain.FieldHomeOwnership, feats[7].Field)
	assert.Equal(t, "MORTGAGE", feats[7].Category)
}
