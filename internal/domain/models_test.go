package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() ApplicantRecord {
	return ApplicantRecord{
		Age:                 30,
		Income:              75000,
		HomeOwnership:       "MORTGAGE",
		EmploymentLength:    5,
		LoanIntent:          "EDUCATION",
		LoanGrade:           "A",
		LoanAmount:          15000,
		InterestRate:        7.5,
		LoanPercentIncome:   0.2,
		PreviousDefault:     "N",
		CreditHistoryLength: 5,
	}
}

func TestApplicantRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ApplicantRecord)
		wantErr bool
	}{
		{name: "valid record", mutate: func(r *ApplicantRecord) {}},
		{name: "zero income allowed", mutate: func(r *ApplicantRecord) { r.Income = 0 }},
		{name: "zero age rejected", mutate: func(r *ApplicantRecord) { r.Age = 0 }, wantErr: true},
		{name: "negative income rejected", mutate: func(r *ApplicantRecord) { r.Income = -1 }, wantErr: true},
		{name: "zero loan amount rejected", mutate: func(r *ApplicantRecord) { r.LoanAmount = 0 }, wantErr: true},
		{name: "NaN interest rate rejected", mutate: func(r *ApplicantRecord) { r.InterestRate = math.NaN() }, wantErr: true},
		{name: "infinite history rejected", mutate: func(r *ApplicantRecord) { r.CreditHistoryLength = math.Inf(1) }, wantErr: true},
		{name: "missing grade rejected", mutate: func(r *ApplicantRecord) { r.LoanGrade = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidApplicant))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRiskTier_Recommendation(t *testing.T) {
	assert.Contains(t, RiskTierLow.Recommendation(), "low risk")
	assert.Contains(t, RiskTierMedium.Recommendation(), "Moderate")
	assert.Contains(t, RiskTierHigh.Recommendation(), "High risk")
	assert.Empty(t, RiskTier("Unknown").Recommendation())
}

func TestTypedErrors_Unwrap(t *testing.T) {
	var err error = &DimensionMismatchError{Expected: 30, Got: 29}
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Contains(t, err.Error(), "expected 30")

	err = &InsufficientDataError{Reason: "3 records"}
	assert.True(t, errors.Is(err, ErrInsufficientData))

	err = &InvalidConfigurationError{Option: "low_threshold", Reason: "must be below high_threshold"}
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "low_threshold")

	err = &UnseenCategoryError{Field: FieldLoanIntent, Value: "WEDDING"}
	assert.True(t, errors.Is(err, ErrUnseenCategory))

	err = &TrainingError{Reason: "length mismatch"}
	assert.True(t, errors.Is(err, ErrTraining))

	var mismatch *DimensionMismatchError
	wrapped := errors.Join(errors.New("context"), &DimensionMismatchError{Expected: 2, Got: 3})
	require.True(t, errors.As(wrapped, &mismatch))
	assert.Equal(t, 3, mismatch.Got)
}
