// Package features turns raw applicant records into fixed-length numeric feature vectors.
//
// Layout of an encoded vector (L = 7 + sum over categorical fields of |vocabulary|+1):
//
//	person_age, person_income, person_emp_length, loan_amnt, loan_int_rate,
//	loan_percent_income, cb_person_cred_hist_length           (z-scores)
//	person_home_ownership=<v>... , person_home_ownership=<unknown>
//	loan_intent=<v>...           , loan_intent=<unknown>
//	loan_grade=<v>...            , loan_grade=<unknown>
//	cb_person_default_on_file=<v>..., cb_person_default_on_file=<unknown>
//
// Vocabularies are sorted, so the layout depends only on the set of values seen at fit time.
//
// Unseen categories: a value that was not observed during Fit is encoded into the
// field's <unknown> slot. The UnseenCategoryError raised by the lookup is recovered
// here and never reaches the caller; Unseen reports the fallbacks for logging.
package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// MinFitRecords is the smallest corpus Fit accepts
const MinFitRecords = 10

// UnknownCategory is the label of the reserved slot for values not seen during fitting
const UnknownCategory = "<unknown>"

// Kind distinguishes numeric from one-hot features
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

type numericField struct {
	name string
	get  func(domain.ApplicantRecord) float64
}

type categoricalField struct {
	name string
	get  func(domain.ApplicantRecord) string
}

// Field order is part of the encoding contract. Do not reorder.
var numericFields = []numericField{
	{domain.FieldAge, func(r domain.ApplicantRecord) float64 { return r.Age }},
	{domain.FieldIncome, func(r domain.ApplicantRecord) float64 { return r.Income }},
	{domain.FieldEmploymentLength, func(r domain.ApplicantRecord) float64 { return r.EmploymentLength }},
	{domain.FieldLoanAmount, func(r domain.ApplicantRecord) float64 { return r.LoanAmount }},
	{domain.FieldInterestRate, func(r domain.ApplicantRecord) float64 { return r.InterestRate }},
	{domain.FieldLoanPercentIncome, func(r domain.ApplicantRecord) float64 { return r.LoanPercentIncome }},
	{domain.FieldCreditHistoryLength, func(r domain.ApplicantRecord) float64 { return r.CreditHistoryLength }},
}

var categoricalFields = []categoricalField{
	{domain.FieldHomeOwnership, func(r domain.ApplicantRecord) string { return r.HomeOwnership }},
	{domain.FieldLoanIntent, func(r domain.ApplicantRecord) string { return r.LoanIntent }},
	{domain.FieldLoanGrade, func(r domain.ApplicantRecord) string { return r.LoanGrade }},
	{domain.FieldPreviousDefault, func(r domain.ApplicantRecord) string { return r.PreviousDefault }},
}

// NumericScaler holds the standardisation parameters of one numeric field
type NumericScaler struct {
	Field string  `json:"field" msgpack:"field"`
	Mean  float64 `json:"mean" msgpack:"mean"`
	Std   float64 `json:"std" msgpack:"std"`
}

// Vocabulary holds the sorted category values observed for one categorical field
type Vocabulary struct {
	Field  string   `json:"field" msgpack:"field"`
	Values []string `json:"values" msgpack:"values"`
}

// Feature describes one position of the encoded vector
type Feature struct {
	Name     string `json:"name"`
	Field    string `json:"field"`
	Kind     Kind   `json:"kind"`
	Category string `json:"category,omitempty"`
}

// FittedEncoder is the immutable state learned by Fit. Fields are exported for persistence only.
type FittedEncoder struct {
	Numeric     []NumericScaler `json:"numeric" msgpack:"numeric"`
	Categorical []Vocabulary    `json:"categorical" msgpack:"categorical"`
}

// Fit learns scaling parameters and category vocabularies from a training corpus
func Fit(records []domain.ApplicantRecord) (*FittedEncoder, error) {
	if len(records) < MinFitRecords {
		return nil, &domain.InsufficientDataError{
			Reason: fmt.Sprintf("encoder needs at least %d records, got %d", MinFitRecords, len(records)),
		}
	}

	enc := &FittedEncoder{
		Numeric:     make([]NumericScaler, 0, len(numericFields)),
		Categorical: make([]Vocabulary, 0, len(categoricalFields)),
	}

	column := make([]float64, len(records))
	for _, f := range numericFields {
		for i, r := range records {
			column[i] = f.get(r)
		}
		if !formulas.AllFinite(column) {
			return nil, &domain.InsufficientDataError{Reason: fmt.Sprintf("field %s contains non-finite values", f.name)}
		}
		mean, std := formulas.MeanStdDev(column)
		if std == 0 {
			std = 1
		}
		enc.Numeric = append(enc.Numeric, NumericScaler{Field: f.name, Mean: mean, Std: std})
	}

	for _, f := range categoricalFields {
		seen := make(map[string]struct{})
		for _, r := range records {
			if v := f.get(r); v != "" {
				seen[v] = struct{}{}
			}
		}
		if len(seen) == 0 {
			return nil, &domain.InsufficientDataError{Reason: fmt.Sprintf("field %s has no observed values", f.name)}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		enc.Categorical = append(enc.Categorical, Vocabulary{Field: f.name, Values: values})
	}

	return enc, nil
}

// Validate checks that a deserialized encoder matches the field layout of this build
func (e *FittedEncoder) Validate() error {
	if len(e.Numeric) != len(numericFields) || len(e.Categorical) != len(categoricalFields) {
		return fmt.Errorf("encoder layout has %d numeric and %d categorical fields, expected %d and %d",
			len(e.Numeric), len(e.Categorical), len(numericFields), len(categoricalFields))
	}
	for i, f := range numericFields {
		if e.Numeric[i].Field != f.name {
			return fmt.Errorf("numeric field %d is %s, expected %s", i, e.Numeric[i].Field, f.name)
		}
		if e.Numeric[i].Std <= 0 {
			return fmt.Errorf("numeric field %s has non-positive scale", f.name)
		}
	}
	for i, f := range categoricalFields {
		if e.Categorical[i].Field != f.name {
			return fmt.Errorf("categorical field %d is %s, expected %s", i, e.Categorical[i].Field, f.name)
		}
		if !sort.StringsAreSorted(e.Categorical[i].Values) {
			return fmt.Errorf("vocabulary of %s is not sorted", f.name)
		}
	}
	return nil
}

// Dimension returns the length L of every encoded vector
func (e *FittedEncoder) Dimension() int {
	n := len(e.Numeric)
	for _, v := range e.Categorical {
		n += len(v.Values) + 1
	}
	return n
}

// Transform encodes a single record
func (e *FittedEncoder) Transform(record domain.ApplicantRecord) []float64 {
	vec := make([]float64, e.Dimension())

	for i, f := range numericFields {
		s := e.Numeric[i]
		vec[i] = (f.get(record) - s.Mean) / s.Std
	}

	offset := len(e.Numeric)
	for i, f := range categoricalFields {
		vocab := e.Categorical[i]
		idx, err := vocab.lookup(f.get(record))
		var unseen *domain.UnseenCategoryError
		if errors.As(err, &unseen) {
			idx = len(vocab.Values)
		}
		vec[offset+idx] = 1
		offset += len(vocab.Values) + 1
	}

	return vec
}

// TransformAll encodes a batch of records into a feature matrix
func (e *FittedEncoder) TransformAll(records []domain.ApplicantRecord) [][]float64 {
	X := make([][]float64, len(records))
	for i, r := range records {
		X[i] = e.Transform(r)
	}
	return X
}

// Unseen lists the categorical values of record that fall back to the <unknown> slot
func (e *FittedEncoder) Unseen(record domain.ApplicantRecord) []*domain.UnseenCategoryError {
	var out []*domain.UnseenCategoryError
	for i, f := range categoricalFields {
		var unseen *domain.UnseenCategoryError
		if _, err := e.Categorical[i].lookup(f.get(record)); errors.As(err, &unseen) {
			out = append(out, unseen)
		}
	}
	return out
}

// Features describes every position of the encoded vector, in order
func (e *FittedEncoder) Features() []Feature {
	out := make([]Feature, 0, e.Dimension())
	for _, s := range e.Numeric {
		out = append(out, Feature{Name: s.Field, Field: s.Field, Kind: KindNumeric})
	}
	for _, v := range e.Categorical {
		for _, c := range append(append([]string{}, v.Values...), UnknownCategory) {
			out = append(out, Feature{
				Name:     v.Field + "=" + c,
				Field:    v.Field,
				Kind:     KindCategorical,
				Category: c,
			})
		}
	}
	return out
}

// FeatureNames returns the name of every position of the encoded vector
func (e *FittedEncoder) FeatureNames() []string {
	feats := e.Features()
	names := make([]string, len(feats))
	for i, f := range feats {
		names[i] = f.Name
	}
	return names
}

// CategoryIndex returns the index of value within the vocabulary of field.
// Unseen values map to the <unknown> index and report false.
func (e *FittedEncoder) CategoryIndex(field, value string) (int, bool) {
	vocab, ok := e.vocabulary(field)
	if !ok {
		return -1, false
	}
	idx, err := vocab.lookup(value)
	if err != nil {
		return len(vocab.Values), false
	}
	return idx, true
}

// Decode maps a vocabulary index of field back to its category label
func (e *FittedEncoder) Decode(field string, index int) (string, error) {
	vocab, ok := e.vocabulary(field)
	if !ok {
		return "", fmt.Errorf("unknown categorical field %s", field)
	}
	switch {
	case index >= 0 && index < len(vocab.Values):
		return vocab.Values[index], nil
	case index == len(vocab.Values):
		return UnknownCategory, nil
	default:
		return "", fmt.Errorf("index %d out of range for field %s", index, field)
	}
}

func (e *FittedEncoder) vocabulary(field string) (Vocabulary, bool) {
	for _, v := range e.Categorical {
		if v.Field == field {
			return v, true
		}
	}
	return Vocabulary{}, false
}

func (v Vocabulary) lookup(value string) (int, error) {
	idx := sort.SearchStrings(v.Values, value)
	if idx < len(v.Values) && v.Values[idx] == value {
		return idx, nil
	}
	return -1, &domain.UnseenCategoryError{Field: v.Field, Value: value}
}
