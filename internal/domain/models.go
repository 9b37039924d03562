// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
)

// HomeOwnership represents the applicant's housing situation
type HomeOwnership string

const (
	HomeOwnershipRent     HomeOwnership = "RENT"
	HomeOwnershipOwn      HomeOwnership = "OWN"
	HomeOwnershipMortgage HomeOwnership = "MORTGAGE"
	HomeOwnershipOther    HomeOwnership = "OTHER"
)

// LoanIntent represents the declared purpose of the loan
type LoanIntent string

const (
	LoanIntentEducation         LoanIntent = "EDUCATION"
	LoanIntentMedical           LoanIntent = "MEDICAL"
	LoanIntentVenture           LoanIntent = "VENTURE"
	LoanIntentPersonal          LoanIntent = "PERSONAL"
	LoanIntentDebtConsolidation LoanIntent = "DEBTCONSOLIDATION"
	LoanIntentHomeImprovement   LoanIntent = "HOMEIMPROVEMENT"
)

// Field names as they appear in the reference dataset, JSON payloads and feature names.
const (
	FieldAge                 = "person_age"
	FieldIncome              = "person_income"
	FieldHomeOwnership       = "person_home_ownership"
	FieldEmploymentLength    = "person_emp_length"
	FieldLoanIntent          = "loan_intent"
	FieldLoanGrade           = "loan_grade"
	FieldLoanAmount          = "loan_amnt"
	FieldInterestRate        = "loan_int_rate"
	FieldLoanStatus          = "loan_status"
	FieldLoanPercentIncome   = "loan_percent_income"
	FieldPreviousDefault     = "cb_person_default_on_file"
	FieldCreditHistoryLength = "cb_person_cred_hist_length"
)

// Known categorical domains. Encoders learn their vocabularies from data; these lists
// drive input forms, schema enums and the synthetic generator.
var (
	HomeOwnershipValues = []string{"RENT", "OWN", "MORTGAGE", "OTHER"}
	LoanIntentValues    = []string{"EDUCATION", "MEDICAL", "VENTURE", "PERSONAL", "DEBTCONSOLIDATION", "HOMEIMPROVEMENT"}
	LoanGradeValues     = []string{"A", "B", "C", "D", "E", "F", "G"}
	DefaultFlagValues   = []string{"N", "Y"}
)

// ApplicantRecord is the raw loan application as submitted by a borrower
type ApplicantRecord struct {
	Age                 float64 `json:"person_age" msgpack:"person_age"`
	Income              float64 `json:"person_income" msgpack:"person_income"`
	HomeOwnership       string  `json:"person_home_ownership" msgpack:"person_home_ownership"`
	EmploymentLength    float64 `json:"person_emp_length" msgpack:"person_emp_length"`
	LoanIntent          string  `json:"loan_intent" msgpack:"loan_intent"`
	LoanGrade           string  `json:"loan_grade" msgpack:"loan_grade"`
	LoanAmount          float64 `json:"loan_amnt" msgpack:"loan_amnt"`
	InterestRate        float64 `json:"loan_int_rate" msgpack:"loan_int_rate"`
	LoanPercentIncome   float64 `json:"loan_percent_income" msgpack:"loan_percent_income"`
	PreviousDefault     string  `json:"cb_person_default_on_file" msgpack:"cb_person_default_on_file"`
	CreditHistoryLength float64 `json:"cb_person_cred_hist_length" msgpack:"cb_person_cred_hist_length"`
}

// LabeledRecord pairs an application with its observed outcome
type LabeledRecord struct {
	Record  ApplicantRecord
	Default bool
}

// Validate checks the record invariants. It returns an error wrapping ErrInvalidApplicant.
func (r ApplicantRecord) Validate() error {
	numeric := []struct {
		name     string
		value    float64
		positive bool
	}{
		{FieldAge, r.Age, true},
		{FieldIncome, r.Income, false},
		{FieldEmploymentLength, r.EmploymentLength, false},
		{FieldLoanAmount, r.LoanAmount, true},
		{FieldInterestRate, r.InterestRate, false},
		{FieldLoanPercentIncome, r.LoanPercentIncome, false},
		{FieldCreditHistoryLength, r.CreditHistoryLength, false},
	}
	for _, f := range numeric {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidApplicant, f.name)
		}
		if f.positive && f.value <= 0 {
			return fmt.Errorf("%w: %s must be greater than zero, got %v", ErrInvalidApplicant, f.name, f.value)
		}
		if !f.positive && f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidApplicant, f.name, f.value)
		}
	}

	categorical := []struct {
		name  string
		value string
	}{
		{FieldHomeOwnership, r.HomeOwnership},
		{FieldLoanIntent, r.LoanIntent},
		{FieldLoanGrade, r.LoanGrade},
		{FieldPreviousDefault, r.PreviousDefault},
	}
	for _, f := range categorical {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidApplicant, f.name)
		}
	}

	return nil
}

// RiskTier is the discrete bucket derived from a calibrated PD
type RiskTier string

const (
	RiskTierLow    RiskTier = "Low"
	RiskTierMedium RiskTier = "Medium"
	RiskTierHigh   RiskTier = "High"
)

// Recommendation returns the lender-facing note shown next to the tier
func (t RiskTier) Recommendation() string {
	switch t {
	case RiskTierLow:
		return "This applicant has a low risk of default. Likely eligible for favorable terms."
	case RiskTierMedium:
		return "Moderate risk. Consider additional verification or adjusted terms."
	case RiskTierHigh:
		return "High risk of default. Exercise caution, may require collateral or higher rates."
	default:
		return ""
	}
}

// PDResult is the outcome of scoring a single applicant
type PDResult struct {
	RawScore     float64  `json:"raw_score"`
	CalibratedPD float64  `json:"calibrated_pd"`
	RiskTier     RiskTier `json:"risk_tier"`
}
