package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/aristath/creditrisk/internal/domain"
)

// MaxBatchSize bounds POST /api/score/batch
const MaxBatchSize = 1000

func numberProperty(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "minimum": 0, "description": description}
}

// categoryProperty lists the known values as examples only; unseen values are
// scored through the encoder's unknown slot and must not be rejected here.
func categoryProperty(description string, known []string) map[string]interface{} {
	examples := make([]interface{}, len(known))
	for i, v := range known {
		examples[i] = v
	}
	return map[string]interface{}{
		"type":        "string",
		"minLength":   1,
		"maxLength":   64,
		"description": description,
		"examples":    examples,
	}
}

// ApplicantSchema is the JSON Schema of a single applicant payload
func ApplicantSchema() map[string]interface{} {
	required := []interface{}{
		domain.FieldAge, domain.FieldIncome, domain.FieldHomeOwnership, domain.FieldEmploymentLength,
		domain.FieldLoanIntent, domain.FieldLoanGrade, domain.FieldLoanAmount, domain.FieldInterestRate,
		domain.FieldLoanPercentIncome, domain.FieldPreviousDefault, domain.FieldCreditHistoryLength,
	}
	return map[string]interface{}{
		"title":                "Loan applicant",
		"type":                 "object",
		"additionalProperties": false,
		"required":             required,
		"properties": map[string]interface{}{
			domain.FieldAge:                 numberProperty("Applicant age in years"),
			domain.FieldIncome:              numberProperty("Annual income"),
			domain.FieldHomeOwnership:       categoryProperty("Housing situation", domain.HomeOwnershipValues),
			domain.FieldEmploymentLength:    numberProperty("Years in current employment"),
			domain.FieldLoanIntent:          categoryProperty("Purpose of the loan", domain.LoanIntentValues),
			domain.FieldLoanGrade:           categoryProperty("Lender-assigned loan grade", domain.LoanGradeValues),
			domain.FieldLoanAmount:          numberProperty("Requested amount"),
			domain.FieldInterestRate:        numberProperty("Interest rate in percent"),
			domain.FieldLoanPercentIncome:   numberProperty("Loan amount divided by annual income"),
			domain.FieldPreviousDefault:     categoryProperty("Default on file (Y/N)", domain.DefaultFlagValues),
			domain.FieldCreditHistoryLength: numberProperty("Credit history length in years"),
		},
	}
}

// BatchSchema is the JSON Schema of a batch payload
func BatchSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "array",
		"minItems": 1,
		"maxItems": MaxBatchSize,
		"items":    ApplicantSchema(),
	}
}

// SchemaError lists every violation found in a payload
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("payload validation failed: %s", strings.Join(e.Violations, "; "))
}

var (
	applicantSchema = gojsonschema.NewGoLoader(ApplicantSchema())
	batchSchema     = gojsonschema.NewGoLoader(BatchSchema())
)

// decodeValidated checks body against schema and then decodes it into v
func decodeValidated(schema gojsonschema.JSONLoader, body []byte, v interface{}) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return &SchemaError{Violations: []string{"body is not valid JSON"}}
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &SchemaError{Violations: errs}
	}

	return json.Unmarshal(body, v)
}

// DecodeApplicant validates and decodes a single applicant document
func DecodeApplicant(body []byte) (domain.ApplicantRecord, error) {
	var record domain.ApplicantRecord
	err := decodeValidated(applicantSchema, body, &record)
	return record, err
}

// DecodeBatch validates and decodes an array of applicant documents
func DecodeBatch(body []byte) ([]domain.ApplicantRecord, error) {
	var records []domain.ApplicantRecord
	err := decodeValidated(batchSchema, body, &records)
	return records, err
}
