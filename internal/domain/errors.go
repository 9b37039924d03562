package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below unwrap to these so callers can use errors.Is.
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrUnseenCategory       = errors.New("unseen category")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrTraining             = errors.New("training failed")
	ErrInvalidApplicant     = errors.New("invalid applicant record")
	ErrModelNotLoaded       = errors.New("no model loaded")
)

// InsufficientDataError reports a corpus that is too small or degenerate to learn from
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// UnseenCategoryError reports a categorical value that was not present when the encoder was fitted
type UnseenCategoryError struct {
	Field string
	Value string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("unseen category %q for field %s", e.Value, e.Field)
}

func (e *UnseenCategoryError) Unwrap() error { return ErrUnseenCategory }

// DimensionMismatchError reports a feature vector whose length differs from the fitted length
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d features, got %d", e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// InvalidConfigurationError reports an option that failed validation
type InvalidConfigurationError struct {
	Option string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Reason)
}

func (e *InvalidConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// TrainingError reports malformed training input
type TrainingError struct {
	Reason string
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed: %s", e.Reason)
}

func (e *TrainingError) Unwrap() error { return ErrTraining }

// LabelImbalanceWarning is a non-fatal diagnostic raised when the positive class is rare.
// It implements error so it can travel through the same channels, but it never aborts training.
type LabelImbalanceWarning struct {
	Prevalence float64
	Minimum    float64
}

func (w *LabelImbalanceWarning) Error() string {
	return fmt.Sprintf("label imbalance: positive prevalence %.4f is below %.4f", w.Prevalence, w.Minimum)
}
