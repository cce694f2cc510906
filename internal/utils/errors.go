package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrNoPriceData is returned when no symbol has a bar on the requested date.
	// It is the only condition that aborts a whole run.
	ErrNoPriceData = errors.New("no price data for the requested date")

	// ErrInsufficientHistory marks a symbol that cannot be scored at all on a date.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrMissingFundamentals marks a symbol without earnings or income statements.
	// The engine never fails on it; it is surfaced only in run reports.
	ErrMissingFundamentals = errors.New("no fundamentals available")
)

// SkipReason explains why a symbol produced no scorecard in a run.
type SkipReason string

const (
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipNoFundamentals      SkipReason = "no_fundamentals"
	SkipInvalidSeries       SkipReason = "invalid_series"
	SkipLoadFailed          SkipReason = "load_failed"
	SkipCancelled           SkipReason = "cancelled"
)

// SkipReasonFor maps an evaluation error to the reason recorded in run reports.
func SkipReasonFor(err error) SkipReason {
	switch {
	case errors.Is(err, ErrInsufficientHistory):
		return SkipInsufficientHistory
	case errors.Is(err, ErrMissingFundamentals):
		return SkipNoFundamentals
	case IsValidationError(err):
		return SkipInvalidSeries
	default:
		return SkipLoadFailed
	}
}
