/*
errors.go - Centralized error types for the fact model

PURPOSE:
  All error types in one place for consistency and discoverability.
  Each failure condition maps to one named error kind so calling code
  (API layer, CLI) can branch on it with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - Bad input the caller can correct and retry
  2. State errors - Broken call sequence (freeze twice, mutate frozen)

The calculation and rule-table packages define their own errors; this file
only covers facts and the ledger lifecycle.

SEE ALSO:
  - fact.go: Uses ConfidenceError
  - ledger.go: Uses the field and state errors
*/
package fact

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfidenceOutOfRange is returned when confidence is outside [0, 1].
	ErrConfidenceOutOfRange = errors.New("confidence must be between 0.0 and 1.0")

	// ErrConfirmedNotCertain is returned when a confirmed fact carries a
	// confidence other than 1.0.
	ErrConfirmedNotCertain = errors.New("confirmed fact must have confidence 1.0")

	// ErrUnknownField is returned for a field name the ledger has no slot for.
	ErrUnknownField = errors.New("unknown ledger field")

	// ErrLedgerFrozen is returned when mutating a frozen ledger.
	ErrLedgerFrozen = errors.New("ledger is frozen and cannot be modified")

	// ErrAlreadyFrozen is returned on a second Freeze call.
	ErrAlreadyFrozen = errors.New("ledger is already frozen")

	// ErrMissingRequiredFact is returned at Freeze when a required field is absent.
	ErrMissingRequiredFact = errors.New("required fact is missing")

	// ErrUnconfirmedFact is returned at Freeze when a required field is present
	// but not confirmed.
	ErrUnconfirmedFact = errors.New("required fact is not confirmed")

	// ErrDisposalBeforeAcquisition is returned when the dates are out of order.
	ErrDisposalBeforeAcquisition = errors.New("disposal date precedes acquisition date")

	// ErrNegativeAmount is returned for a negative price, cost, or period.
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfidenceError reports an invalid confidence/confirmation combination.
type ConfidenceError struct {
	Confidence float64
	Err        error
}

func (e *ConfidenceError) Error() string {
	return fmt.Sprintf("%v (got %v)", e.Err, e.Confidence)
}

func (e *ConfidenceError) Unwrap() error { return e.Err }

// FieldError ties a validation or state failure to a specific ledger field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for errors the caller can fix by supplying
// corrected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrConfidenceOutOfRange) ||
		errors.Is(err, ErrConfirmedNotCertain) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrMissingRequiredFact) ||
		errors.Is(err, ErrUnconfirmedFact) ||
		errors.Is(err, ErrDisposalBeforeAcquisition) ||
		errors.Is(err, ErrNegativeAmount)
}

// IsState returns true for broken call sequences - these indicate a bug in
// the surrounding workflow, not bad data.
func IsState(err error) bool {
	return errors.Is(err, ErrLedgerFrozen) ||
		errors.Is(err, ErrAlreadyFrozen)
}
