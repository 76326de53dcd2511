package rules

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTableNotFound is returned when the rule file cannot be read.
	// Fatal at construction: there is no calculating without rules.
	ErrTableNotFound = errors.New("rule table not found")

	// ErrMalformedTable is returned when the rule file fails schema checks.
	ErrMalformedTable = errors.New("malformed rule table")

	// ErrNoCoveringRate is returned when a required lookup finds no row.
	// A gap in the table is a rule-table bug, never a valid zero-tax state,
	// so this is fatal rather than defaulted.
	ErrNoCoveringRate = errors.New("no covering rate in rule table")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NoCoveringRateError reports the lookup that found no row.
type NoCoveringRateError struct {
	AssetType          string
	HoldingPeriodYears int
}

func (e *NoCoveringRateError) Error() string {
	return fmt.Sprintf("no short-term rate covers asset_type=%q holding_period_years=%d",
		e.AssetType, e.HoldingPeriodYears)
}

func (e *NoCoveringRateError) Unwrap() error { return ErrNoCoveringRate }

// UnsupportedOperatorError reports an unknown condition operator.
type UnsupportedOperatorError struct {
	Operator string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported condition operator %q", e.Operator)
}
