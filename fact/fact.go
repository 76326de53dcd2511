/*
Package fact provides the provenance-tracked input model for tax calculation.

PURPOSE:
  Every input to a tax calculation - a price, a date, a house count - arrives
  from somewhere: a user typed it, a document scan produced it, an external
  system guessed it. This package wraps each datum in a Fact that carries its
  source, a confidence score, and a confirmation flag, so that a calculation
  can always answer "where did this number come from, and how sure are we?"

KEY CONCEPTS IN THIS FILE (fact.go):
  - Fact[T]: An immutable, typed value with provenance metadata
  - Source: Origin tag (user_input, agent_generated, system, ...)
  - Confirm/UpdateValue: Pure operations returning new Facts

DESIGN PRINCIPLES:
  1. Immutability: Facts are never modified; Confirm and UpdateValue return
     new values with fresh metadata
  2. Precision: Monetary facts hold decimal.Decimal, never binary floats
  3. The confirmation invariant: IsConfirmed implies Confidence == 1.0,
     enforced at every construction site
  4. Auditability: Every fact records who entered it, when, and why

USAGE:
  price, err := fact.New(decimal.NewFromInt(500_000_000),
      fact.SourceUserInput, 0.9, false, "tax-advisor-kim")
  confirmed := price.Confirm("tax-advisor-kim", "verified against registry")

SEE ALSO:
  - ledger.go: Named collection of facts for one tax case
  - errors.go: Validation and state error types
*/
package fact

import (
	"fmt"
	"time"
)

// =============================================================================
// SOURCE - Where a fact came from
// =============================================================================

type Source string

const (
	SourceUserInput      Source = "user_input"
	SourceAgentGenerated Source = "agent_generated"
	SourceSystem         Source = "system"
	SourceAPI            Source = "api"
	SourceDocument       Source = "document"
)

// =============================================================================
// FACT - Immutable value with provenance
// =============================================================================

// Fact wraps a typed value with source, confidence, and confirmation state.
//
// INVARIANTS:
//   - Confidence is in [0, 1]
//   - IsConfirmed == true implies Confidence == 1.0
//
// A Fact is a value type: copy it freely, never mutate it in place.
// Corrections go through Confirm or UpdateValue, which return new Facts.
type Fact[T any] struct {
	Value       T
	Source      Source
	Confidence  float64
	IsConfirmed bool
	EnteredBy   string
	EnteredAt   time.Time

	// Optional context
	Notes          string
	Reference      string // Supporting document, registry number, URL
	RuleVersion    string // Rule-table version used to derive the value
	ReasoningTrace string // Model output, when an agent produced the value
}

// New constructs a validated Fact. EnteredAt defaults to now.
func New[T any](value T, source Source, confidence float64, confirmed bool, enteredBy string) (Fact[T], error) {
	f := Fact[T]{
		Value:       value,
		Source:      source,
		Confidence:  confidence,
		IsConfirmed: confirmed,
		EnteredBy:   enteredBy,
		EnteredAt:   time.Now().UTC(),
	}
	if err := f.Validate(); err != nil {
		return Fact[T]{}, err
	}
	return f, nil
}

// Validate checks the confidence range and the confirmation invariant.
// Ledger ingestion calls this on every fact, including literals built
// directly by callers.
func (f Fact[T]) Validate() error {
	if f.Confidence < 0 || f.Confidence > 1 {
		return &ConfidenceError{Confidence: f.Confidence, Err: ErrConfidenceOutOfRange}
	}
	if f.IsConfirmed && f.Confidence != 1.0 {
		return &ConfidenceError{Confidence: f.Confidence, Err: ErrConfirmedNotCertain}
	}
	return nil
}

// Confirm returns a confirmed copy: Confidence forced to 1.0, metadata
// updated to record who confirmed and when. The receiver is unchanged.
func (f Fact[T]) Confirm(confirmedBy, notes string) Fact[T] {
	out := f
	out.Confidence = 1.0
	out.IsConfirmed = true
	out.EnteredBy = confirmedBy
	out.EnteredAt = time.Now().UTC()
	if notes != "" {
		out.Notes = notes
	}
	return out
}

// UpdateValue returns a copy carrying the new value. Confirmation is reset:
// a changed value must be re-confirmed before the ledger can freeze.
func (f Fact[T]) UpdateValue(newValue T, updatedBy, notes string) Fact[T] {
	out := f
	out.Value = newValue
	out.IsConfirmed = false
	out.EnteredBy = updatedBy
	out.EnteredAt = time.Now().UTC()
	if notes != "" {
		out.Notes = notes
	}
	return out
}

func (f Fact[T]) String() string {
	status := fmt.Sprintf("estimated(%.0f%%)", f.Confidence*100)
	if f.IsConfirmed {
		status = "confirmed"
	}
	return fmt.Sprintf("Fact(%v, %s, by=%s)", f.Value, status, f.EnteredBy)
}

// =============================================================================
// HELPER CONSTRUCTORS - Preset source/confidence defaults
// =============================================================================

// UserInput creates a fact typed in by a person. Confirmed input gets full
// confidence; unconfirmed input gets 0.9 - trusted, but pending verification.
func UserInput[T any](value T, enteredBy string, confirmed bool) Fact[T] {
	confidence := 0.9
	if confirmed {
		confidence = 1.0
	}
	return Fact[T]{
		Value:       value,
		Source:      SourceUserInput,
		Confidence:  confidence,
		IsConfirmed: confirmed,
		EnteredBy:   enteredBy,
		EnteredAt:   time.Now().UTC(),
	}
}

// Estimated creates an unconfirmed fact with caller-specified confidence,
// e.g. a price inferred from historical market data.
func Estimated[T any](value T, confidence float64, source Source) (Fact[T], error) {
	if source == "" {
		source = SourceSystem
	}
	return New(value, source, confidence, false, "system")
}

// FromAgent creates a fact produced by an automated agent, keeping the
// agent's reasoning alongside the value. Agent output is never confirmed
// on arrival - a person has to sign off before freeze.
func FromAgent[T any](value T, agentID, reasoning string, confidence float64) (Fact[T], error) {
	f, err := New(value, SourceAgentGenerated, confidence, false, agentID)
	if err != nil {
		return Fact[T]{}, err
	}
	f.Notes = fmt.Sprintf("generated by agent %s", agentID)
	f.ReasoningTrace = reasoning
	return f, nil
}
