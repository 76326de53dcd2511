/*
snapshot.go - Flat, serializable view of a ledger

PURPOSE:
  Persistence and transport need a representation of a ledger that survives
  JSON and SQL without losing provenance or decimal precision. A snapshot
  renders every fact value to a string (decimals exactly, dates as ISO) and
  carries the full provenance columns; FromSnapshot rebuilds an equivalent
  ledger, including its frozen state.

ROUND-TRIP GUARANTEE:
  FromSnapshot(l.Snapshot()) produces a ledger whose facts, metadata, and
  frozen flag compare equal to the original. Stores rely on this.

SEE ALSO:
  - ledger.go: The live object this flattens
  - store/sqlite: Persists snapshots
*/
package fact

import (
	"fmt"
	"time"
)

// Value kinds used in snapshots. The kind is redundant with the field name
// but kept explicit so stored rows remain self-describing.
const (
	kindDate   = "date"
	kindMoney  = "money"
	kindBool   = "bool"
	kindInt    = "int"
	kindString = "string"
)

// FactSnapshot is one fact flattened for storage, value rendered to string.
type FactSnapshot struct {
	Field          string    `json:"field"`
	Kind           string    `json:"kind"`
	Value          string    `json:"value"`
	Source         string    `json:"source"`
	Confidence     float64   `json:"confidence"`
	IsConfirmed    bool      `json:"is_confirmed"`
	EnteredBy      string    `json:"entered_by"`
	EnteredAt      time.Time `json:"entered_at"`
	Notes          string    `json:"notes,omitempty"`
	Reference      string    `json:"reference,omitempty"`
	RuleVersion    string    `json:"rule_version,omitempty"`
	ReasoningTrace string    `json:"reasoning_trace,omitempty"`
}

// LedgerSnapshot is a whole ledger flattened for storage.
type LedgerSnapshot struct {
	TransactionID string         `json:"transaction_id"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	Version       int            `json:"version"`
	IsFrozen      bool           `json:"is_frozen"`
	Facts         []FactSnapshot `json:"facts"`
}

// Snapshot flattens the ledger for persistence or API responses.
func (l *Ledger) Snapshot() LedgerSnapshot {
	s := LedgerSnapshot{
		TransactionID: l.TransactionID,
		CreatedBy:     l.CreatedBy,
		CreatedAt:     l.CreatedAt,
		Version:       l.Version,
		IsFrozen:      l.frozen,
	}
	for _, m := range l.metas() {
		if m.present {
			s.Facts = append(s.Facts, m.snap)
		}
	}
	return s
}

// FromSnapshot rebuilds a ledger from its flattened form.
func FromSnapshot(s LedgerSnapshot) (*Ledger, error) {
	l := &Ledger{
		TransactionID: s.TransactionID,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
		Version:       s.Version,
	}
	for _, fs := range s.Facts {
		if err := restoreFact(l, fs); err != nil {
			return nil, err
		}
	}
	l.frozen = s.IsFrozen
	return l, nil
}

func restoreFact(l *Ledger, fs FactSnapshot) error {
	switch fs.Kind {
	case kindDate:
		v, err := ParseDate(fs.Value)
		if err != nil {
			return &FieldError{Field: fs.Field, Err: err}
		}
		return l.set(fs.Field, withProvenance(fs, v), l.CreatedBy)
	case kindMoney:
		v, err := coerceMoney(fs.Value)
		if err != nil {
			return &FieldError{Field: fs.Field, Err: err}
		}
		return l.set(fs.Field, withProvenance(fs, v), l.CreatedBy)
	case kindBool:
		v, err := coerceBool(fs.Value)
		if err != nil {
			return &FieldError{Field: fs.Field, Err: err}
		}
		return l.set(fs.Field, withProvenance(fs, v), l.CreatedBy)
	case kindInt:
		v, err := coerceInt(fs.Value)
		if err != nil {
			return &FieldError{Field: fs.Field, Err: err}
		}
		return l.set(fs.Field, withProvenance(fs, v), l.CreatedBy)
	case kindString:
		return l.set(fs.Field, withProvenance(fs, fs.Value), l.CreatedBy)
	default:
		return &FieldError{Field: fs.Field, Err: fmt.Errorf("unknown fact kind %q", fs.Kind)}
	}
}

func withProvenance[T any](fs FactSnapshot, value T) Fact[T] {
	return Fact[T]{
		Value:          value,
		Source:         Source(fs.Source),
		Confidence:     fs.Confidence,
		IsConfirmed:    fs.IsConfirmed,
		EnteredBy:      fs.EnteredBy,
		EnteredAt:      fs.EnteredAt,
		Notes:          fs.Notes,
		Reference:      fs.Reference,
		RuleVersion:    fs.RuleVersion,
		ReasoningTrace: fs.ReasoningTrace,
	}
}
