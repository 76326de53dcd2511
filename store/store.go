/*
Package store defines persistence for tax cases and their results.

PURPOSE:
  A case is one ledger (stored as its snapshot, fact rows with full
  provenance) plus zero or more calculation results. The interface is
  deliberately narrow: the engine computes, the store remembers, and
  nothing here understands tax law.

IMPLEMENTATIONS:
  memory: Map-backed, for tests and demos
  sqlite: File-backed with WAL, for the server

RESULT HISTORY:
  Results append; they are never updated or deleted. Recalculating a
  case under a newer rule table adds a row, preserving what was owed
  under the rules in force at the earlier run.

SEE ALSO:
  - fact.LedgerSnapshot: The stored case format
  - tax.Result: The stored result format
*/
package store

import (
	"context"
	"errors"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/tax"
)

// ErrCaseNotFound is returned when a transaction ID has no stored case.
var ErrCaseNotFound = errors.New("case not found")

// CaseStore persists ledgers and calculation results.
type CaseStore interface {
	// SaveCase inserts or replaces the case identified by the snapshot's
	// transaction ID.
	SaveCase(ctx context.Context, snap fact.LedgerSnapshot) error

	// LoadCase returns the case for a transaction ID, or ErrCaseNotFound.
	LoadCase(ctx context.Context, transactionID string) (fact.LedgerSnapshot, error)

	// ListCases returns every stored case, newest first.
	ListCases(ctx context.Context) ([]fact.LedgerSnapshot, error)

	// SaveResult appends one calculation result to a case's history.
	SaveResult(ctx context.Context, result *tax.Result) error

	// LoadResults returns a case's results, oldest first. An existing case
	// with no results returns an empty slice; an unknown case returns
	// ErrCaseNotFound.
	LoadResults(ctx context.Context, transactionID string) ([]tax.Result, error)

	// Reset clears all data. For tests and demos only.
	Reset(ctx context.Context) error

	Close() error
}
