/*
Package sqlite provides a SQLite-backed CaseStore.

PURPOSE:
  Persists tax cases as one row per case plus one row per fact, so the
  provenance columns (source, confidence, confirmed-by) stay queryable
  with plain SQL rather than buried in a JSON blob. Results are stored
  as JSON: they are read back whole, never queried by field, and the
  decimal-as-string encoding round-trips exactly.

KEY TABLES:
  cases:   One row per ledger version (frozen flag included)
  facts:   One row per fact, keyed (case_id, field)
  results: Append-only calculation history per case

APPEND-ONLY RESULTS:
  No UPDATE or DELETE ever touches the results table. A recalculation
  under a newer rule table adds a row; the history shows what was owed
  under each table version.

CONCURRENCY:
  sync.RWMutex serializes writers. SQLite is opened with WAL so readers
  do not block behind the writer.

USAGE:
  st, err := sqlite.New("./data/taxcases.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - store: Interface definition
  - store/memory: Map-backed implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/store"
	"github.com/warp/tax-engine/tax"
)

// Store implements store.CaseStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		transaction_id TEXT PRIMARY KEY,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		is_frozen BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cases_created_at
		ON cases(created_at DESC);

	-- One row per fact: provenance stays queryable in SQL.
	CREATE TABLE IF NOT EXISTS facts (
		case_id TEXT NOT NULL REFERENCES cases(transaction_id) ON DELETE CASCADE,
		field TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		source TEXT NOT NULL,
		confidence REAL NOT NULL,
		is_confirmed BOOLEAN NOT NULL,
		entered_by TEXT NOT NULL,
		entered_at TEXT NOT NULL,
		notes TEXT,
		reference TEXT,
		rule_version TEXT,
		reasoning_trace TEXT,
		PRIMARY KEY (case_id, field)
	);

	CREATE INDEX IF NOT EXISTS idx_facts_unconfirmed
		ON facts(case_id) WHERE is_confirmed = FALSE;

	-- Append-only calculation history.
	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL REFERENCES cases(transaction_id) ON DELETE CASCADE,
		rule_version TEXT NOT NULL,
		final_tax TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_case
		ON results(case_id, created_at ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CASES
// =============================================================================

// SaveCase replaces the whole case: case row upserted, fact rows rewritten,
// all in one transaction. Results are untouched.
func (s *Store) SaveCase(ctx context.Context, snap fact.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (transaction_id, created_by, created_at, version, is_frozen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			version = excluded.version,
			is_frozen = excluded.is_frozen,
			updated_at = excluded.updated_at
	`,
		snap.TransactionID, snap.CreatedBy,
		snap.CreatedAt.Format(time.RFC3339),
		snap.Version, snap.IsFrozen,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM facts WHERE case_id = ?", snap.TransactionID); err != nil {
		return fmt.Errorf("failed to clear facts: %w", err)
	}
	for _, f := range snap.Facts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO facts
			(case_id, field, kind, value, source, confidence, is_confirmed,
			 entered_by, entered_at, notes, reference, rule_version, reasoning_trace)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			snap.TransactionID, f.Field, f.Kind, f.Value, f.Source,
			f.Confidence, f.IsConfirmed, f.EnteredBy,
			f.EnteredAt.Format(time.RFC3339),
			f.Notes, f.Reference, f.RuleVersion, f.ReasoningTrace,
		)
		if err != nil {
			return fmt.Errorf("failed to save fact %s: %w", f.Field, err)
		}
	}

	return tx.Commit()
}

// LoadCase returns the snapshot for one transaction ID.
func (s *Store) LoadCase(ctx context.Context, transactionID string) (fact.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, err := s.loadCaseRow(ctx, transactionID)
	if err != nil {
		return fact.LedgerSnapshot{}, err
	}
	snap.Facts, err = s.loadFacts(ctx, transactionID)
	if err != nil {
		return fact.LedgerSnapshot{}, err
	}
	return snap, nil
}

func (s *Store) loadCaseRow(ctx context.Context, transactionID string) (fact.LedgerSnapshot, error) {
	var snap fact.LedgerSnapshot
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT transaction_id, created_by, created_at, version, is_frozen FROM cases WHERE transaction_id = ?",
		transactionID,
	).Scan(&snap.TransactionID, &snap.CreatedBy, &createdAt, &snap.Version, &snap.IsFrozen)

	if err == sql.ErrNoRows {
		return snap, store.ErrCaseNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("failed to load case: %w", err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return snap, nil
}

func (s *Store) loadFacts(ctx context.Context, transactionID string) ([]fact.FactSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, kind, value, source, confidence, is_confirmed,
		       entered_by, entered_at, notes, reference, rule_version, reasoning_trace
		FROM facts
		WHERE case_id = ?
		ORDER BY field ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	defer rows.Close()

	var facts []fact.FactSnapshot
	for rows.Next() {
		var f fact.FactSnapshot
		var enteredAt string
		var notes, reference, ruleVersion, reasoning sql.NullString
		if err := rows.Scan(
			&f.Field, &f.Kind, &f.Value, &f.Source, &f.Confidence, &f.IsConfirmed,
			&f.EnteredBy, &enteredAt, &notes, &reference, &ruleVersion, &reasoning,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f.EnteredAt, _ = time.Parse(time.RFC3339, enteredAt)
		f.Notes = notes.String
		f.Reference = reference.String
		f.RuleVersion = ruleVersion.String
		f.ReasoningTrace = reasoning.String
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ListCases returns every case, newest first.
func (s *Store) ListCases(ctx context.Context) ([]fact.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT transaction_id FROM cases ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var snaps []fact.LedgerSnapshot
	for _, id := range ids {
		snap, err := s.loadCaseRow(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.Facts, err = s.loadFacts(ctx, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// SaveResult appends one calculation result to the case's history.
func (s *Store) SaveResult(ctx context.Context, result *tax.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadCaseRow(ctx, result.TransactionID); err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (id, case_id, rule_version, final_tax, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(), result.TransactionID, result.RuleVersion,
		result.FinalTax.String(), string(payload),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LoadResults returns a case's calculation history, oldest first.
func (s *Store) LoadResults(ctx context.Context, transactionID string) ([]tax.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.loadCaseRow(ctx, transactionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT result_json FROM results WHERE case_id = ? ORDER BY created_at ASC",
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	results := []tax.Result{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r tax.Result
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"results", "facts", "cases"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
