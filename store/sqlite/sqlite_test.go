package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/rules"
	"github.com/warp/tax-engine/store"
	"github.com/warp/tax-engine/tax"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleLedger(t *testing.T) *fact.Ledger {
	t.Helper()
	l, err := fact.Create(map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	}, "tester")
	require.NoError(t, err)
	return l
}

func TestCaseRoundTrip(t *testing.T) {
	// GIVEN a frozen ledger saved as a case
	s := newStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, l.ConfirmAll("tester"))
	require.NoError(t, l.Freeze())
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	// WHEN it is loaded back
	snap, err := s.LoadCase(ctx, l.TransactionID)
	require.NoError(t, err)

	// THEN the rebuilt ledger matches: facts, provenance, frozen state
	back, err := fact.FromSnapshot(snap)
	require.NoError(t, err)
	assert.True(t, back.IsFrozen())
	assert.Equal(t, l.Version, back.Version)
	assert.True(t, back.AcquisitionPrice.Value.Equal(l.AcquisitionPrice.Value))
	assert.True(t, back.AcquisitionPrice.IsConfirmed)
	assert.Equal(t, l.AcquisitionDate.Value, back.AcquisitionDate.Value)
	assert.Equal(t, fact.SourceUserInput, back.DisposalPrice.Source)
}

func TestLoadCaseNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadCase(context.Background(), "no-such-case")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCaseNotFound))
}

func TestSaveCaseReplacesFacts(t *testing.T) {
	// Saving the same case again rewrites the fact rows in place.
	s := newStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	require.NoError(t, l.UpdateField(fact.FieldDisposalPrice, 850_000_000))
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	snap, err := s.LoadCase(ctx, l.TransactionID)
	require.NoError(t, err)
	back, err := fact.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "850000000", back.DisposalPrice.Value.String())
}

func TestListCases(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	l1 := sampleLedger(t)
	l2 := sampleLedger(t)
	require.NoError(t, s.SaveCase(ctx, l1.Snapshot()))
	require.NoError(t, s.SaveCase(ctx, l2.Snapshot()))

	snaps, err := s.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for _, snap := range snaps {
		assert.Len(t, snap.Facts, 4)
	}
}

func TestResultHistoryAppends(t *testing.T) {
	// GIVEN a stored case with one calculation
	s := newStore(t)
	ctx := context.Background()
	engine, err := rules.NewDefault()
	require.NoError(t, err)
	calc := tax.New(engine)

	l := sampleLedger(t)
	require.NoError(t, l.ConfirmAll("tester"))
	require.NoError(t, l.Freeze())
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	r1, err := calc.Calculate(l, false)
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, r1))

	// WHEN a second calculation is saved
	r2, err := calc.Calculate(l, false)
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, r2))

	// THEN both rows survive, oldest first, amounts exact
	results, err := s.LoadResults(ctx, l.TransactionID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].FinalTax.Equal(r1.FinalTax))
	assert.Equal(t, "2024.11", results[0].RuleVersion)
	assert.Equal(t, r1.Traces, results[0].Traces)
}

func TestSaveResultUnknownCase(t *testing.T) {
	s := newStore(t)
	err := s.SaveResult(context.Background(), &tax.Result{TransactionID: "ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCaseNotFound))
}

func TestLoadResultsEmptyHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	results, err := s.LoadResults(ctx, l.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, s.SaveCase(ctx, l.Snapshot()))

	require.NoError(t, s.Reset(ctx))

	_, err := s.LoadCase(ctx, l.TransactionID)
	assert.True(t, errors.Is(err, store.ErrCaseNotFound))
}
