// Package memory provides a map-backed CaseStore for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/store"
	"github.com/warp/tax-engine/tax"
)

type Store struct {
	mu      sync.RWMutex
	cases   map[string]fact.LedgerSnapshot
	results map[string][]tax.Result
}

func New() *Store {
	return &Store{
		cases:   make(map[string]fact.LedgerSnapshot),
		results: make(map[string][]tax.Result),
	}
}

func (s *Store) SaveCase(_ context.Context, snap fact.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[snap.TransactionID] = snap
	return nil
}

func (s *Store) LoadCase(_ context.Context, transactionID string) (fact.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.cases[transactionID]
	if !ok {
		return fact.LedgerSnapshot{}, store.ErrCaseNotFound
	}
	return snap, nil
}

func (s *Store) ListCases(_ context.Context) ([]fact.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fact.LedgerSnapshot, 0, len(s.cases))
	for _, snap := range s.cases {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) SaveResult(_ context.Context, result *tax.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[result.TransactionID]; !ok {
		return store.ErrCaseNotFound
	}
	s.results[result.TransactionID] = append(s.results[result.TransactionID], *result)
	return nil
}

func (s *Store) LoadResults(_ context.Context, transactionID string) ([]tax.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.cases[transactionID]; !ok {
		return nil, store.ErrCaseNotFound
	}
	out := make([]tax.Result, len(s.results[transactionID]))
	copy(out, s.results[transactionID])
	return out, nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = make(map[string]fact.LedgerSnapshot)
	s.results = make(map[string][]tax.Result)
	return nil
}

func (s *Store) Close() error { return nil }
