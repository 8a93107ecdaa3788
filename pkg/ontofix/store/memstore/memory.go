package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu        sync.RWMutex
	suspected map[string][]string
	mups      map[string]map[string]store.MUPS
	reports   map[string]store.Report
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		suspected: make(map[string][]string),
		mups:      make(map[string]map[string]store.MUPS),
		reports:   make(map[string]store.Report),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveSuspected replaces the suspected axioms of an ontology.
func (s *Store) SaveSuspected(ctx context.Context, ontology string, axioms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspected[ontology] = slices.Clone(axioms)
	return nil
}

// LoadSuspected returns the saved suspected axioms, if any.
func (s *Store) LoadSuspected(ctx context.Context, ontology string) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	axs, ok := s.suspected[ontology]
	return slices.Clone(axs), ok, nil
}

// UpsertMUPS adds conflict sets; records already stored are kept once.
func (s *Store) UpsertMUPS(ctx context.Context, ontology string, ms []store.MUPS) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.mups[ontology]
	if !ok {
		byKey = make(map[string]store.MUPS)
		s.mups[ontology] = byKey
	}
	for _, m := range ms {
		if len(m.Axioms) == 0 {
			return fmt.Errorf("%w: empty mups for %s", internalerr.ErrInvalidInput, m.Entity)
		}
		m.Axioms = slices.Clone(m.Axioms)
		byKey[m.Key()] = m
	}
	return nil
}

// GetMUPS returns the stored conflict sets ordered by key.
func (s *Store) GetMUPS(ctx context.Context, ontology string) ([]store.MUPS, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.MUPS, 0, len(s.mups[ontology]))
	for _, m := range s.mups[ontology] {
		m.Axioms = slices.Clone(m.Axioms)
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b store.MUPS) int { return cmp.Compare(a.Key(), b.Key()) })
	return out, nil
}

// UpsertReport stores a report by ID.
func (s *Store) UpsertReport(ctx context.Context, r store.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		return fmt.Errorf("%w: report without id", internalerr.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.Errors = slices.Clone(r.Errors)
	s.reports[r.ID] = r
	return nil
}

// GetReport returns one report.
func (s *Store) GetReport(ctx context.Context, id string) (store.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return store.Report{}, fmt.Errorf("report %s: %w", id, internalerr.ErrNotFound)
	}
	r.Errors = slices.Clone(r.Errors)
	return r, nil
}

// GetReports returns the newest k reports of an ontology.
func (s *Store) GetReports(ctx context.Context, ontology string, k int) ([]store.Report, error) {
	if k <= 0 {
		k = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []store.Report
	for _, r := range s.reports {
		if r.Ontology == ontology {
			r.Errors = slices.Clone(r.Errors)
			result = append(result, r)
		}
	}
	// ULIDs sort by creation time
	slices.SortFunc(result, func(a, b store.Report) int { return cmp.Compare(b.ID, a.ID) })
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}
