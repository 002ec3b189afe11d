// Package memstore is an in-process FindingStore, used for local runs and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/clousec/clousec/internal/dashboard"
	"github.com/clousec/clousec/model"
)

// Store keeps findings in insertion order under a single lock.
type Store struct {
	mu       sync.Mutex
	findings map[string]*model.Finding
	order    []string
}

// New returns an empty store.
func New() *Store {
	return &Store{findings: make(map[string]*model.Finding)}
}

// Upsert creates the finding or reopens/refreshes it, returning the prior status
// ("" when the finding was created).
func (s *Store) Upsert(_ context.Context, f model.Finding) (model.FindingStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findings[f.Fingerprint]
	if !ok {
		created := f
		created.Status = model.StatusOpen
		created.FirstSeen = f.LastSeen
		created.ResolvedAt = nil
		s.findings[f.Fingerprint] = &created
		s.order = append(s.order, f.Fingerprint)
		return "", nil
	}

	prior := existing.Status
	existing.Severity = f.Severity
	existing.Status = model.StatusOpen
	existing.LastSeen = f.LastSeen
	existing.ResolvedAt = nil
	return prior, nil
}

// Resolve marks an OPEN finding RESOLVED. It reports false when there was no
// OPEN finding with that fingerprint.
func (s *Store) Resolve(_ context.Context, fingerprint string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findings[fingerprint]
	if !ok || existing.Status != model.StatusOpen {
		return false, nil
	}
	existing.Status = model.StatusResolved
	resolvedAt := at
	existing.ResolvedAt = &resolvedAt
	return true, nil
}

// Find returns copies of the findings passing filter, in insertion order.
func (s *Store) Find(_ context.Context, filter model.FindingFilter) ([]model.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Finding{}
	for _, fp := range s.order {
		f := s.findings[fp]
		if !filter.Matches(*f) {
			continue
		}
		out = append(out, clone(*f))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Aggregate summarizes the whole set.
func (s *Store) Aggregate(ctx context.Context, sample int) (model.DashboardSummary, error) {
	all, err := s.Find(ctx, model.FindingFilter{})
	if err != nil {
		return model.DashboardSummary{}, err
	}
	return dashboard.Summarize(all, sample), nil
}

// Get returns one finding by fingerprint.
func (s *Store) Get(fingerprint string) (model.Finding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.findings[fingerprint]
	if !ok {
		return model.Finding{}, false
	}
	return clone(*f), true
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

func clone(f model.Finding) model.Finding {
	if f.ResolvedAt != nil {
		at := *f.ResolvedAt
		f.ResolvedAt = &at
	}
	return f
}
