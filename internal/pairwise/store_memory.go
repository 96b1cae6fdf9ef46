package pairwise

import (
	"context"
	"sync"
	"time"

	"kanon/pkg/platform/sentinel"
)

// InMemoryStore keeps pair budgets in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	budgets map[PairKey]Budget
	queries map[PairKey][]QueryRecord
}

// NewInMemoryStore creates an empty in-memory pair store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		budgets: make(map[PairKey]Budget),
		queries: make(map[PairKey][]QueryRecord),
	}
}

func (s *InMemoryStore) Create(_ context.Context, budget Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.budgets[budget.Key]; exists {
		return sentinel.ErrConflict
	}
	s.budgets[budget.Key] = budget
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key PairKey) (Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	budget, ok := s.budgets[key]
	if !ok {
		return Budget{}, sentinel.ErrNotFound
	}
	return budget, nil
}

func (s *InMemoryStore) Update(_ context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.budgets[budget.Key]
	if !ok {
		return Budget{}, sentinel.ErrNotFound
	}
	if current.Version != budget.Version {
		return Budget{}, sentinel.ErrVersionConflict
	}
	budget.Version++
	s.budgets[budget.Key] = budget
	return budget, nil
}

func (s *InMemoryStore) AppendQuery(_ context.Context, record QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[record.Key] = append(s.queries[record.Key], record)
	return nil
}

func (s *InMemoryStore) ListQueriesSince(_ context.Context, key PairKey, since time.Time) ([]QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []QueryRecord
	for _, r := range s.queries[key] {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}
