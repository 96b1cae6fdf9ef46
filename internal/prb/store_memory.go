package prb

import (
	"context"
	"sync"

	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// InMemoryStore keeps budgets in process memory. Suitable for tests and
// single-node deployments without Postgres.
type InMemoryStore struct {
	mu           sync.RWMutex
	budgets      map[domain.CampaignID]Budget
	consumptions map[domain.CampaignID][]ConsumptionEntry
}

// NewInMemoryStore creates an empty in-memory budget store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		budgets:      make(map[domain.CampaignID]Budget),
		consumptions: make(map[domain.CampaignID][]ConsumptionEntry),
	}
}

func (s *InMemoryStore) Create(_ context.Context, budget Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.budgets[budget.CampaignID]; exists {
		return sentinel.ErrConflict
	}
	s.budgets[budget.CampaignID] = budget
	return nil
}

func (s *InMemoryStore) GetByCampaign(_ context.Context, campaignID domain.CampaignID) (Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	budget, ok := s.budgets[campaignID]
	if !ok {
		return Budget{}, sentinel.ErrNotFound
	}
	return budget, nil
}

func (s *InMemoryStore) Update(_ context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.budgets[budget.CampaignID]
	if !ok {
		return Budget{}, sentinel.ErrNotFound
	}
	if current.Version != budget.Version {
		return Budget{}, sentinel.ErrVersionConflict
	}
	budget.Version++
	s.budgets[budget.CampaignID] = budget
	return budget, nil
}

func (s *InMemoryStore) AppendConsumption(_ context.Context, entry ConsumptionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumptions[entry.CampaignID] = append(s.consumptions[entry.CampaignID], entry)
	return nil
}

func (s *InMemoryStore) ListConsumptions(_ context.Context, campaignID domain.CampaignID) ([]ConsumptionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ConsumptionEntry(nil), s.consumptions[campaignID]...), nil
}
