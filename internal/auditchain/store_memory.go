package auditchain

import (
	"context"
	"sync"

	"kanon/pkg/platform/sentinel"
)

// InMemoryStore keeps the chain in process memory. Suitable for tests and
// single-node deployments without Postgres.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts []Receipt
	byID     map[string]int
}

// NewInMemoryStore creates an empty in-memory chain store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Append(_ context.Context, receipt Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[receipt.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[receipt.ID] = len(s.receipts)
	s.receipts = append(s.receipts, receipt)
	return nil
}

func (s *InMemoryStore) LatestHash(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.receipts) == 0 {
		return "", sentinel.ErrNotFound
	}
	return s.receipts[len(s.receipts)-1].ReceiptHash, nil
}

func (s *InMemoryStore) Get(_ context.Context, receiptID string) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[receiptID]
	if !ok {
		return Receipt{}, sentinel.ErrNotFound
	}
	return s.receipts[idx], nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Receipt
	for _, r := range s.receipts {
		if !matches(r, filter) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Receipt(nil), s.receipts...), nil
}

func matches(r Receipt, f Filter) bool {
	if f.ActorID != "" && r.ActorID != f.ActorID {
		return false
	}
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.EventType != "" && r.EventType != f.EventType {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
