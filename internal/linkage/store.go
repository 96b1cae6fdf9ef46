package linkage

import (
	"context"
	"sync"

	"kanon/pkg/domain"
)

// Store persists rate-limit records for HIGH-risk windows.
type Store interface {
	Append(ctx context.Context, record RateLimitRecord) error
	ListByRequester(ctx context.Context, requesterID domain.RequesterID) ([]RateLimitRecord, error)
}

// InMemoryStore keeps rate-limit records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []RateLimitRecord
}

// NewInMemoryStore creates an empty in-memory record store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record RateLimitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByRequester(_ context.Context, requesterID domain.RequesterID) ([]RateLimitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RateLimitRecord
	for _, r := range s.records {
		if r.RequesterID == requesterID {
			out = append(out, r)
		}
	}
	return out, nil
}
