package consent

import (
	"context"
	"sync"

	"kanon/pkg/domain"
	"kanon/pkg/platform/sentinel"
)

// InMemoryStore keeps consent contracts in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.ConsentID]Record
}

// NewInMemoryStore creates an empty in-memory consent store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.ConsentID]Record)}
}

func (s *InMemoryStore) Get(_ context.Context, id domain.ConsentID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID domain.DataSubjectID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []Record
	for _, r := range s.records {
		if r.DataSubjectID == subjectID {
			records = append(records, r)
		}
	}
	return records, nil
}
