package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process. Used by tests and CREDENTIAL_BACKEND=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Put(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.UserID] = *record
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	return nil
}

// Len returns the number of stored rows.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
