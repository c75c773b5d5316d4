package presence

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (m *MemoryStore) Touch(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.BookingID] = rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, bookingID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[bookingID]
	return rec, ok, nil
}
