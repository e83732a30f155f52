package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kvachev/fx-rate-service/internal/model"
)

// MemoryStore is the default process-local table store. There is no timer
// sweep; expired entries are dropped when read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[model.Code]Entry

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[model.Code]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, base model.Code) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[base]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent refresh may have
		// replaced the entry since the read.
		if current, ok := s.entries[base]; ok && current.Expired(s.now()) {
			delete(s.entries, base)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryStore) Set(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	s.entries[entry.Base] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
