package cache

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/collabhub/internal/clock"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when no redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]map[string]memoryEntry
	gens    map[string]int64
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &MemoryStore{
		clock:   c,
		entries: map[string]map[string]memoryEntry{},
		gens:    map[string]int64{},
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key, field string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key.String()][field]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Generation(_ context.Context, key Key) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[key.String()], nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, field string, value []byte, ttl time.Duration, generation int64) (bool, error) {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key.String()] != generation {
		return false, nil
	}
	fields, ok := s.entries[key.String()]
	if !ok {
		fields = map[string]memoryEntry{}
		s.entries[key.String()] = fields
	}
	fields[field] = entry
	return true, nil
}

func (s *MemoryStore) Invalidate(_ context.Context, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.gens[key.String()]++
		delete(s.entries, key.String())
	}
	return nil
}
