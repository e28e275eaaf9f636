package storage

import (
	"context"
	"sort"
	"sync"
)

// MemorySessions is an in-process SessionStore. It backs history when no
// external store is configured and is handy in tests.
type MemorySessions struct {
	records map[string]SessionRecord
	mu      sync.RWMutex
}

// NewMemorySessions creates an empty store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{records: make(map[string]SessionRecord)}
}

func (m *MemorySessions) UpsertSession(ctx context.Context, record SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

func (m *MemorySessions) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// ListRecentSessions returns records newest first by start time.
func (m *MemorySessions) ListRecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	m.mu.RLock()
	records := make([]SessionRecord, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	limit = NormalizeLimit(limit)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemorySessions) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

type memoryStore struct {
	sessions *MemorySessions
}

// NewMemoryStore returns a Store whose history lives for the process lifetime.
func NewMemoryStore() Store {
	return &memoryStore{sessions: NewMemorySessions()}
}

func (s *memoryStore) Close() error {
	return nil
}

func (s *memoryStore) Sessions() SessionStore {
	return s.sessions
}
