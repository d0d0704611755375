package keys

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for single-process runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	pool []string
}

func NewMemoryStore(initial ...string) *MemoryStore {
	return &MemoryStore{pool: append([]string{}, initial...)}
}

func (m *MemoryStore) Seed(_ context.Context, keys []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pool) > 0 || len(keys) == 0 {
		return false, nil
	}
	m.pool = append([]string{}, keys...)
	return true, nil
}

func (m *MemoryStore) Rotate(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pool) == 0 {
		return "", ErrEmpty
	}
	key := m.pool[0]
	m.pool = append(m.pool[1:], key)
	return key, nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.pool...), nil
}
