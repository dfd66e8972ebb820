package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/hivekeeper/internal/common"
)

// MemoryStore keeps values in a map. It is the default for tests and for
// nodes that do not need durability.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.store[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, common.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

func (m *MemoryStore) Name() string {
	return "memory"
}
