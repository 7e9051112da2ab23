package orderstore

import (
	"context"
	"sync"

	"github.com/0xproject/coordinator-server/internal/order"
)

// MemoryStore implements Store with an in-memory map guarded by a
// sync.RWMutex, the same shape as the teacher's MemoryTxStore
// (src/chainadapter/storage/memory.go). Suitable for tests and for a
// single-process deployment; a durable backend would satisfy the same
// Store interface (see sql.go).
type MemoryStore struct {
	mu            sync.RWMutex
	softCancelled map[order.Hash]bool
}

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{softCancelled: make(map[order.Hash]bool)}
}

func (m *MemoryStore) IsSoftCancelled(_ context.Context, orderHash order.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.softCancelled[orderHash], nil
}

func (m *MemoryStore) FindSoftCancelled(_ context.Context, orderHashes []order.Hash) ([]order.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]order.Hash, 0)
	for _, h := range orderHashes {
		if m.softCancelled[h] {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *MemoryStore) SoftCancel(_ context.Context, orderHash order.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.softCancelled[orderHash] = true
	return nil
}
