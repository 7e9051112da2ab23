package txstore

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// MemoryStore implements Store with an in-memory map guarded by a
// sync.RWMutex and defensive copies on read, the same discipline as the
// teacher's MemoryTxStore (src/chainadapter/storage/memory.go:
// "Return a copy to prevent external modification").
type MemoryStore struct {
	mu      sync.RWMutex
	records map[common.Hash]*Record
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[common.Hash]*Record)}
}

func copyRecord(r *Record) *Record {
	cp := *r
	cp.Signatures = append([][]byte(nil), r.Signatures...)
	cp.OrderHashes = append([]order.Hash(nil), r.OrderHashes...)
	cp.TakerAssetFillAmounts = make([]*big.Int, len(r.TakerAssetFillAmounts))
	for i, a := range r.TakerAssetFillAmounts {
		if a != nil {
			cp.TakerAssetFillAmounts[i] = new(big.Int).Set(a)
		}
	}
	return &cp
}

func (m *MemoryStore) FindByHash(_ context.Context, transactionHash common.Hash) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[transactionHash]
	if !ok {
		return nil, nil
	}
	return copyRecord(r), nil
}

func (m *MemoryStore) matches(r *Record, q Query, now time.Time) bool {
	if q.UnexpiredOnly && r.IsExpired(now) {
		return false
	}
	if !q.AnyKey {
		switch q.KeyKind {
		case ByTxOrigin:
			if r.TxOrigin != q.Key {
				return false
			}
		default:
			if r.TakerAddress != q.Key {
				return false
			}
		}
	}
	for _, want := range q.OrderHashes {
		for _, have := range r.OrderHashes {
			if want == have {
				return true
			}
		}
	}
	return len(q.OrderHashes) == 0
}

func (m *MemoryStore) Find(_ context.Context, q Query) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	result := make([]*Record, 0)
	for _, r := range m.records {
		if m.matches(r, q, now) {
			result = append(result, copyRecord(r))
		}
	}
	return result, nil
}

func (m *MemoryStore) PerOrderFillSum(ctx context.Context, q Query) (map[order.Hash]*big.Int, error) {
	records, err := m.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	sums := make(map[order.Hash]*big.Int, len(q.OrderHashes))
	for _, h := range q.OrderHashes {
		sums[h] = big.NewInt(0)
	}

	for _, r := range records {
		for i, oh := range r.OrderHashes {
			sum, tracked := sums[oh]
			if !tracked {
				continue
			}
			if i < len(r.TakerAssetFillAmounts) && r.TakerAssetFillAmounts[i] != nil {
				sum.Add(sum, r.TakerAssetFillAmounts[i])
			}
		}
	}
	return sums, nil
}

func (m *MemoryStore) Create(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.TransactionHash]; exists {
		return ErrAlreadyExists
	}
	m.records[record.TransactionHash] = copyRecord(record)
	return nil
}
