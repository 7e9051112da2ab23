// Package orderstore persists the soft-cancellation flag keyed by order
// hash. The interface shape — small, doc-commented "MUST"/"Contract:"
// methods, idempotent mutations — is grounded on the teacher's
// storage.TransactionStateStore (src/chainadapter/storage/store.go).
package orderstore

import (
	"context"

	"github.com/0xproject/coordinator-server/internal/order"
)

// Store is the exclusive owner of every order's soft-cancel bit. All
// operations are serializable.
type Store interface {
	// IsSoftCancelled reports whether orderHash has been soft-cancelled.
	//
	// Contract:
	// - Once true, MUST return true for that hash forever.
	IsSoftCancelled(ctx context.Context, orderHash order.Hash) (bool, error)

	// FindSoftCancelled returns the subset of orderHashes that are
	// currently soft-cancelled.
	FindSoftCancelled(ctx context.Context, orderHashes []order.Hash) ([]order.Hash, error)

	// SoftCancel idempotently sets orderHash's soft-cancel flag, creating
	// the backing record if it does not yet exist.
	//
	// Contract:
	// - MUST be safe to call multiple times for the same hash.
	SoftCancel(ctx context.Context, orderHash order.Hash) error
}
