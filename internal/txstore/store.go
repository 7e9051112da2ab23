// Package txstore persists granted approvals. Interface shape grounded
// on the teacher's storage.TransactionStateStore
// (src/chainadapter/storage/store.go): Get/Set-by-key plus list
// queries, explicit atomicity contracts in doc comments.
package txstore

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// Record is a granted approval. Cancel-family grants carry
// ExpirationTimeSeconds == 0, a sentinel meaning "never usable as a
// fill approval".
type Record struct {
	TransactionHash       common.Hash
	TxOrigin              common.Address
	TakerAddress          common.Address
	Signatures            [][]byte
	ExpirationTimeSeconds int64
	OrderHashes           []order.Hash
	// TakerAssetFillAmounts is parallel to OrderHashes.
	TakerAssetFillAmounts []*big.Int
	CreatedAt             time.Time
}

// IsExpired reports whether the record is expired as of now. A
// cancel-family record (ExpirationTimeSeconds == 0) is never treated as
// an unexpired fill approval by queries that pass UnexpiredOnly: true,
// but findByOrdersAndTaker's cancel-acknowledgement use explicitly wants
// fill approvals only, so zero is excluded there by construction (see
// Query.UnexpiredOnly semantics below).
func (r *Record) IsExpired(now time.Time) bool {
	if r.ExpirationTimeSeconds == 0 {
		return true
	}
	return r.ExpirationTimeSeconds < now.Unix()
}

// TakerKeyKind selects whether a query aggregates fills by TakerAddress
// or by TxOrigin (the taker-contract allowlist branch).
type TakerKeyKind int

const (
	ByTakerAddress TakerKeyKind = iota
	ByTxOrigin
)

// Query parameterizes findByOrdersAndTaker / findByOrdersAndTxOrigin /
// perOrderFillSum.
type Query struct {
	OrderHashes  []order.Hash
	KeyKind      TakerKeyKind
	Key          common.Address // taker address or tx-origin, depending on KeyKind
	// AnyKey, when true, ignores Key and matches any taker/tx-origin —
	// used by the cancel-family "collect all outstanding approvals"
	// query, which applies no taker filter.
	AnyKey        bool
	UnexpiredOnly bool
}

// Store is the exclusive owner of every TransactionRecord. Create
// enforces replay-freedom; all other operations are read-only.
type Store interface {
	// FindByHash looks up a record by its transaction hash, or returns
	// nil if none exists.
	FindByHash(ctx context.Context, transactionHash common.Hash) (*Record, error)

	// Find returns every record matching q, honoring q.UnexpiredOnly.
	Find(ctx context.Context, q Query) ([]*Record, error)

	// PerOrderFillSum sums TakerAssetFillAmounts across records matching
	// q, grouped by order hash. Only orders present in q.OrderHashes
	// appear in the result (zero-valued if no matching record touches
	// that order).
	PerOrderFillSum(ctx context.Context, q Query) (map[order.Hash]*big.Int, error)

	// Create atomically inserts record.
	//
	// Contract:
	// - MUST fail with ErrAlreadyExists if record.TransactionHash already
	//   has a row.
	Create(ctx context.Context, record *Record) error
}

// ErrAlreadyExists is returned by Create when the transaction hash has
// already been used.
var ErrAlreadyExists = &alreadyExistsError{}

type alreadyExistsError struct{}

func (*alreadyExistsError) Error() string { return "txstore: transaction hash already exists" }
