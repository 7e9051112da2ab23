package orderstore

import (
	"context"
	"database/sql"
	"fmt"

	// The lib/pq driver registers itself with database/sql; it is never
	// referenced directly, matching how the teacher's own rpc client
	// packages import drivers purely for their side-effecting init().
	_ "github.com/lib/pq"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// SQLStore implements Store against an `orders` table:
//
//	orders(hash TEXT PRIMARY KEY, soft_cancelled BOOLEAN NOT NULL DEFAULT false)
//
// Every mutation is a single statement, so atomicity follows from the
// underlying database's statement-level guarantees without an explicit
// transaction.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens (but does not migrate) the backing database and
// returns a Store. Callers are responsible for closing db on shutdown.
func OpenSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) IsSoftCancelled(ctx context.Context, orderHash order.Hash) (bool, error) {
	var softCancelled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT soft_cancelled FROM orders WHERE hash = $1`, orderHash.Hex(),
	).Scan(&softCancelled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("orderstore: is soft cancelled: %w", err)
	}
	return softCancelled, nil
}

func (s *SQLStore) FindSoftCancelled(ctx context.Context, orderHashes []order.Hash) ([]order.Hash, error) {
	result := make([]order.Hash, 0)
	if len(orderHashes) == 0 {
		return result, nil
	}

	hexes := make([]interface{}, len(orderHashes))
	placeholders := make([]byte, 0, len(orderHashes)*4)
	for i, h := range orderHashes {
		hexes[i] = h.Hex()
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, []byte(fmt.Sprintf("$%d", i+1))...)
	}

	query := fmt.Sprintf(`SELECT hash FROM orders WHERE soft_cancelled = true AND hash IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, hexes...)
	if err != nil {
		return nil, fmt.Errorf("orderstore: find soft cancelled: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("orderstore: scan: %w", err)
		}
		result = append(result, common.HexToHash(hex))
	}
	return result, rows.Err()
}

func (s *SQLStore) SoftCancel(ctx context.Context, orderHash order.Hash) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (hash, soft_cancelled) VALUES ($1, true)
		ON CONFLICT (hash) DO UPDATE SET soft_cancelled = true
	`, orderHash.Hex())
	if err != nil {
		return fmt.Errorf("orderstore: soft cancel: %w", err)
	}
	return nil
}
