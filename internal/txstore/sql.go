package txstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	_ "github.com/lib/pq"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// SQLStore implements Store against a two-table + association-table
// schema:
//
//	transactions(hash, tx_origin, taker, expiration, signatures_json, created_at)
//	transaction_order_fill(tx_hash, order_hash, fill_amount, position)
//
// `position` preserves the parallel-list ordering between OrderHashes
// and TakerAssetFillAmounts.
type SQLStore struct {
	db *sql.DB
}

func OpenSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) FindByHash(ctx context.Context, transactionHash common.Hash) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("txstore: begin: %w", err)
	}
	defer tx.Rollback()

	r, err := s.findByHashTx(ctx, tx, transactionHash)
	if err != nil {
		return nil, err
	}
	return r, tx.Commit()
}

func (s *SQLStore) findByHashTx(ctx context.Context, tx *sql.Tx, transactionHash common.Hash) (*Record, error) {
	var (
		txOrigin, taker, sigsJSON string
		expiration                int64
		createdAt                 time.Time
	)
	err := tx.QueryRowContext(ctx, `
		SELECT tx_origin, taker, expiration, signatures_json, created_at
		FROM transactions WHERE hash = $1
	`, transactionHash.Hex()).Scan(&txOrigin, &taker, &expiration, &sigsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txstore: find by hash: %w", err)
	}

	var sigHexes []string
	if err := json.Unmarshal([]byte(sigsJSON), &sigHexes); err != nil {
		return nil, fmt.Errorf("txstore: decode signatures: %w", err)
	}
	sigs := make([][]byte, len(sigHexes))
	for i, h := range sigHexes {
		sigs[i] = common.FromHex(h)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT order_hash, fill_amount FROM transaction_order_fill
		WHERE tx_hash = $1 ORDER BY position ASC
	`, transactionHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("txstore: find fills: %w", err)
	}
	defer rows.Close()

	var orderHashes []order.Hash
	var fillAmounts []*big.Int
	for rows.Next() {
		var orderHashHex, amountStr string
		if err := rows.Scan(&orderHashHex, &amountStr); err != nil {
			return nil, fmt.Errorf("txstore: scan fill: %w", err)
		}
		orderHashes = append(orderHashes, common.HexToHash(orderHashHex))
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("txstore: invalid fill amount %q", amountStr)
		}
		fillAmounts = append(fillAmounts, amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Record{
		TransactionHash:       transactionHash,
		TxOrigin:              common.HexToAddress(txOrigin),
		TakerAddress:          common.HexToAddress(taker),
		Signatures:            sigs,
		ExpirationTimeSeconds: expiration,
		OrderHashes:           orderHashes,
		TakerAssetFillAmounts: fillAmounts,
		CreatedAt:             createdAt,
	}, nil
}

func (s *SQLStore) Find(ctx context.Context, q Query) ([]*Record, error) {
	if len(q.OrderHashes) == 0 {
		return nil, nil
	}

	args := []interface{}{}
	query := `SELECT DISTINCT t.hash FROM transactions t
		JOIN transaction_order_fill f ON f.tx_hash = t.hash
		WHERE f.order_hash = ANY($1)`
	hashes := make([]string, len(q.OrderHashes))
	for i, h := range q.OrderHashes {
		hashes[i] = h.Hex()
	}
	args = append(args, pqStringArray(hashes))

	if !q.AnyKey {
		col := "t.taker"
		if q.KeyKind == ByTxOrigin {
			col = "t.tx_origin"
		}
		query += fmt.Sprintf(" AND %s = $%d", col, len(args)+1)
		args = append(args, q.Key.Hex())
	}
	if q.UnexpiredOnly {
		query += fmt.Sprintf(" AND t.expiration >= $%d", len(args)+1)
		args = append(args, time.Now().Unix())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("txstore: find: %w", err)
	}
	defer rows.Close()

	var hexHashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hexHashes = append(hexHashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result := make([]*Record, 0, len(hexHashes))
	for _, h := range hexHashes {
		r, err := s.findByHashTx(ctx, tx, common.HexToHash(h))
		if err != nil {
			return nil, err
		}
		if r != nil {
			result = append(result, r)
		}
	}
	return result, tx.Commit()
}

func (s *SQLStore) PerOrderFillSum(ctx context.Context, q Query) (map[order.Hash]*big.Int, error) {
	records, err := s.Find(ctx, q)
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

func (s *SQLStore) Create(ctx context.Context, record *Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("txstore: begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE hash = $1)`,
		record.TransactionHash.Hex()).Scan(&exists); err != nil {
		return fmt.Errorf("txstore: check existing: %w", err)
	}
	if exists {
		return ErrAlreadyExists
	}

	sigHexes := make([]string, len(record.Signatures))
	for i, s := range record.Signatures {
		sigHexes[i] = common.Bytes2Hex(s)
	}
	sigsJSON, err := json.Marshal(sigHexes)
	if err != nil {
		return fmt.Errorf("txstore: encode signatures: %w", err)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (hash, tx_origin, taker, expiration, signatures_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.TransactionHash.Hex(), record.TxOrigin.Hex(), record.TakerAddress.Hex(),
		record.ExpirationTimeSeconds, string(sigsJSON), createdAt)
	if err != nil {
		return fmt.Errorf("txstore: insert transaction: %w", err)
	}

	for i, oh := range record.OrderHashes {
		amount := "0"
		if i < len(record.TakerAssetFillAmounts) && record.TakerAssetFillAmounts[i] != nil {
			amount = record.TakerAssetFillAmounts[i].String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transaction_order_fill (tx_hash, order_hash, fill_amount, position)
			VALUES ($1, $2, $3, $4)
		`, record.TransactionHash.Hex(), oh.Hex(), amount, i)
		if err != nil {
			return fmt.Errorf("txstore: insert fill: %w", err)
		}
	}

	return tx.Commit()
}

// pqStringArray renders a Go string slice as a Postgres text array
// literal, avoiding a hard dependency on lib/pq's array helper types so
// this file only needs the driver's side-effecting import.
func pqStringArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + v + `"`
	}
	return out + "}"
}
