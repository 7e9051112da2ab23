package txstore

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xproject/coordinator-server/internal/order"
)

func TestMemoryStoreFindByHashMissReturnsNil(t *testing.T) {
	store := NewMemoryStore()

	r, err := store.FindByHash(context.Background(), common.Hash{1})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestMemoryStoreCreateAndFindByHashRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	record := &Record{
		TransactionHash:       common.Hash{1},
		TxOrigin:              common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		TakerAddress:          common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Signatures:            [][]byte{{1, 2, 3}},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
		OrderHashes:           []order.Hash{{1}},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
		CreatedAt:             time.Now(),
	}

	require.NoError(t, store.Create(context.Background(), record))

	// Mutating the caller's copy after Create must not affect the stored
	// record.
	record.Signatures[0][0] = 99
	record.TakerAssetFillAmounts[0].SetInt64(999)

	found, err := store.FindByHash(context.Background(), common.Hash{1})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, byte(1), found.Signatures[0][0])
	assert.Equal(t, int64(100), found.TakerAssetFillAmounts[0].Int64())

	// Mutating the returned copy must not affect the stored record either.
	found.Signatures[0][0] = 77
	again, err := store.FindByHash(context.Background(), common.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, byte(1), again.Signatures[0][0])
}

func TestMemoryStoreCreateRejectsDuplicateTransactionHash(t *testing.T) {
	store := NewMemoryStore()
	record := &Record{TransactionHash: common.Hash{1}, OrderHashes: []order.Hash{{1}}}

	require.NoError(t, store.Create(context.Background(), record))
	err := store.Create(context.Background(), &Record{TransactionHash: common.Hash{1}})
	assert.Equal(t, ErrAlreadyExists, err)
}

func seedRecord(t *testing.T, store *MemoryStore, r *Record) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), r))
}

func TestMemoryStoreFindMatchesByTakerAddress(t *testing.T) {
	store := NewMemoryStore()
	taker := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	other := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	orderHash := order.Hash{1}

	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{1},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})
	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{2},
		TakerAddress:          other,
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	found, err := store.Find(context.Background(), Query{
		OrderHashes: []order.Hash{orderHash},
		KeyKind:     ByTakerAddress,
		Key:         taker,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, common.Hash{1}, found[0].TransactionHash)
}

func TestMemoryStoreFindMatchesByTxOrigin(t *testing.T) {
	store := NewMemoryStore()
	origin := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	orderHash := order.Hash{1}

	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{1},
		TxOrigin:              origin,
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})
	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{2},
		TxOrigin:              common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	found, err := store.Find(context.Background(), Query{
		OrderHashes: []order.Hash{orderHash},
		KeyKind:     ByTxOrigin,
		Key:         origin,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, common.Hash{1}, found[0].TransactionHash)
}

func TestMemoryStoreFindAnyKeyIgnoresKeyFilter(t *testing.T) {
	store := NewMemoryStore()
	orderHash := order.Hash{1}

	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{1},
		TakerAddress:          common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})
	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{2},
		TakerAddress:          common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	found, err := store.Find(context.Background(), Query{
		OrderHashes: []order.Hash{orderHash},
		AnyKey:      true,
	})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestMemoryStoreFindEmptyOrderHashesMatchesAnyRecord(t *testing.T) {
	store := NewMemoryStore()
	taker := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{1},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{{9}},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	found, err := store.Find(context.Background(), Query{KeyKind: ByTakerAddress, Key: taker})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestMemoryStoreFindUnexpiredOnlyExcludesExpiredAndCancelRecords(t *testing.T) {
	store := NewMemoryStore()
	taker := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	orderHash := order.Hash{1}

	seedRecord(t, store, &Record{ // expired fill
		TransactionHash:       common.Hash{1},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(-time.Hour).Unix(),
	})
	seedRecord(t, store, &Record{ // cancel-family grant, ExpirationTimeSeconds == 0
		TransactionHash: common.Hash{2},
		TakerAddress:    taker,
		OrderHashes:     []order.Hash{orderHash},
	})
	seedRecord(t, store, &Record{ // live fill
		TransactionHash:       common.Hash{3},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{orderHash},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	found, err := store.Find(context.Background(), Query{
		OrderHashes:   []order.Hash{orderHash},
		KeyKind:       ByTakerAddress,
		Key:           taker,
		UnexpiredOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, common.Hash{3}, found[0].TransactionHash)
}

func TestMemoryStorePerOrderFillSumAggregatesAcrossRecords(t *testing.T) {
	store := NewMemoryStore()
	taker := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	orderA, orderB := order.Hash{1}, order.Hash{2}

	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{1},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{orderA, orderB},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100), big.NewInt(5)},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})
	seedRecord(t, store, &Record{
		TransactionHash:       common.Hash{2},
		TakerAddress:          taker,
		OrderHashes:           []order.Hash{orderA},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(50)},
		ExpirationTimeSeconds: time.Now().Add(time.Hour).Unix(),
	})

	sums, err := store.PerOrderFillSum(context.Background(), Query{
		OrderHashes: []order.Hash{orderA, orderB},
		KeyKind:     ByTakerAddress,
		Key:         taker,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), sums[orderA].Int64())
	assert.Equal(t, int64(5), sums[orderB].Int64())
}

func TestMemoryStorePerOrderFillSumSeedsZeroForUntouchedOrder(t *testing.T) {
	store := NewMemoryStore()
	untouched := order.Hash{42}

	sums, err := store.PerOrderFillSum(context.Background(), Query{
		OrderHashes: []order.Hash{untouched},
		AnyKey:      true,
	})
	require.NoError(t, err)
	require.Contains(t, sums, untouched)
	assert.Equal(t, int64(0), sums[untouched].Int64())
}
