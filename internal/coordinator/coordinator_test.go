package coordinator

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xproject/coordinator-server/internal/audit"
	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/eventbus"
	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
	"github.com/0xproject/coordinator-server/internal/orderstore"
	"github.com/0xproject/coordinator-server/internal/txstore"
)

const testChainID = 1

var feeRecipient = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
var makerAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
var signerAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")

// buildTestCoordinator wires a Coordinator against chainregistry.Build's
// real wiring logic but a fake oracle bundle, so every stage of
// RequestApproval runs for real except the on-chain-backed oracle calls.
func buildTestCoordinator(t *testing.T, call *oracle.DecodedCall, states *oracle.FakeStateReader) (*Coordinator, *eventbus.Bus) {
	t.Helper()

	cfg := &config.Config{
		ExpirationDurationSeconds: 90,
		SelectiveDelayMS:          0,
		ChainIDToSettings: map[string]config.ChainSettings{
			"1": {
				ChainID: testChainID,
				FeeRecipients: []config.FeeRecipient{
					{Address: feeRecipient, PrivateKeyHex: "4c0883a69102937d6231471b5dbb1522d741beb41cdbd3d8a78f8e9e74d62aa1"},
				},
			},
		},
	}

	factory := func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
		bundle, _ := oracle.NewFakeBundle(call)
		if states != nil {
			bundle.StateReader = states
		}
		return bundle, common.HexToAddress("0x3333333333333333333333333333333333333333"), nil
	}

	registry, err := chainregistry.Build(cfg, factory)
	require.NoError(t, err)

	bus := eventbus.New()
	return New(cfg, registry, orderstore.NewMemoryStore(), txstore.NewMemoryStore(), bus), bus
}

func fillOneOrder(takerAssetAmount, makerAssetAmount int64) *order.Order {
	return &order.Order{
		MakerAddress:          makerAddress,
		TakerAddress:          common.Address{},
		FeeRecipientAddress:   feeRecipient,
		MakerAssetAmount:      big.NewInt(makerAssetAmount),
		TakerAssetAmount:      big.NewInt(takerAssetAmount),
		MakerFee:              big.NewInt(0),
		TakerFee:              big.NewInt(0),
		Salt:                  big.NewInt(1),
		ExpirationTimeSeconds: big.NewInt(9999999999),
	}
}

func validSignedMetaTx() *SignedMetaTx {
	return &SignedMetaTx{
		SignerAddress:         signerAddress,
		Salt:                  big.NewInt(1),
		ExpirationTimeSeconds: big.NewInt(100),
		GasPrice:              big.NewInt(1),
		Data:                  []byte{0x01, 0x02, 0x03, 0x04},
		DomainChainID:         testChainID,
		VerifyingContract:     common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Signature:             []byte{signerAddress[0]}, // FakeVerifier is AlwaysValid by default; content unused
	}
}

func TestRequestApprovalFillOneHappyPath(t *testing.T) {
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{fillOneOrder(1000, 1000)},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(400)},
	}
	c, bus := buildTestCoordinator(t, call, nil)

	id, events := bus.Subscribe(testChainID)
	defer bus.Unsubscribe(testChainID, id)

	resp, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Signatures, 1)
	assert.Greater(t, resp.ExpirationTimeSeconds, int64(0))

	select {
	case e := <-events:
		assert.Equal(t, eventbus.EventFillRequestReceived, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
}

func TestRequestApprovalRejectsSchemaViolation(t *testing.T) {
	call := &oracle.DecodedCall{FunctionName: oracle.FillOrder, Orders: []*order.Order{fillOneOrder(1000, 1000)}}
	c, _ := buildTestCoordinator(t, call, nil)

	tx := validSignedMetaTx()
	tx.SignerAddress = common.Address{}

	_, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: tx,
	})
	require.Error(t, err)
	ce, ok := err.(*coordinatorerr.CoordinatorError)
	require.True(t, ok)
	assert.Equal(t, coordinatorerr.CodeSchemaViolation, ce.Code)
}

func TestRequestApprovalRejectsUnsupportedChain(t *testing.T) {
	call := &oracle.DecodedCall{FunctionName: oracle.FillOrder, Orders: []*order.Order{fillOneOrder(1000, 1000)}}
	c, _ := buildTestCoordinator(t, call, nil)

	tx := validSignedMetaTx()
	tx.DomainChainID = 999

	_, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      999,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: tx,
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeUnsupportedChain))
}

func TestRequestApprovalPropagatesDecodingFailure(t *testing.T) {
	cfg := &config.Config{
		ExpirationDurationSeconds: 90,
		ChainIDToSettings: map[string]config.ChainSettings{
			"1": {ChainID: testChainID, FeeRecipients: []config.FeeRecipient{
				{Address: feeRecipient, PrivateKeyHex: "4c0883a69102937d6231471b5dbb1522d741beb41cdbd3d8a78f8e9e74d62aa1"},
			}},
		},
	}
	registry, err := chainregistry.Build(cfg, func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
		return oracle.Bundle{
			Decoder:     &oracle.FakeDecoder{Err: assertDecodeErr("bad calldata")},
			StateReader: oracle.NewFakeStateReader(),
			HashBuilder: oracle.FakeHashBuilder{},
			Verifier:    &oracle.FakeVerifier{AlwaysValid: true},
		}, common.Address{}, nil
	})
	require.NoError(t, err)
	c := New(cfg, registry, orderstoreMemory(), txstoreMemory(), eventbus.New())

	_, err = c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeDecodingFailed))
}

type assertDecodeErr string

func (e assertDecodeErr) Error() string { return string(e) }

func orderstoreMemory() *orderstore.MemoryStore { return orderstore.NewMemoryStore() }
func txstoreMemory() *txstore.MemoryStore        { return txstore.NewMemoryStore() }

func TestRequestApprovalRejectsWhenNoOrdersInScope(t *testing.T) {
	outOfScope := fillOneOrder(1000, 1000)
	outOfScope.FeeRecipientAddress = common.HexToAddress("0x9999999999999999999999999999999999999999")
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{outOfScope},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
	}
	c, _ := buildTestCoordinator(t, call, nil)

	_, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeNoCoordinatorOrdersIncluded))
}

func TestRequestApprovalRejectsInvalidSignature(t *testing.T) {
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{fillOneOrder(1000, 1000)},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
	}
	cfg := &config.Config{
		ExpirationDurationSeconds: 90,
		ChainIDToSettings: map[string]config.ChainSettings{
			"1": {ChainID: testChainID, FeeRecipients: []config.FeeRecipient{
				{Address: feeRecipient, PrivateKeyHex: "4c0883a69102937d6231471b5dbb1522d741beb41cdbd3d8a78f8e9e74d62aa1"},
			}},
		},
	}
	registry, err := chainregistry.Build(cfg, func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
		return oracle.Bundle{
			Decoder:     &oracle.FakeDecoder{Call: call},
			StateReader: oracle.NewFakeStateReader(),
			HashBuilder: oracle.FakeHashBuilder{},
			Verifier:    &oracle.FakeVerifier{AlwaysValid: false},
		}, common.Address{}, nil
	})
	require.NoError(t, err)
	c := New(cfg, registry, orderstoreMemory(), txstoreMemory(), eventbus.New())

	tx := validSignedMetaTx()
	tx.Signature = []byte{0xff} // deliberately mismatches signerAddress[0]
	_, err = c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: tx,
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeInvalidMetaTxSignature))
}

func TestRequestApprovalRejectsReplay(t *testing.T) {
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{fillOneOrder(1000, 1000)},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
	}
	c, _ := buildTestCoordinator(t, call, nil)

	req := &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	}

	_, err := c.RequestApproval(context.Background(), req)
	require.NoError(t, err)

	_, err = c.RequestApproval(context.Background(), req)
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeTransactionAlreadyUsed))
}

func TestRequestApprovalRejectsFillOfSoftCancelledOrder(t *testing.T) {
	o := fillOneOrder(1000, 1000)
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{o},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
	}
	c, _ := buildTestCoordinator(t, call, nil)

	// RequestApproval's own S4 stage fills in ExchangeAddress/ChainID
	// before hashing, so the soft-cancel must be keyed on the same
	// post-reconstruction hash the coordinator will compute internally.
	o.ExchangeAddress = common.HexToAddress("0x3333333333333333333333333333333333333333")
	o.ChainID = testChainID
	hash, err := o.ComputeHash()
	require.NoError(t, err)
	require.NoError(t, c.orderStore.SoftCancel(context.Background(), hash))

	_, err = c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeFillNotAllowed))
}

func TestRequestApprovalRejectsExpirationTooHigh(t *testing.T) {
	call := &oracle.DecodedCall{
		FunctionName:          oracle.FillOrder,
		Orders:                []*order.Order{fillOneOrder(1000, 1000)},
		TakerAssetFillAmounts: []*big.Int{big.NewInt(100)},
	}
	c, _ := buildTestCoordinator(t, call, nil)

	tx := validSignedMetaTx()
	tx.ExpirationTimeSeconds = big.NewInt(time.Now().Unix() + 999999)

	_, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: tx,
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeTransactionExpirationTooHigh))
}

func TestRequestApprovalCancelHappyPath(t *testing.T) {
	o := fillOneOrder(1000, 1000)
	o.MakerAddress = signerAddress // cancel requires signer == maker
	call := &oracle.DecodedCall{FunctionName: oracle.CancelOrder, Orders: []*order.Order{o}}
	c, bus := buildTestCoordinator(t, call, nil)

	id, events := bus.Subscribe(testChainID)
	defer bus.Unsubscribe(testChainID, id)

	resp, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.NoError(t, err)
	require.Len(t, resp.CancellationSignatures, 1)

	hash, err := o.ComputeHash()
	require.NoError(t, err)
	cancelled, err := c.orderStore.FindSoftCancelled(context.Background(), []order.Hash{hash})
	require.NoError(t, err)
	assert.Contains(t, cancelled, hash)

	select {
	case e := <-events:
		assert.Equal(t, eventbus.EventCancelRequestAccepted, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a published event")
	}
}

func TestRequestApprovalRejectsCancelByNonMaker(t *testing.T) {
	o := fillOneOrder(1000, 1000) // o.MakerAddress != signerAddress
	call := &oracle.DecodedCall{FunctionName: oracle.CancelOrder, Orders: []*order.Order{o}}
	c, _ := buildTestCoordinator(t, call, nil)

	_, err := c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: validSignedMetaTx(),
	})
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeOnlyMakerMayCancel))
}

func TestListSoftCancelled(t *testing.T) {
	o := fillOneOrder(1000, 1000)
	call := &oracle.DecodedCall{FunctionName: oracle.FillOrder, Orders: []*order.Order{o}}
	c, _ := buildTestCoordinator(t, call, nil)

	hash, err := o.ComputeHash()
	require.NoError(t, err)
	require.NoError(t, c.orderStore.SoftCancel(context.Background(), hash))

	cancelled, err := c.ListSoftCancelled(context.Background(), testChainID, []order.Hash{hash, {9}})
	require.NoError(t, err)
	assert.Equal(t, []order.Hash{hash}, cancelled)
}

func TestRequestApprovalRecordsAuditEntryOnRejection(t *testing.T) {
	call := &oracle.DecodedCall{FunctionName: oracle.FillOrder, Orders: []*order.Order{fillOneOrder(1000, 1000)}}
	c, _ := buildTestCoordinator(t, call, nil)

	auditLogger, err := audit.NewLogger(filepath.Join(t.TempDir(), "audit.ndjson"))
	require.NoError(t, err)
	c = c.WithAuditLogger(auditLogger)

	tx := validSignedMetaTx()
	tx.SignerAddress = common.Address{}
	_, err = c.RequestApproval(context.Background(), &ApprovalRequest{
		ChainID:      testChainID,
		TxOrigin:     common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SignedMetaTx: tx,
	})
	require.Error(t, err)

	entries, err := auditLogger.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rejected", entries[0].Status)
	assert.Equal(t, string(coordinatorerr.CodeSchemaViolation), entries[0].ErrorCode)
}
