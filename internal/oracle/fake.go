package oracle

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// FakeDecoder returns a pre-scripted DecodedCall regardless of input,
// so coordinator tests can drive the pipeline without a real ABI.
type FakeDecoder struct {
	Call *DecodedCall
	Err  error
}

// DecodeCalldata implements CalldataDecoder.
func (f *FakeDecoder) DecodeCalldata(data []byte) (*DecodedCall, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Call, nil
}

// FakeStateReader returns scripted OrderRelevantState by the order's
// position in the batch, with an unlimited-capacity default for any
// position it wasn't told about — tests only need to script the orders
// whose state matters.
type FakeStateReader struct {
	mu      sync.Mutex
	byIndex map[int]OrderRelevantState
	Default OrderRelevantState
}

// NewFakeStateReader builds a FakeStateReader with every order
// defaulting to unconstrained fillability.
func NewFakeStateReader() *FakeStateReader {
	unlimited := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return &FakeStateReader{
		byIndex: make(map[int]OrderRelevantState),
		Default: OrderRelevantState{
			OrderTakerAssetFilledAmount: big.NewInt(0),
			TakerBalance:                unlimited,
			TakerAllowance:              unlimited,
			MakerBalance:                unlimited,
			MakerAllowance:              unlimited,
			TakerFeeBalance:             unlimited,
			TakerFeeAllowance:           unlimited,
			MakerFeeBalance:             unlimited,
			MakerFeeAllowance:           unlimited,
		},
	}
}

// SetState scripts the state returned for the order at position i in a
// future GetOrderRelevantStates call.
func (f *FakeStateReader) SetState(i int, state OrderRelevantState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byIndex[i] = state
}

// GetOrderRelevantStates implements OrderStateReader. Any order whose
// index was never scripted with SetState gets Default.
func (f *FakeStateReader) GetOrderRelevantStates(ctx context.Context, orders []*order.Order) ([]OrderRelevantState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	states := make([]OrderRelevantState, len(orders))
	for i := range orders {
		if s, ok := f.byIndex[i]; ok {
			states[i] = s
		} else {
			states[i] = f.Default
		}
	}
	return states, nil
}

// FakeHashBuilder returns a deterministic hash derived from its
// arguments, so tests can assert two calls with the same inputs
// produce the same approval hash without invoking real EIP-712 typed
// data machinery.
type FakeHashBuilder struct{}

// BuildApprovalHash implements ApprovalHashBuilder.
func (FakeHashBuilder) BuildApprovalHash(signedMetaTxHash common.Hash, txOrigin common.Address, coordinatorAddress common.Address, approvalExpirationTimeSeconds int64) (common.Hash, error) {
	buf := make([]byte, 0, 96)
	buf = append(buf, signedMetaTxHash.Bytes()...)
	buf = append(buf, txOrigin.Bytes()...)
	buf = append(buf, coordinatorAddress.Bytes()...)
	buf = append(buf, byte(approvalExpirationTimeSeconds))
	return common.BytesToHash(buf), nil
}

// FakeVerifier accepts every signature whose first byte equals the
// address's first byte, a trivial scheme tests can construct without
// real ECDSA machinery; AlwaysValid short-circuits to true for tests
// that don't care about signature content at all.
type FakeVerifier struct {
	AlwaysValid bool
}

// VerifyMetaTxSignature implements SignatureVerifier.
func (f *FakeVerifier) VerifyMetaTxSignature(ctx context.Context, signerAddress common.Address, metaTxHash common.Hash, signature []byte) (bool, error) {
	if f.AlwaysValid {
		return true, nil
	}
	return len(signature) > 0 && signature[0] == signerAddress[0], nil
}

// NewFakeBundle builds a Bundle backed entirely by fakes, with the
// verifier defaulting to AlwaysValid so tests that don't care about
// signatures don't need to construct one.
func NewFakeBundle(call *DecodedCall) (Bundle, *FakeStateReader) {
	states := NewFakeStateReader()
	bundle := Bundle{
		Decoder:     &FakeDecoder{Call: call},
		StateReader: states,
		HashBuilder: FakeHashBuilder{},
		Verifier:    &FakeVerifier{AlwaysValid: true},
	}
	return bundle, states
}
