// Package oracle defines the pluggable capability set of on-chain
// oracles a coordinator instance relies on: decoding calldata, reading
// order-relevant balances/allowances, building the approval hash, and
// verifying a meta-transaction signature. The coordinator core only ever depends on
// these interfaces; a live blockchain client and an in-memory fake (see
// fake.go) both satisfy them.
//
// Grounded on the teacher's provider.BlockchainProvider interface
// (src/chainadapter/provider/interface.go): a narrow capability
// interface per external system, injected rather than imported
// concretely.
package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// FunctionName identifies a decoded exchange method, classified into one
// of the six recognized function families below.
type FunctionName string

const (
	FillOrder                   FunctionName = "fillOrder"
	FillOrKillOrder              FunctionName = "fillOrKillOrder"
	BatchFillOrders              FunctionName = "batchFillOrders"
	BatchFillOrKillOrders        FunctionName = "batchFillOrKillOrders"
	BatchFillOrdersNoThrow       FunctionName = "batchFillOrdersNoThrow"
	MarketSellOrdersFillOrKill    FunctionName = "marketSellOrdersFillOrKill"
	MarketSellOrdersNoThrow       FunctionName = "marketSellOrdersNoThrow"
	MarketBuyOrdersFillOrKill     FunctionName = "marketBuyOrdersFillOrKill"
	MarketBuyOrdersNoThrow        FunctionName = "marketBuyOrdersNoThrow"
	CancelOrder                  FunctionName = "cancelOrder"
	BatchCancelOrders            FunctionName = "batchCancelOrders"
)

// FunctionClass is the family a FunctionName belongs to.
type FunctionClass string

const (
	ClassFillOne     FunctionClass = "fill-one"
	ClassFillBatch   FunctionClass = "fill-batch"
	ClassMarketSell  FunctionClass = "market-sell"
	ClassMarketBuy   FunctionClass = "market-buy"
	ClassCancelOne   FunctionClass = "cancel-one"
	ClassCancelBatch FunctionClass = "cancel-batch"
)

// ClassOf classifies a decoded function name, or ok=false if it is not
// one of the recognized functions.
func ClassOf(fn FunctionName) (FunctionClass, bool) {
	switch fn {
	case FillOrder, FillOrKillOrder:
		return ClassFillOne, true
	case BatchFillOrders, BatchFillOrKillOrders, BatchFillOrdersNoThrow:
		return ClassFillBatch, true
	case MarketSellOrdersFillOrKill, MarketSellOrdersNoThrow:
		return ClassMarketSell, true
	case MarketBuyOrdersFillOrKill, MarketBuyOrdersNoThrow:
		return ClassMarketBuy, true
	case CancelOrder:
		return ClassCancelOne, true
	case BatchCancelOrders:
		return ClassCancelBatch, true
	default:
		return "", false
	}
}

// DecodedCall is the result of decoding a meta-transaction's calldata.
type DecodedCall struct {
	FunctionName FunctionName
	Orders       []*order.Order
	// TakerAssetFillAmounts is populated for fill-one/fill-batch calls:
	// the user-supplied per-order amount, parallel to Orders.
	TakerAssetFillAmounts []*big.Int
	// TakerAssetFillAmount is the aggregate requested amount for
	// market-sell calls.
	TakerAssetFillAmount *big.Int
	// MakerAssetFillAmount is the aggregate requested amount for
	// market-buy calls.
	MakerAssetFillAmount *big.Int
}

// CalldataDecoder decodes a signed meta-transaction's call data into a
// classified call.
type CalldataDecoder interface {
	DecodeCalldata(data []byte) (*DecodedCall, error)
}

// OrderRelevantState is what an order-state query reports about a
// single order's remaining exchange-side fillability.
type OrderRelevantState struct {
	OrderTakerAssetFilledAmount *big.Int

	TakerBalance   *big.Int
	TakerAllowance *big.Int

	MakerBalance   *big.Int
	MakerAllowance *big.Int

	TakerFeeBalance   *big.Int
	TakerFeeAllowance *big.Int

	MakerFeeBalance   *big.Int
	MakerFeeAllowance *big.Int
}

// OrderStateReader reports order-relevant balances, allowances and fill
// state for a batch of orders.
type OrderStateReader interface {
	GetOrderRelevantStates(ctx context.Context, orders []*order.Order) ([]OrderRelevantState, error)
}

// ApprovalHashBuilder computes the 32-byte digest over
// {signed-meta-transaction, tx-origin, coordinator-contract-address,
// approval-expiration-seconds} that the approval signer signs.
type ApprovalHashBuilder interface {
	BuildApprovalHash(
		signedMetaTxHash common.Hash,
		txOrigin common.Address,
		coordinatorAddress common.Address,
		approvalExpirationTimeSeconds int64,
	) (common.Hash, error)
}

// SignatureVerifier verifies a signature over a meta-transaction hash.
type SignatureVerifier interface {
	VerifyMetaTxSignature(ctx context.Context, signerAddress common.Address, metaTxHash common.Hash, signature []byte) (bool, error)
}

// Bundle is the full capability set a chain registers.
type Bundle struct {
	Decoder       CalldataDecoder
	StateReader   OrderStateReader
	HashBuilder   ApprovalHashBuilder
	Verifier      SignatureVerifier
}
