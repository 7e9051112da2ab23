// Package fillengine computes per-order taker-fill allocations for
// fill-family approval requests. All arithmetic is performed on
// *big.Int; division is always floored via (*big.Int).Div, grounded on
// the teacher's fee-bound arithmetic in
// src/chainadapter/ethereum/fee.go and the uint256 handling in
// other_examples' zeroex/order.go (math.ParseBig256).
package fillengine

import (
	"context"
	"math/big"

	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
)

// RemainingFillable computes the remaining fillable taker-asset amount
// for a single order: the order's unfilled balance clamped by taker
// balance/allowance, maker balance/allowance converted to taker units,
// and (when nonzero) each side's fee balance/allowance converted
// through the fee ratio.
func RemainingFillable(o *order.Order, state oracle.OrderRelevantState) *big.Int {
	remaining := new(big.Int).Sub(o.TakerAssetAmount, nonNil(state.OrderTakerAssetFilledAmount))
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}

	if o.TakerAddress != (zeroAddress()) {
		remaining = minBig(remaining, minBig(nonNil(state.TakerBalance), nonNil(state.TakerAllowance)))
	}

	makerSideInTakerUnits := convertMakerToTakerUnits(
		minBig(nonNil(state.MakerBalance), nonNil(state.MakerAllowance)),
		o,
	)
	remaining = minBig(remaining, makerSideInTakerUnits)

	if o.TakerFee != nil && o.TakerFee.Sign() > 0 {
		takerFeeCapacity := minBig(nonNil(state.TakerFeeBalance), nonNil(state.TakerFeeAllowance))
		remaining = minBig(remaining, scaleByFee(takerFeeCapacity, o.TakerAssetAmount, o.TakerFee))
	}

	if o.MakerFee != nil && o.MakerFee.Sign() > 0 {
		makerFeeCapacity := minBig(nonNil(state.MakerFeeBalance), nonNil(state.MakerFeeAllowance))
		remaining = minBig(remaining, scaleByFee(makerFeeCapacity, o.TakerAssetAmount, o.MakerFee))
	}

	return remaining
}

// scaleByFee computes floor(capacity * takerAssetAmount / fee), converting
// a fee-asset capacity into the taker-asset units it can support.
func scaleByFee(capacity, takerAssetAmount, fee *big.Int) *big.Int {
	if fee.Sign() == 0 {
		return capacity
	}
	num := new(big.Int).Mul(capacity, takerAssetAmount)
	return new(big.Int).Div(num, fee)
}

// convertMakerToTakerUnits converts a maker-side capacity into taker
// units at the order's exchange rate: floor(capacity * takerAssetAmount / makerAssetAmount).
func convertMakerToTakerUnits(makerCapacity *big.Int, o *order.Order) *big.Int {
	if o.MakerAssetAmount == nil || o.MakerAssetAmount.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(makerCapacity, o.TakerAssetAmount)
	return new(big.Int).Div(num, o.MakerAssetAmount)
}

// AllocateMarketSell performs a greedy market-sell consumption: walk
// orders in received order, assigning
// min(remainingRequested, remainingFillable) to each until the
// requested total is exhausted or orders run out. Never over-fills the
// last order.
func AllocateMarketSell(orders []*order.Order, states []oracle.OrderRelevantState, requestedTakerAssetAmount *big.Int) []*big.Int {
	allocations := make([]*big.Int, len(orders))
	remainingRequested := new(big.Int).Set(requestedTakerAssetAmount)

	for i, o := range orders {
		if remainingRequested.Sign() <= 0 {
			allocations[i] = big.NewInt(0)
			continue
		}
		fillable := RemainingFillable(o, states[i])
		alloc := minBig(remainingRequested, fillable)
		allocations[i] = alloc
		remainingRequested.Sub(remainingRequested, alloc)
	}
	return allocations
}

// AllocateMarketBuy allocates a market-buy request: work in maker-asset
// units, converting the outstanding maker-asset request
// to taker units at each order's rate, clamping by remaining fillable,
// and deducting the realized maker side.
func AllocateMarketBuy(orders []*order.Order, states []oracle.OrderRelevantState, requestedMakerAssetAmount *big.Int) []*big.Int {
	allocations := make([]*big.Int, len(orders))
	remainingMakerRequested := new(big.Int).Set(requestedMakerAssetAmount)

	for i, o := range orders {
		if remainingMakerRequested.Sign() <= 0 {
			allocations[i] = big.NewInt(0)
			continue
		}

		var requestedTakerUnits *big.Int
		if o.MakerAssetAmount != nil && o.MakerAssetAmount.Sign() > 0 {
			num := new(big.Int).Mul(remainingMakerRequested, o.TakerAssetAmount)
			requestedTakerUnits = new(big.Int).Div(num, o.MakerAssetAmount)
		} else {
			requestedTakerUnits = big.NewInt(0)
		}

		fillable := RemainingFillable(o, states[i])
		alloc := minBig(requestedTakerUnits, fillable)
		allocations[i] = alloc

		// Deduct the realized maker side for this order from the
		// outstanding maker-asset request.
		realizedMaker := convertTakerToMakerUnits(alloc, o)
		remainingMakerRequested.Sub(remainingMakerRequested, realizedMaker)
		if remainingMakerRequested.Sign() < 0 {
			remainingMakerRequested.SetInt64(0)
		}
	}
	return allocations
}

func convertTakerToMakerUnits(takerAmount *big.Int, o *order.Order) *big.Int {
	if o.TakerAssetAmount == nil || o.TakerAssetAmount.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(takerAmount, o.MakerAssetAmount)
	return new(big.Int).Div(num, o.TakerAssetAmount)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func zeroAddress() (z [20]byte) { return z }

// FetchStates queries the order-state oracle for every order in the
// batch before allocation begins.
func FetchStates(ctx context.Context, reader oracle.OrderStateReader, orders []*order.Order) ([]oracle.OrderRelevantState, error) {
	return reader.GetOrderRelevantStates(ctx, orders)
}
