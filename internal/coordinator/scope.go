package coordinator

import (
	"math/big"

	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
)

// filterInScope retains only the orders whose fee-recipient is one of
// bundle's configured identities, carrying along the matching
// per-order taker-fill amount for classes that carry one (fill-one,
// fill-batch). Classes that instead carry an aggregate amount
// (market-sell, market-buy) return a nil amounts slice; the caller
// re-derives per-order allocations from the aggregate via the
// fill-allocation engine.
func filterInScope(bundle *chainregistry.ChainBundle, decoded *oracle.DecodedCall, class oracle.FunctionClass) ([]*order.Order, []*big.Int) {
	hasPerOrderAmounts := class == oracle.ClassFillOne || class == oracle.ClassFillBatch

	inScopeOrders := make([]*order.Order, 0, len(decoded.Orders))
	var inScopeAmounts []*big.Int
	if hasPerOrderAmounts {
		inScopeAmounts = make([]*big.Int, 0, len(decoded.Orders))
	}

	for i, o := range decoded.Orders {
		if !bundle.IsFeeRecipient(o.FeeRecipientAddress) {
			continue
		}
		inScopeOrders = append(inScopeOrders, o)
		if hasPerOrderAmounts && i < len(decoded.TakerAssetFillAmounts) {
			inScopeAmounts = append(inScopeAmounts, decoded.TakerAssetFillAmounts[i])
		}
	}

	return inScopeOrders, inScopeAmounts
}

func orderHashes(orders []*order.Order) ([]order.Hash, error) {
	hashes := make([]order.Hash, len(orders))
	for i, o := range orders {
		h, err := o.ComputeHash()
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}
