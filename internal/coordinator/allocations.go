package coordinator

import (
	"context"
	"math/big"

	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/fillengine"
	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
)

// deriveAllocations implements (S8a): fill-one/fill-batch allocations
// are the user-supplied per-order amounts verbatim; market-sell/buy
// allocations are computed by the fill-allocation engine from current
// oracle state.
func deriveAllocations(
	ctx context.Context,
	bundle *chainregistry.ChainBundle,
	inScopeOrders []*order.Order,
	inScopeTakerAmounts []*big.Int,
	decoded *oracle.DecodedCall,
	class oracle.FunctionClass,
) ([]*big.Int, error) {
	switch class {
	case oracle.ClassFillOne, oracle.ClassFillBatch:
		return inScopeTakerAmounts, nil

	case oracle.ClassMarketSell, oracle.ClassMarketBuy:
		states, err := fillengine.FetchStates(ctx, bundle.Oracle.StateReader, inScopeOrders)
		if err != nil {
			return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to query order-relevant state", err)
		}
		if class == oracle.ClassMarketSell {
			requested := decoded.TakerAssetFillAmount
			if requested == nil {
				requested = big.NewInt(0)
			}
			return fillengine.AllocateMarketSell(inScopeOrders, states, requested), nil
		}
		requested := decoded.MakerAssetFillAmount
		if requested == nil {
			requested = big.NewInt(0)
		}
		return fillengine.AllocateMarketBuy(inScopeOrders, states, requested), nil

	default:
		return nil, coordinatorerr.New(coordinatorerr.CodeUnsupportedFunction, "function class has no fill-allocation strategy")
	}
}
