package chainoracle

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
)

// methodNameToFunction maps the exchange ABI's Go-visible method names
// back onto the recognized function name constants, since abi.Method
// names are taken verbatim from the ABI JSON.
var methodNameToFunction = map[string]oracle.FunctionName{
	"fillOrder":                  oracle.FillOrder,
	"fillOrKillOrder":            oracle.FillOrKillOrder,
	"batchFillOrders":            oracle.BatchFillOrders,
	"batchFillOrKillOrders":      oracle.BatchFillOrKillOrders,
	"batchFillOrdersNoThrow":     oracle.BatchFillOrdersNoThrow,
	"marketSellOrdersFillOrKill": oracle.MarketSellOrdersFillOrKill,
	"marketSellOrdersNoThrow":    oracle.MarketSellOrdersNoThrow,
	"marketBuyOrdersFillOrKill":  oracle.MarketBuyOrdersFillOrKill,
	"marketBuyOrdersNoThrow":     oracle.MarketBuyOrdersNoThrow,
	"cancelOrder":                oracle.CancelOrder,
	"batchCancelOrders":          oracle.BatchCancelOrders,
}

// Decoder decodes raw exchange calldata into a DecodedCall using the
// embedded exchange ABI. It holds no mutable state and is safe for
// concurrent use.
type Decoder struct {
	contractABI abi.ABI
}

// NewDecoder builds a Decoder over the embedded exchange ABI.
func NewDecoder() *Decoder {
	return &Decoder{contractABI: mustParseExchangeABI()}
}

// DecodeCalldata implements oracle.CalldataDecoder. It identifies the
// method by its 4-byte selector, unpacks the arguments by the method's
// own ABI shape, and converts each order tuple (or tuple array) into
// this package's order.Order via abi.ConvertType.
func (d *Decoder) DecodeCalldata(data []byte) (*oracle.DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("chainoracle: calldata shorter than a method selector")
	}
	method, err := d.contractABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("chainoracle: unrecognized method selector: %w", err)
	}
	fn, ok := methodNameToFunction[method.Name]
	if !ok {
		return nil, fmt.Errorf("chainoracle: method %q is not a recognized exchange function", method.Name)
	}

	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("chainoracle: failed to unpack calldata: %w", err)
	}

	decoded := &oracle.DecodedCall{FunctionName: fn}

	switch class, _ := oracle.ClassOf(fn); class {
	case oracle.ClassFillOne:
		o, err := convertSingleOrder(args["order"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = []*order.Order{o}
		amount, err := bigIntArg(args, "takerAssetFillAmount")
		if err != nil {
			return nil, err
		}
		decoded.TakerAssetFillAmounts = []*big.Int{amount}

	case oracle.ClassFillBatch:
		orders, err := convertOrderSlice(args["orders"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = orders
		amounts, err := bigIntSliceArg(args, "takerAssetFillAmounts")
		if err != nil {
			return nil, err
		}
		if len(amounts) != len(orders) {
			return nil, fmt.Errorf("chainoracle: %s: %d orders but %d fill amounts", method.Name, len(orders), len(amounts))
		}
		decoded.TakerAssetFillAmounts = amounts

	case oracle.ClassMarketSell:
		orders, err := convertOrderSlice(args["orders"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = orders
		amount, err := bigIntArg(args, "takerAssetFillAmount")
		if err != nil {
			return nil, err
		}
		decoded.TakerAssetFillAmount = amount

	case oracle.ClassMarketBuy:
		orders, err := convertOrderSlice(args["orders"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = orders
		amount, err := bigIntArg(args, "makerAssetFillAmount")
		if err != nil {
			return nil, err
		}
		decoded.MakerAssetFillAmount = amount

	case oracle.ClassCancelOne:
		o, err := convertSingleOrder(args["order"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = []*order.Order{o}

	case oracle.ClassCancelBatch:
		orders, err := convertOrderSlice(args["orders"])
		if err != nil {
			return nil, err
		}
		decoded.Orders = orders

	default:
		return nil, fmt.Errorf("chainoracle: method %q has no decoding strategy", method.Name)
	}

	return decoded, nil
}

func convertSingleOrder(raw interface{}) (*order.Order, error) {
	converted, ok := abi.ConvertType(raw, new(abiOrder)).(*abiOrder)
	if !ok {
		return nil, fmt.Errorf("chainoracle: failed to convert order tuple: unexpected shape %T", raw)
	}
	return converted.toOrder(), nil
}

// convertOrderSlice handles a tuple[] argument. go-ethereum's ABI
// unpacker yields these as a slice of its own generated anonymous
// struct type, not []interface{}, so the elements are walked with
// reflection before each is run through abi.ConvertType individually.
func convertOrderSlice(raw interface{}) ([]*order.Order, error) {
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("chainoracle: expected a tuple array, got %T", raw)
	}
	orders := make([]*order.Order, v.Len())
	for i := 0; i < v.Len(); i++ {
		o, err := convertSingleOrder(v.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		orders[i] = o
	}
	return orders, nil
}

func bigIntArg(args map[string]interface{}, name string) (*big.Int, error) {
	v, ok := args[name].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chainoracle: argument %q is not a uint256", name)
	}
	return v, nil
}

func bigIntSliceArg(args map[string]interface{}, name string) ([]*big.Int, error) {
	v, ok := args[name].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("chainoracle: argument %q is not a uint256[]", name)
	}
	return v, nil
}
