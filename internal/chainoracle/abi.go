// Package chainoracle is the live, on-chain-backed implementation of
// the oracle capability set: decoding exchange calldata, reading
// order-relevant balances and allowances, building the approval hash,
// and verifying meta-transaction signatures. It is the counterpart to
// oracle.FakeBundle, which scripts the same capability set for tests.
package chainoracle

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// exchangeABIJSON describes the eleven exchange methods the coordinator
// recognizes (spec'd function sets: fill-one, fill-batch, market-sell,
// market-buy, cancel-one, cancel-batch), expressed against the order
// tuple shape grounded on other_examples' zeroex.Order
// (maxweng-0x-mesh/zeroex/order.go).
const exchangeABIJSON = `[
{"name":"fillOrder","type":"function","inputs":[
  {"name":"order","type":"tuple","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmount","type":"uint256"},
  {"name":"signature","type":"bytes"}
]},
{"name":"fillOrKillOrder","type":"function","inputs":[
  {"name":"order","type":"tuple","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmount","type":"uint256"},
  {"name":"signature","type":"bytes"}
]},
{"name":"batchFillOrders","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmounts","type":"uint256[]"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"batchFillOrKillOrders","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmounts","type":"uint256[]"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"batchFillOrdersNoThrow","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmounts","type":"uint256[]"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"marketSellOrdersFillOrKill","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmount","type":"uint256"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"marketSellOrdersNoThrow","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"takerAssetFillAmount","type":"uint256"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"marketBuyOrdersFillOrKill","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"makerAssetFillAmount","type":"uint256"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"marketBuyOrdersNoThrow","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]},
  {"name":"makerAssetFillAmount","type":"uint256"},
  {"name":"signatures","type":"bytes[]"}
]},
{"name":"cancelOrder","type":"function","inputs":[
  {"name":"order","type":"tuple","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]}
]},
{"name":"batchCancelOrders","type":"function","inputs":[
  {"name":"orders","type":"tuple[]","components":[
    {"name":"makerAddress","type":"address"},
    {"name":"takerAddress","type":"address"},
    {"name":"feeRecipientAddress","type":"address"},
    {"name":"senderAddress","type":"address"},
    {"name":"makerAssetAmount","type":"uint256"},
    {"name":"takerAssetAmount","type":"uint256"},
    {"name":"makerFee","type":"uint256"},
    {"name":"takerFee","type":"uint256"},
    {"name":"expirationTimeSeconds","type":"uint256"},
    {"name":"salt","type":"uint256"},
    {"name":"makerAssetData","type":"bytes"},
    {"name":"takerAssetData","type":"bytes"},
    {"name":"makerFeeAssetData","type":"bytes"},
    {"name":"takerFeeAssetData","type":"bytes"}
  ]}
]}
]`

func mustParseExchangeABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(exchangeABIJSON))
	if err != nil {
		panic("chainoracle: invalid embedded exchange ABI: " + err.Error())
	}
	return parsed
}

// abiOrder mirrors the order tuple's component names (capitalized, as
// go-ethereum's abi package requires for tuple-to-struct conversion via
// abi.ConvertType).
type abiOrder struct {
	MakerAddress          common.Address
	TakerAddress          common.Address
	FeeRecipientAddress   common.Address
	SenderAddress         common.Address
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	ExpirationTimeSeconds *big.Int
	Salt                  *big.Int
	MakerAssetData        []byte
	TakerAssetData        []byte
	MakerFeeAssetData     []byte
	TakerFeeAssetData     []byte
}

func (a abiOrder) toOrder() *order.Order {
	return &order.Order{
		MakerAddress:          a.MakerAddress,
		TakerAddress:          a.TakerAddress,
		FeeRecipientAddress:   a.FeeRecipientAddress,
		SenderAddress:         a.SenderAddress,
		MakerAssetAmount:      new(big.Int).Set(a.MakerAssetAmount),
		TakerAssetAmount:      new(big.Int).Set(a.TakerAssetAmount),
		MakerFee:              new(big.Int).Set(a.MakerFee),
		TakerFee:              new(big.Int).Set(a.TakerFee),
		ExpirationTimeSeconds: new(big.Int).Set(a.ExpirationTimeSeconds),
		Salt:                  new(big.Int).Set(a.Salt),
		MakerAssetData:        append([]byte(nil), a.MakerAssetData...),
		TakerAssetData:        append([]byte(nil), a.TakerAssetData...),
		MakerFeeAssetData:     append([]byte(nil), a.MakerFeeAssetData...),
		TakerFeeAssetData:     append([]byte(nil), a.TakerFeeAssetData...),
	}
}
