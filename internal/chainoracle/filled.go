package chainoracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const exchangeFilledABIJSON = `[
{"name":"filled","type":"function","stateMutability":"view","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ExchangeFilledReader reads an order's cumulative filled taker-asset
// amount directly from the exchange contract's own bookkeeping,
// following the same Pack/CallContract/UnpackIntoInterface sequence as
// StateReader's ERC20 reads.
type ExchangeFilledReader struct {
	caller          ContractCaller
	exchangeABI     abi.ABI
	exchangeAddress common.Address
}

// NewExchangeFilledReader builds an ExchangeFilledReader against the
// exchange deployed at exchangeAddress.
func NewExchangeFilledReader(caller ContractCaller, exchangeAddress common.Address) *ExchangeFilledReader {
	parsed, err := abi.JSON(strings.NewReader(exchangeFilledABIJSON))
	if err != nil {
		panic("chainoracle: invalid embedded exchange-filled ABI: " + err.Error())
	}
	return &ExchangeFilledReader{caller: caller, exchangeABI: parsed, exchangeAddress: exchangeAddress}
}

// GetFilledTakerAssetAmount implements FilledAmountReader.
func (r *ExchangeFilledReader) GetFilledTakerAssetAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	data, err := r.exchangeABI.Pack("filled", orderHash)
	if err != nil {
		return nil, fmt.Errorf("chainoracle: failed to pack filled() call: %w", err)
	}
	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.exchangeAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainoracle: filled() call failed: %w", err)
	}
	var amount *big.Int
	if err := r.exchangeABI.UnpackIntoInterface(&amount, "filled", result); err != nil {
		return nil, fmt.Errorf("chainoracle: failed to unpack filled() result: %w", err)
	}
	return amount, nil
}
