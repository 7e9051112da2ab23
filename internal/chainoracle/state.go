package chainoracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/oracle"
	"github.com/0xproject/coordinator-server/internal/order"
)

// erc20ABIJSON covers the two read methods the state reader needs.
// Packing and unpacking it follows EthereumClient.VerifyOrderHash in
// other_examples/gilanglahat22-order-api-microservices/pkg/blockchain/ethereum.go:
// contractABI.Pack, client.CallContract, contractABI.UnpackIntoInterface.
const erc20ABIJSON = `[
{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// ContractCaller is the subset of ethclient.Client the state reader
// needs; satisfied by *ethclient.Client, and narrow enough to fake in
// tests without standing up a node.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StateReader answers OrderStateReader by reading ERC20 balanceOf and
// allowance for each order's maker/taker asset and fee asset directly
// from chain state, plus the exchange's own bookkeeping of how much of
// the order has already filled.
type StateReader struct {
	caller            ContractCaller
	erc20ABI          abi.ABI
	assetProxyAddress common.Address
	filledReader      FilledAmountReader
}

// FilledAmountReader reports how much of an order's takerAssetAmount
// the exchange contract has already recorded as filled.
type FilledAmountReader interface {
	GetFilledTakerAssetAmount(ctx context.Context, orderHash common.Hash) (*big.Int, error)
}

// NewStateReader builds a StateReader. assetProxyAddress is the ERC20
// asset-proxy contract orders grant allowance to (the spender side of
// every allowance check), and filledReader supplies the exchange's own
// filled-amount bookkeeping.
func NewStateReader(caller ContractCaller, assetProxyAddress common.Address, filledReader FilledAmountReader) *StateReader {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("chainoracle: invalid embedded ERC20 ABI: " + err.Error())
	}
	return &StateReader{caller: caller, erc20ABI: parsed, assetProxyAddress: assetProxyAddress, filledReader: filledReader}
}

// GetOrderRelevantStates implements oracle.OrderStateReader.
func (r *StateReader) GetOrderRelevantStates(ctx context.Context, orders []*order.Order) ([]oracle.OrderRelevantState, error) {
	states := make([]oracle.OrderRelevantState, len(orders))
	for i, o := range orders {
		state, err := r.stateForOrder(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("chainoracle: order %d: %w", i, err)
		}
		states[i] = state
	}
	return states, nil
}

func (r *StateReader) stateForOrder(ctx context.Context, o *order.Order) (oracle.OrderRelevantState, error) {
	var state oracle.OrderRelevantState

	orderHash, err := o.ComputeHash()
	if err != nil {
		return state, err
	}
	filled, err := r.filledReader.GetFilledTakerAssetAmount(ctx, orderHash)
	if err != nil {
		return state, fmt.Errorf("failed to read filled amount: %w", err)
	}
	state.OrderTakerAssetFilledAmount = filled

	takerBalance, takerAllowance, err := r.readBalanceAndAllowance(ctx, o.TakerAssetData, o.TakerAddress)
	if err != nil {
		return state, fmt.Errorf("taker asset: %w", err)
	}
	state.TakerBalance, state.TakerAllowance = takerBalance, takerAllowance

	makerBalance, makerAllowance, err := r.readBalanceAndAllowance(ctx, o.MakerAssetData, o.MakerAddress)
	if err != nil {
		return state, fmt.Errorf("maker asset: %w", err)
	}
	state.MakerBalance, state.MakerAllowance = makerBalance, makerAllowance

	takerFeeBalance, takerFeeAllowance, err := r.readFeeBalanceAndAllowance(ctx, o.TakerFeeAssetData, o.TakerAddress, o.TakerFee)
	if err != nil {
		return state, fmt.Errorf("taker fee asset: %w", err)
	}
	state.TakerFeeBalance, state.TakerFeeAllowance = takerFeeBalance, takerFeeAllowance

	makerFeeBalance, makerFeeAllowance, err := r.readFeeBalanceAndAllowance(ctx, o.MakerFeeAssetData, o.MakerAddress, o.MakerFee)
	if err != nil {
		return state, fmt.Errorf("maker fee asset: %w", err)
	}
	state.MakerFeeBalance, state.MakerFeeAllowance = makerFeeBalance, makerFeeAllowance

	return state, nil
}

// readFeeBalanceAndAllowance treats an order with no fee (fee amount
// zero or empty assetData) as having unlimited fee capacity, since
// there is no ERC20 token to read balance/allowance for.
func (r *StateReader) readFeeBalanceAndAllowance(ctx context.Context, assetData []byte, owner common.Address, fee *big.Int) (*big.Int, *big.Int, error) {
	if len(assetData) == 0 || fee == nil || fee.Sign() == 0 {
		return unlimited(), unlimited(), nil
	}
	return r.readBalanceAndAllowance(ctx, assetData, owner)
}

func (r *StateReader) readBalanceAndAllowance(ctx context.Context, assetData []byte, owner common.Address) (*big.Int, *big.Int, error) {
	token, err := decodeERC20Address(assetData)
	if err != nil {
		return nil, nil, err
	}

	balance, err := r.callUint256(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, nil, fmt.Errorf("balanceOf: %w", err)
	}
	allowance, err := r.callUint256(ctx, token, "allowance", owner, r.assetProxyAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("allowance: %w", err)
	}
	return balance, allowance, nil
}

func (r *StateReader) callUint256(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := r.erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call: %w", err)
	}
	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}
	var amount *big.Int
	if err := r.erc20ABI.UnpackIntoInterface(&amount, method, result); err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	return amount, nil
}

// unlimited stands in for "no ERC20 constraint applies", represented
// as the maximum uint256 so it never becomes the tightest bound in the
// fill-allocation engine's minimum.
func unlimited() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}
