// Package order defines the exchange order as the coordinator knows it:
// never created by the coordinator, only reconstructed from decoded
// calldata and hashed deterministically against a chain's exchange
// address.
//
// Fields and the EIP-712 hashing shape are grounded on the 0x order
// representation in other_examples' zeroex/order.go (maxweng-0x-mesh),
// reduced to what the coordinator core actually touches: the oracle,
// not this package, is responsible for producing the final approval
// hash — this package only derives the orderHash identity used as a
// store key.
package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Order is the exchange order as understood by the coordinator core.
type Order struct {
	MakerAddress          common.Address
	TakerAddress          common.Address
	FeeRecipientAddress   common.Address
	SenderAddress         common.Address
	MakerAssetData        []byte
	TakerAssetData        []byte
	MakerFeeAssetData     []byte
	TakerFeeAssetData     []byte
	MakerAssetAmount      *big.Int
	TakerAssetAmount      *big.Int
	MakerFee              *big.Int
	TakerFee              *big.Int
	Salt                  *big.Int
	ExpirationTimeSeconds *big.Int

	// ExchangeAddress and ChainID are filled in during reconstruction;
	// they participate in the order hash but are not part of the
	// wire-decoded order itself.
	ExchangeAddress common.Address
	ChainID         int64
}

// Hash is the deterministic 32-byte digest keying an Order in the order
// store. It is a domain-separated Keccak256 digest over every field the
// 0x exchange contract treats as significant for order identity, plus
// the exchange address and chain id, so the hash changes if the
// exchange or chain changes.
type Hash = common.Hash

// ComputeHash derives the order's Hash. It never performs full EIP-712
// struct encoding itself — that's the exchange oracle's
// ApprovalHashBuilder's job; it keccaks a canonical concatenation of
// the order's fields, which is sufficient for the core's own purposes
// (store keying and soft-cancel bookkeeping) while the oracle remains
// the source of truth for anything an on-chain contract must verify.
func (o *Order) ComputeHash() (Hash, error) {
	if o.MakerAssetAmount == nil || o.TakerAssetAmount == nil || o.Salt == nil || o.ExpirationTimeSeconds == nil {
		return Hash{}, fmt.Errorf("order: missing required big.Int field")
	}
	makerFee := o.MakerFee
	if makerFee == nil {
		makerFee = big.NewInt(0)
	}
	takerFee := o.TakerFee
	if takerFee == nil {
		takerFee = big.NewInt(0)
	}

	buf := make([]byte, 0, 512)
	buf = append(buf, o.ExchangeAddress.Bytes()...)
	buf = append(buf, big.NewInt(o.ChainID).Bytes()...)
	buf = append(buf, o.MakerAddress.Bytes()...)
	buf = append(buf, o.TakerAddress.Bytes()...)
	buf = append(buf, o.FeeRecipientAddress.Bytes()...)
	buf = append(buf, o.SenderAddress.Bytes()...)
	buf = append(buf, o.MakerAssetData...)
	buf = append(buf, o.TakerAssetData...)
	buf = append(buf, o.MakerFeeAssetData...)
	buf = append(buf, o.TakerFeeAssetData...)
	buf = append(buf, o.MakerAssetAmount.Bytes()...)
	buf = append(buf, o.TakerAssetAmount.Bytes()...)
	buf = append(buf, makerFee.Bytes()...)
	buf = append(buf, takerFee.Bytes()...)
	buf = append(buf, o.Salt.Bytes()...)
	buf = append(buf, o.ExpirationTimeSeconds.Bytes()...)

	return crypto.Keccak256Hash(buf), nil
}
