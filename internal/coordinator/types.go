package coordinator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/order"
)

// SignedMetaTx is the wire shape of a taker's signed intent to invoke an
// exchange method, wrapped for coordinator approval.
type SignedMetaTx struct {
	SignerAddress         common.Address
	Salt                  *big.Int
	ExpirationTimeSeconds *big.Int
	GasPrice              *big.Int
	Data                  []byte
	DomainChainID         int64
	VerifyingContract     common.Address
	Signature             []byte
}

// Hash returns the deterministic digest identifying this meta-transaction,
// used both as the TransactionRecord key and as the message the taker's
// signature covers.
func (tx *SignedMetaTx) Hash() common.Hash {
	buf := make([]byte, 0, 256)
	buf = append(buf, tx.SignerAddress.Bytes()...)
	if tx.Salt != nil {
		buf = append(buf, tx.Salt.Bytes()...)
	}
	if tx.ExpirationTimeSeconds != nil {
		buf = append(buf, tx.ExpirationTimeSeconds.Bytes()...)
	}
	if tx.GasPrice != nil {
		buf = append(buf, tx.GasPrice.Bytes()...)
	}
	buf = append(buf, tx.Data...)
	buf = append(buf, big.NewInt(tx.DomainChainID).Bytes()...)
	buf = append(buf, tx.VerifyingContract.Bytes()...)
	return keccak256Hash(buf)
}

// ApprovalRequest is the input to RequestApproval.
type ApprovalRequest struct {
	ChainID         int64
	TxOrigin        common.Address
	SignedMetaTx    *SignedMetaTx
}

// OutstandingFillSignature describes one previously granted, still-valid
// fill approval surfaced alongside a cancel acknowledgement.
type OutstandingFillSignature struct {
	OrderHash             order.Hash
	ApprovalSignatures    [][]byte
	ExpirationTimeSeconds int64
	TakerAssetFillAmount  *big.Int
}

// ApprovalResponse is the successful result of RequestApproval. Exactly
// one of the two groups of fields is populated, depending on whether the
// request classified as fill-family or cancel-family.
type ApprovalResponse struct {
	// Fill-family result.
	Signatures            [][]byte
	ExpirationTimeSeconds int64

	// Cancel-family result.
	OutstandingFillSignatures []OutstandingFillSignature
	CancellationSignatures    [][]byte
}
