package chainoracle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// HashBuilder computes the approval digest the coordinator's keys sign
// over, following the domain-separated hash-struct construction in
// OrderSigner.buildTypedData/SignOrder
// (other_examples/web3guy0-polybot/internal/arbitrage/eip712.go):
// keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
type HashBuilder struct {
	domainName    string
	domainVersion string
	chainID       int64
}

// NewHashBuilder builds a HashBuilder bound to chainID's EIP-712
// domain. domainName/domainVersion must match what the exchange
// contract expects when verifying a CoordinatorApproval message.
func NewHashBuilder(domainName, domainVersion string, chainID int64) *HashBuilder {
	return &HashBuilder{domainName: domainName, domainVersion: domainVersion, chainID: chainID}
}

var approvalTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"CoordinatorApproval": {
		{Name: "txOrigin", Type: "address"},
		{Name: "transactionHash", Type: "bytes32"},
		{Name: "transactionSignature", Type: "bytes"},
		{Name: "approvalExpirationTimeSeconds", Type: "uint256"},
	},
}

// BuildApprovalHash implements oracle.ApprovalHashBuilder.
func (h *HashBuilder) BuildApprovalHash(
	signedMetaTxHash common.Hash,
	txOrigin common.Address,
	coordinatorAddress common.Address,
	approvalExpirationTimeSeconds int64,
) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types:       approvalTypes,
		PrimaryType: "CoordinatorApproval",
		Domain: apitypes.TypedDataDomain{
			Name:              h.domainName,
			Version:           h.domainVersion,
			ChainId:           math.NewHexOrDecimal256(h.chainID),
			VerifyingContract: coordinatorAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"txOrigin":                      txOrigin.Hex(),
			"transactionHash":               signedMetaTxHash.Hex(),
			"transactionSignature":          "0x",
			"approvalExpirationTimeSeconds": fmt.Sprintf("%d", approvalExpirationTimeSeconds),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainoracle: failed to hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chainoracle: failed to hash approval message: %w", err)
	}

	rawData := append([]byte("\x19\x01"), domainSeparator.Bytes()...)
	rawData = append(rawData, messageHash.Bytes()...)
	return crypto.Keccak256Hash(rawData), nil
}
