// Package approvalsigner produces, for a batch of in-scope orders, one
// ECDSA signature per distinct fee-recipient over the oracle-supplied
// approval hash.
//
// The signing step itself — ToECDSA/Sign over a Keccak256 digest,
// address-ownership verified first — is grounded on
// EthereumSigner.Sign in src/chainadapter/ethereum/signer.go. The
// signature-type marker byte appended to each signature mirrors
// zeroex.SignOrder's own signature-type byte in other_examples'
// zeroex/order.go (maxweng-0x-mesh).
package approvalsigner

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xproject/coordinator-server/internal/chainregistry"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/order"
)

// eip712SignatureType is the 0x EthSign signature-type marker appended
// after R||S||V, mirroring zeroex.EthSignSignature in
// other_examples/zeroex/order.go.
const eip712SignatureType = byte(0x03)

// Result is the signer's output: one signature per distinct in-scope
// fee-recipient, plus the shared expiration used in the hash.
type Result struct {
	Signatures            [][]byte
	ExpirationTimeSeconds int64
}

// Sign builds the approval hash for the given metatransaction and signs
// it once per distinct fee-recipient among inScopeOrders.
func Sign(
	ctx context.Context,
	bundle *chainregistry.ChainBundle,
	signedMetaTxHash common.Hash,
	txOrigin common.Address,
	inScopeOrders []*order.Order,
	approvalExpirationTimeSeconds int64,
) (*Result, error) {
	approvalHash, err := bundle.Oracle.HashBuilder.BuildApprovalHash(
		signedMetaTxHash, txOrigin, bundle.CoordinatorAddress, approvalExpirationTimeSeconds,
	)
	if err != nil {
		return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to build approval hash", err)
	}

	recipients := distinctFeeRecipientsInOrder(inScopeOrders)

	signatures := make([][]byte, 0, len(recipients))
	for _, recipient := range recipients {
		privKey, ok := bundle.Keyring[recipient]
		if !ok {
			return nil, coordinatorerr.New(coordinatorerr.CodeConfigurationError,
				"no private key configured for fee recipient "+recipient.Hex())
		}

		sig, err := crypto.Sign(approvalHash.Bytes(), privKey)
		if err != nil {
			return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "failed to sign approval hash", err)
		}

		signature := make([]byte, 0, len(sig)+1)
		signature = append(signature, sig...)
		signature = append(signature, eip712SignatureType)
		signatures = append(signatures, signature)
	}

	return &Result{
		Signatures:            signatures,
		ExpirationTimeSeconds: approvalExpirationTimeSeconds,
	}, nil
}

// distinctFeeRecipientsInOrder returns each order's fee-recipient
// address, deduplicated while preserving first-seen order.
func distinctFeeRecipientsInOrder(orders []*order.Order) []common.Address {
	seen := make(map[common.Address]bool, len(orders))
	result := make([]common.Address, 0, len(orders))
	for _, o := range orders {
		if seen[o.FeeRecipientAddress] {
			continue
		}
		seen[o.FeeRecipientAddress] = true
		result = append(result, o.FeeRecipientAddress)
	}
	return result
}
