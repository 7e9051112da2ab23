package coordinator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
)

// validate rejects a request whose signed meta-transaction is missing a
// required field or carries an obviously malformed one. Shape checks
// that the wire decoder already performs (valid hex, valid decimal
// strings) are assumed done by the time a SignedMetaTx reaches here;
// this only checks the zero-value / presence invariants the decoder
// cannot express as Go types.
func (tx *SignedMetaTx) validate() *coordinatorerr.CoordinatorError {
	if tx.SignerAddress == (common.Address{}) {
		return coordinatorerr.NewSchemaViolation("signedTransaction.signerAddress", coordinatorerr.ValidationRequiredField, "signerAddress is required")
	}
	if tx.Salt == nil {
		return coordinatorerr.NewSchemaViolation("signedTransaction.salt", coordinatorerr.ValidationRequiredField, "salt is required")
	}
	if tx.ExpirationTimeSeconds == nil {
		return coordinatorerr.NewSchemaViolation("signedTransaction.expirationTimeSeconds", coordinatorerr.ValidationRequiredField, "expirationTimeSeconds is required")
	}
	if tx.GasPrice == nil {
		return coordinatorerr.NewSchemaViolation("signedTransaction.gasPrice", coordinatorerr.ValidationRequiredField, "gasPrice is required")
	}
	if len(tx.Data) == 0 {
		return coordinatorerr.NewSchemaViolation("signedTransaction.data", coordinatorerr.ValidationRequiredField, "data is required")
	}
	if tx.VerifyingContract == (common.Address{}) {
		return coordinatorerr.NewSchemaViolation("signedTransaction.domain.verifyingContract", coordinatorerr.ValidationRequiredField, "domain.verifyingContract is required")
	}
	if len(tx.Signature) == 0 {
		return coordinatorerr.NewSchemaViolation("signedTransaction.signature", coordinatorerr.ValidationRequiredField, "signature is required")
	}
	return nil
}

func (r *ApprovalRequest) validate(urlChainID int64) *coordinatorerr.CoordinatorError {
	if r.TxOrigin == (common.Address{}) {
		return coordinatorerr.NewSchemaViolation("txOrigin", coordinatorerr.ValidationRequiredField, "txOrigin is required")
	}
	if r.SignedMetaTx == nil {
		return coordinatorerr.NewSchemaViolation("signedTransaction", coordinatorerr.ValidationRequiredField, "signedTransaction is required")
	}
	if verr := r.SignedMetaTx.validate(); verr != nil {
		return verr
	}
	if r.SignedMetaTx.DomainChainID != urlChainID {
		return coordinatorerr.NewSchemaViolation("signedTransaction.domain.chainId", coordinatorerr.ValidationIncorrectFormat,
			"domain.chainId does not match the chainId query parameter")
	}
	return nil
}
