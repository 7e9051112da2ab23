package chainoracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verifier recovers the signing address from an ECDSA signature over a
// hash and compares it against the claimed signer, following the
// ecrecover discipline of VerifySignature in
// src/chainadapter/ethereum/signer.go.
type Verifier struct{}

// NewVerifier builds a Verifier. It holds no state.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// VerifyMetaTxSignature implements oracle.SignatureVerifier.
func (v *Verifier) VerifyMetaTxSignature(ctx context.Context, signerAddress common.Address, hash common.Hash, signature []byte) (bool, error) {
	recovered, err := recoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == signerAddress, nil
}

// recoverAddress ecrecovers the address that produced signature over
// hash. It accepts both the 27/28 and 0/1 conventions for the
// recovery-id byte, normalizing to 0/1 before calling Ecrecover, same
// as VerifySignature.
func recoverAddress(hash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("chainoracle: signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKeyBytes, err := crypto.Ecrecover(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainoracle: ecrecover failed: %w", err)
	}
	pubKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainoracle: failed to unmarshal recovered public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
