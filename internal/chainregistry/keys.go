package chainregistry

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// privateKeyFromHex parses a hex-encoded secp256k1 private key, the
// same way NewEthereumSigner does in
// src/chainadapter/ethereum/signer.go, minus the address-derivation
// step (config.Load already validated address/key agreement).
func privateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	privKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return privKey, nil
}
