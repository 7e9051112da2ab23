package coordinator

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func keccak256Hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}
