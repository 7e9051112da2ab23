package chainoracle

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeERC20AddressRoundTrip(t *testing.T) {
	token := common.HexToAddress("0x1234567890123456789012345678901234567890")
	assetData := append(append([]byte{}, erc20AssetProxyID[:]...), common.LeftPadBytes(token.Bytes(), 32)...)

	decoded, err := decodeERC20Address(assetData)
	require.NoError(t, err)
	assert.Equal(t, token, decoded)
}

func TestDecodeERC20AddressRejectsWrongLength(t *testing.T) {
	_, err := decodeERC20Address([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
}

func TestDecodeERC20AddressRejectsWrongSelector(t *testing.T) {
	assetData := make([]byte, 36)
	assetData[0] = 0xff
	_, err := decodeERC20Address(assetData)
	require.Error(t, err)
}
