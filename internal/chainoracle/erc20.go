package chainoracle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// erc20AssetProxyID is the 0x ERC20 asset-proxy selector: assetData for
// a plain ERC20 token is this 4-byte id followed by the token address,
// left-padded to 32 bytes.
var erc20AssetProxyID = [4]byte{0xf4, 0x72, 0x61, 0xb0}

// decodeERC20Address extracts the token address from ERC20 assetData.
// Non-ERC20 asset data (ERC721, MultiAsset, StaticCall, …) is not
// supported by the balance/allowance reader: callers should treat an
// error here as "this order's asset cannot be read on-chain by this
// oracle" rather than a decoding bug.
func decodeERC20Address(assetData []byte) (common.Address, error) {
	if len(assetData) != 36 {
		return common.Address{}, fmt.Errorf("chainoracle: assetData length %d is not a plain ERC20 asset", len(assetData))
	}
	var selector [4]byte
	copy(selector[:], assetData[:4])
	if selector != erc20AssetProxyID {
		return common.Address{}, fmt.Errorf("chainoracle: assetData selector %x is not the ERC20 proxy id", selector)
	}
	return common.BytesToAddress(assetData[4:36]), nil
}
