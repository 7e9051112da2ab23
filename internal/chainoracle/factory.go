package chainoracle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/oracle"
)

// domainName/domainVersion are the EIP-712 domain fields the exchange
// contract's CoordinatorRegistry expects the coordinator's own
// approval signatures to be scoped under.
const (
	domainName    = "0x Protocol Coordinator"
	domainVersion = "3.0.0"
)

// NewOracleFactory builds a chainregistry.OracleFactory that dials the
// chain's configured RPC endpoint with ethclient and wires a live
// Decoder, StateReader, HashBuilder and Verifier over it. One Decoder
// and Verifier are shared across every chain since neither holds
// chain-specific state.
func NewOracleFactory() func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
	decoder := NewDecoder()
	verifier := NewVerifier()

	return func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
		if settings.RPCURL == "" {
			return oracle.Bundle{}, common.Address{}, fmt.Errorf("chainoracle: chain %d has no RPC_URL configured", settings.ChainID)
		}
		if settings.ContractAddresses == nil || settings.ContractAddresses.Exchange == "" {
			return oracle.Bundle{}, common.Address{}, fmt.Errorf("chainoracle: chain %d has no exchange contract address configured", settings.ChainID)
		}

		client, err := ethclient.Dial(settings.RPCURL)
		if err != nil {
			return oracle.Bundle{}, common.Address{}, fmt.Errorf("chainoracle: failed to dial RPC endpoint for chain %d: %w", settings.ChainID, err)
		}

		exchangeAddress := common.HexToAddress(settings.ContractAddresses.Exchange)
		assetProxyAddress := exchangeAddress
		if settings.ContractAddresses.AssetProxy != "" {
			assetProxyAddress = common.HexToAddress(settings.ContractAddresses.AssetProxy)
		}

		filledReader := NewExchangeFilledReader(client, exchangeAddress)
		stateReader := NewStateReader(client, assetProxyAddress, filledReader)
		hashBuilder := NewHashBuilder(domainName, domainVersion, settings.ChainID)

		bundle := oracle.Bundle{
			Decoder:     decoder,
			StateReader: stateReader,
			HashBuilder: hashBuilder,
			Verifier:    verifier,
		}
		return bundle, exchangeAddress, nil
	}
}
