// Package chainregistry is the chain-id -> ChainBundle lookup.
// Populated once at startup from configuration; read-only for the
// rest of the process, so — unlike the teacher's provider.ProviderRegistry
// (src/chainadapter/provider/registry.go), which guards a registry that
// keeps growing at runtime with a sync.RWMutex — no locking is needed
// here at all once Build has returned.
package chainregistry

import (
	"crypto/ecdsa"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/oracle"
)

// Keyring maps a fee-recipient address to the private key controlling
// it. Built once, safe for concurrent read afterward.
type Keyring map[common.Address]*ecdsa.PrivateKey

// ChainBundle is everything the coordinator knows about one chain.
type ChainBundle struct {
	ChainID             int64
	Oracle              oracle.Bundle
	Keyring             Keyring
	CoordinatorAddress  common.Address
	FeeRecipients       []common.Address // first-seen-stable order of configured recipients
}

// IsFeeRecipient reports whether addr is one of this chain's configured
// fee-recipient identities — the filter used to decide which orders in
// a batch are in scope for this coordinator instance.
func (b *ChainBundle) IsFeeRecipient(addr common.Address) bool {
	_, ok := b.Keyring[addr]
	return ok
}

// OracleFactory builds the four-oracle capability set and coordinator
// contract address for one chain's settings. Supplied by the process
// bootstrap (cmd/coordinator) so this package stays decoupled from any
// concrete RPC client.
type OracleFactory func(settings config.ChainSettings) (oracle.Bundle, common.Address, error)

// Registry is the immutable chainId -> ChainBundle map.
type Registry struct {
	bundles map[int64]*ChainBundle
}

// Build constructs the registry from configuration. Each fee recipient's
// parsed private key is keyed by its configured address; the address is
// not re-derived here, since config.Load already checked that it matches
// the key.
func Build(cfg *config.Config, factory OracleFactory) (*Registry, error) {
	r := &Registry{bundles: make(map[int64]*ChainBundle, len(cfg.ChainIDToSettings))}

	for _, settings := range cfg.ChainIDToSettings {
		ob, coordinatorAddr, err := factory(settings)
		if err != nil {
			return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError,
				"failed to build oracle bundle for chain "+strconv.FormatInt(settings.ChainID, 10), err)
		}

		keyring := make(Keyring, len(settings.FeeRecipients))
		feeRecipients := make([]common.Address, 0, len(settings.FeeRecipients))
		for _, fr := range settings.FeeRecipients {
			privKey, err := privateKeyFromHex(fr.PrivateKeyHex)
			if err != nil {
				return nil, coordinatorerr.Wrap(coordinatorerr.CodeConfigurationError, "invalid fee recipient private key", err)
			}
			keyring[fr.Address] = privKey
			feeRecipients = append(feeRecipients, fr.Address)
		}

		r.bundles[settings.ChainID] = &ChainBundle{
			ChainID:            settings.ChainID,
			Oracle:             ob,
			Keyring:            keyring,
			CoordinatorAddress: coordinatorAddr,
			FeeRecipients:      feeRecipients,
		}
	}

	return r, nil
}

// Lookup returns the bundle for chainID, or an UnsupportedChain error.
func (r *Registry) Lookup(chainID int64) (*ChainBundle, error) {
	b, ok := r.bundles[chainID]
	if !ok {
		return nil, coordinatorerr.NewUnsupportedChain(strconv.FormatInt(chainID, 10))
	}
	return b, nil
}

// SupportedChainIDs lists every registered chain id.
func (r *Registry) SupportedChainIDs() []int64 {
	ids := make([]int64, 0, len(r.bundles))
	for id := range r.bundles {
		ids = append(ids, id)
	}
	return ids
}
