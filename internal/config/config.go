// Package config loads the coordinator's process configuration.
//
// Grounded on the teacher's internal/app/config.go: a single struct,
// built once at startup from JSON, and treated as read-only for the
// rest of the process lifetime.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FeeRecipient pairs an address with the private-key hex that controls
// it. Loaded once at startup; never mutated. Mirrors the teacher's
// EthereumSigner inputs (src/chainadapter/ethereum/signer.go).
type FeeRecipient struct {
	Address       common.Address `json:"ADDRESS"`
	PrivateKeyHex string         `json:"PRIVATE_KEY"`
}

// ContractAddresses holds a chain's exchange and asset-proxy addresses.
// There are no built-in defaults: the live oracle factory rejects a chain
// whose Exchange address is unset, and uses the exchange address as the
// asset proxy when AssetProxy is unset.
type ContractAddresses struct {
	Exchange   string `json:"exchange,omitempty"`
	AssetProxy string `json:"erc20Proxy,omitempty"`
}

// ChainSettings is the per-chain configuration block.
type ChainSettings struct {
	ChainID           int64                        `json:"-"`
	FeeRecipients     []FeeRecipient               `json:"FEE_RECIPIENTS"`
	RPCURL            string                       `json:"RPC_URL"`
	ContractAddresses *ContractAddresses           `json:"CHAIN_ID_TO_CONTRACT_ADDRESSES,omitempty"`
}

// Config is the coordinator's immutable process configuration.
type Config struct {
	HTTPPort                   int                        `json:"HTTP_PORT"`
	SelectiveDelayMS            int64                      `json:"SELECTIVE_DELAY_MS"`
	ExpirationDurationSeconds    int64                      `json:"EXPIRATION_DURATION_SECONDS"`
	ChainIDToSettings            map[string]ChainSettings  `json:"CHAIN_ID_TO_SETTINGS"`
	TakerContractWhitelist       []common.Address          `json:"TAKER_CONTRACT_WHITELIST"`
	// DatabaseURL, when set, selects the Postgres-backed order/transaction
	// stores (orderstore.OpenSQLStore, txstore.OpenSQLStore). Left empty,
	// the process runs the in-memory stores instead — the same
	// durable-vs-ephemeral choice the teacher's storage layer offers
	// between its USB-file store and any future networked backend.
	DatabaseURL string `json:"DATABASE_URL,omitempty"`
	// AuditLogPath, when set, turns on an append-only NDJSON trail of
	// every RequestApproval/ListSoftCancelled decision.
	AuditLogPath string `json:"AUDIT_LOG_PATH,omitempty"`
}

// Load reads configuration from the JSON file at path and applies
// scalar environment-variable overrides for HTTP_PORT,
// SELECTIVE_DELAY_MS and EXPIRATION_DURATION_SECONDS, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	for chainIDStr, settings := range cfg.ChainIDToSettings {
		chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id key %q: %w", chainIDStr, err)
		}
		settings.ChainID = chainID
		cfg.ChainIDToSettings[chainIDStr] = settings
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("SELECTIVE_DELAY_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.SelectiveDelayMS = n
		}
	}
	if v := os.Getenv("EXPIRATION_DURATION_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ExpirationDurationSeconds = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
}

func (c *Config) validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be in [0, 65535], got %d", c.HTTPPort)
	}
	if c.SelectiveDelayMS < 0 {
		return fmt.Errorf("SELECTIVE_DELAY_MS must be non-negative, got %d", c.SelectiveDelayMS)
	}
	if c.ExpirationDurationSeconds <= 0 {
		return fmt.Errorf("EXPIRATION_DURATION_SECONDS must be positive, got %d", c.ExpirationDurationSeconds)
	}
	for chainIDStr, settings := range c.ChainIDToSettings {
		for _, fr := range settings.FeeRecipients {
			derived, err := addressFromPrivateKeyHex(fr.PrivateKeyHex)
			if err != nil {
				return fmt.Errorf("chain %s: fee recipient %s: %w", chainIDStr, fr.Address.Hex(), err)
			}
			if derived != fr.Address {
				return fmt.Errorf("chain %s: configured address %s does not match address %s derived from its private key", chainIDStr, fr.Address.Hex(), derived.Hex())
			}
		}
	}
	return nil
}

// IsTakerWhitelisted reports whether addr is in TAKER_CONTRACT_WHITELIST.
func (c *Config) IsTakerWhitelisted(addr common.Address) bool {
	for _, a := range c.TakerContractWhitelist {
		if a == addr {
			return true
		}
	}
	return false
}

// SupportedChainIDs returns the configured chain ids as int64s.
func (c *Config) SupportedChainIDs() []int64 {
	ids := make([]int64, 0, len(c.ChainIDToSettings))
	for _, s := range c.ChainIDToSettings {
		ids = append(ids, s.ChainID)
	}
	return ids
}

// addressFromPrivateKeyHex derives the checksummed address controlled by
// a hex-encoded secp256k1 private key, the same derivation
// NewEthereumSigner performs in src/chainadapter/ethereum/signer.go.
func addressFromPrivateKeyHex(hexKey string) (common.Address, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	keyBytes, err := hex.DecodeString(hexKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key hex: %w", err)
	}
	privKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key: %w", err)
	}
	return crypto.PubkeyToAddress(privKey.PublicKey), nil
}
