package chainregistry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xproject/coordinator-server/internal/config"
	"github.com/0xproject/coordinator-server/internal/coordinatorerr"
	"github.com/0xproject/coordinator-server/internal/oracle"
)

const testPrivateKeyHex = "4c0883a69102937d6231471b5dbb1522d741beb41cdbd3d8a78f8e9e74d62aa1"

func testConfig() *config.Config {
	return &config.Config{
		ChainIDToSettings: map[string]config.ChainSettings{
			"1": {
				ChainID: 1,
				FeeRecipients: []config.FeeRecipient{
					{Address: common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"), PrivateKeyHex: testPrivateKeyHex},
				},
			},
		},
	}
}

func fakeFactory(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
	bundle, _ := oracle.NewFakeBundle(nil)
	return bundle, common.HexToAddress("0x1234567890123456789012345678901234567890"), nil
}

func TestBuildRegistersEveryConfiguredChain(t *testing.T) {
	registry, err := Build(testConfig(), fakeFactory)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1}, registry.SupportedChainIDs())
}

func TestBuildDerivesKeyringFromPrivateKeys(t *testing.T) {
	registry, err := Build(testConfig(), fakeFactory)
	require.NoError(t, err)

	bundle, err := registry.Lookup(1)
	require.NoError(t, err)

	recipient := common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	assert.True(t, bundle.IsFeeRecipient(recipient))
	assert.False(t, bundle.IsFeeRecipient(common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")))
}

func TestBuildPropagatesFactoryError(t *testing.T) {
	failingFactory := func(settings config.ChainSettings) (oracle.Bundle, common.Address, error) {
		return oracle.Bundle{}, common.Address{}, errors.New("dial failed")
	}

	_, err := Build(testConfig(), failingFactory)
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeConfigurationError))
}

func TestBuildRejectsInvalidPrivateKey(t *testing.T) {
	cfg := testConfig()
	settings := cfg.ChainIDToSettings["1"]
	settings.FeeRecipients[0].PrivateKeyHex = "not-hex"
	cfg.ChainIDToSettings["1"] = settings

	_, err := Build(cfg, fakeFactory)
	require.Error(t, err)
}

func TestLookupUnsupportedChain(t *testing.T) {
	registry, err := Build(testConfig(), fakeFactory)
	require.NoError(t, err)

	_, err = registry.Lookup(999)
	require.Error(t, err)
	assert.True(t, coordinatorerr.Is(err, coordinatorerr.CodeUnsupportedChain))
}
