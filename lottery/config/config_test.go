package config

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
dependencies:
  - smartcontractkit/chainlink-brownie-contracts@0.2.1
dotenv: .env
wallets:
  from_key: ${PRIVATE_KEY}
networks:
  default: development
  development:
    key_hash: "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"
    fee: 100000000000000000
  rinkeby:
    vrf_coordinator: "0xb3dCcb4Cf7a26f6cf6B120Cf5A73875B7BBc655B"
    eth_usd_price_feed: "0x8A753747A1Fa494EC906cE90E9f37563A8AF630e"
    link_token: "0x01BE23585060835E02B77ef475b0Cc51aA1e0709"
    key_hash: "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"
    fee: 100000000000000000
    verify: True
  goerli:
    vrf_coordinator_v2: "0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdAD7734D"
    gas_lane: "0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15"
    subscription_id: 1234
    callback_gas_limit: 500000
    interval: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("PRIVATE_KEY=0xabc123\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PRIVATE_KEY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0xabc123", cfg.Wallets.FromKey)
	require.Equal(t, "development", cfg.Networks.Default)
	require.Equal(t, []string{"development", "goerli", "rinkeby"}, cfg.NetworkNames())

	rinkeby, err := cfg.Network("rinkeby")
	require.NoError(t, err)
	require.Equal(t, "rinkeby", rinkeby.Name)
	require.True(t, rinkeby.Verify)
	require.Equal(t, big.NewInt(100000000000000000), rinkeby.Fee.Int)
	require.Equal(t, common.HexToHash("0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"), rinkeby.KeyHashValue())

	feed, err := rinkeby.Address(KeyPriceFeed)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x8A753747A1Fa494EC906cE90E9f37563A8AF630e"), feed)
	require.NoError(t, rinkeby.CheckLive(KeyPriceFeed, KeyVRFCoordinator, KeyLinkToken, KeyFee, KeyKeyHash))

	goerli, err := cfg.Network("goerli")
	require.NoError(t, err)
	require.Equal(t, uint64(1234), goerli.SubscriptionID)
	require.Equal(t, uint32(500000), goerli.CallbackGasLimit)
	require.Equal(t, big.NewInt(30), goerli.Interval.Int)
}

func TestLoadKeepsExistingEnv(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "0xfromshell")
	path := writeConfig(t, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("PRIVATE_KEY=0xfromfile\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0xfromshell", cfg.Wallets.FromKey)
}

func TestLoadUnsetVariableStaysLiteral(t *testing.T) {
	path := writeConfig(t, "wallets:\n  from_key: ${LOTTERY_TEST_UNSET_KEY}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "${LOTTERY_TEST_UNSET_KEY}", cfg.Wallets.FromKey)
}

func TestNetworkDefaultAndUnknown(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	nc, err := cfg.Network("")
	require.NoError(t, err)
	require.Equal(t, "development", nc.Name)

	// Networks without a section still resolve, with nothing configured.
	nc, err = cfg.Network("ganache-local")
	require.NoError(t, err)
	require.Equal(t, "ganache-local", nc.Name)
	_, err = nc.Address(KeyLinkToken)
	require.ErrorIs(t, err, ErrMissingField)

	empty, err := Load(writeConfig(t, "wallets: {}\n"))
	require.NoError(t, err)
	_, err = empty.Network("")
	require.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestCheckLiveReportsAllMissing(t *testing.T) {
	nc := &NetworkConfig{Name: "kovan", LinkToken: "not-an-address"}
	err := nc.CheckLive(KeyPriceFeed, KeyLinkToken, KeyFee, KeyKeyHash)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMissingField)
	require.Contains(t, err.Error(), "networks.kovan.eth_usd_price_feed")
	require.Contains(t, err.Error(), "invalid address")
	require.Contains(t, err.Error(), "networks.kovan.fee")
	require.Contains(t, err.Error(), "networks.kovan.key_hash")
}

func TestBigIntRejectsGarbage(t *testing.T) {
	_, err := Load(writeConfig(t, "networks:\n  development:\n    fee: lots\n"))
	require.Error(t, err)
}

func TestBigOr(t *testing.T) {
	var unset *BigInt
	require.Equal(t, big.NewInt(5), unset.BigOr(big.NewInt(5)))
	require.Equal(t, big.NewInt(7), NewBigInt(7).BigOr(big.NewInt(5)))
}

func TestToJSONKeepsPlaceholders(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "0xsecret")
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "0xsecret", cfg.Wallets.FromKey)

	out := filepath.Join(t.TempDir(), "front", "brownie-config.json")
	require.NoError(t, cfg.ToJSON(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotContains(t, string(data), "0xsecret")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	wallets := doc["wallets"].(map[string]interface{})
	require.Equal(t, "${PRIVATE_KEY}", wallets["from_key"])
	networks := doc["networks"].(map[string]interface{})
	require.Equal(t, "development", networks["default"])
	goerli := networks["goerli"].(map[string]interface{})
	require.Equal(t, float64(30), goerli["interval"])
}
