package network

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/smartcontract-lottery/lottery/config"
)

var (
	// Accounts of ganache started by Brownie with --mnemonic brownie.
	devAccount0 = common.HexToAddress("0x66aB6D9362d4F35596279692F0251Db635165871")
	devAccount1 = common.HexToAddress("0x33A4622B82D4c04a53e170c638B944ce27cffce3")
)

func TestNetworkSets(t *testing.T) {
	require.True(t, IsLocal("development"))
	require.True(t, IsLocal("ganache-local"))
	require.False(t, IsLocal("mainnet-fork"))
	require.True(t, IsForked("mainnet-fork-dev"))
	require.False(t, IsForked("rinkeby"))
	require.True(t, NeedsMocks("ganache-local"))
	require.False(t, NeedsMocks("mainnet-fork"))
}

func TestDeploymentKey(t *testing.T) {
	require.Equal(t, "dev", DeploymentKey("development", 1337))
	require.Equal(t, "1337", DeploymentKey("ganache-local", 1337))
	require.Equal(t, "4", DeploymentKey("rinkeby", 4))
}

func TestGetLocalUsesFirstDevAccount(t *testing.T) {
	for _, name := range []string{"development", "ganache-local", "mainnet-fork"} {
		accts := NewAccounts(name, &config.Config{}, t.TempDir(), nil)
		acct, err := accts.Get(0, "")
		require.NoError(t, err, name)
		require.Equal(t, devAccount0, acct.Address, name)
	}
}

func TestGetIndex(t *testing.T) {
	accts := NewAccounts("rinkeby", &config.Config{}, t.TempDir(), nil)
	acct, err := accts.Get(1, "")
	require.NoError(t, err)
	require.Equal(t, devAccount1, acct.Address)
}

func TestGetLiveUsesFromKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := &config.Config{Wallets: config.Wallets{FromKey: common.Bytes2Hex(crypto.FromECDSA(key))}}

	acct, err := NewAccounts("rinkeby", cfg, t.TempDir(), nil).Get(0, "")
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), acct.Address)

	_, err = NewAccounts("rinkeby", &config.Config{}, t.TempDir(), nil).Get(0, "")
	require.ErrorIs(t, err, ErrNoWallet)
}

func TestGetKeystoreAccount(t *testing.T) {
	dir := t.TempDir()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	k := &keystore.Key{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	keyjson, err := keystore.EncryptKey(k, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deployer.json"), keyjson, 0o600))

	var asked string
	accts := NewAccounts("rinkeby", &config.Config{}, dir, func(id string) (string, error) {
		asked = id
		return "hunter2", nil
	})
	acct, err := accts.Get(0, "deployer")
	require.NoError(t, err)
	require.Equal(t, "deployer", asked)
	require.Equal(t, k.Address, acct.Address)

	failing := NewAccounts("rinkeby", &config.Config{}, dir, func(string) (string, error) {
		return "", errors.New("no tty")
	})
	_, err = failing.Get(0, "deployer")
	require.Error(t, err)
}

func TestCustomDevMnemonic(t *testing.T) {
	// anvil and hardhat accounts.
	cfg := &config.Config{DevMnemonic: "test test test test test test test test test test test junk"}
	acct, err := NewAccounts("development", cfg, t.TempDir(), nil).Get(0, "")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"), acct.Address)
}
