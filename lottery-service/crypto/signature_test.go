package crypto

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic   = "test test test test test test test test test test test junk"
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var (
	testAddress0 = common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	testAddress1 = common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
)

func signAndRecover(t *testing.T, factory SignerFactory, from common.Address) common.Address {
	chainID := big.NewInt(1337)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &from,
		Value:     big.NewInt(1),
	})
	signed, err := factory(chainID)(context.Background(), from, tx)
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	return sender
}

func TestPkSigner(t *testing.T) {
	factory, addr, err := SignerFactoryFromPrivateKey("0x" + testPrivateKey)
	require.NoError(t, err)
	require.Equal(t, testAddress0, addr)
	require.Equal(t, addr, signAndRecover(t, factory, addr))
}

func TestMnemonicSigner(t *testing.T) {
	factory, addr, err := SignerFactoryFromMnemonic(testMnemonic, DerivationPath(1))
	require.NoError(t, err)
	require.Equal(t, testAddress1, addr)
	require.Equal(t, addr, signAndRecover(t, factory, addr))
}

func TestSignerRejectsOtherAddress(t *testing.T) {
	factory, _, err := SignerFactoryFromPrivateKey(testPrivateKey)
	require.NoError(t, err)
	tx := types.NewTx(&types.LegacyTx{Nonce: 0, Gas: 21000, GasPrice: big.NewInt(1)})
	_, err = factory(big.NewInt(1))(context.Background(), testAddress1, tx)
	require.Error(t, err)
}

func TestSignerFactoryFromConfig(t *testing.T) {
	_, _, err := SignerFactoryFromConfig("", "", "")
	require.ErrorIs(t, err, ErrNoKeyMaterial)

	_, _, err = SignerFactoryFromConfig(testPrivateKey, testMnemonic, "")
	require.Error(t, err)

	_, addr, err := SignerFactoryFromConfig("", testMnemonic, "")
	require.NoError(t, err)
	require.Equal(t, testAddress0, addr)
}

func TestKeystoreSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)
	k := &keystore.Key{
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	blob, err := keystore.EncryptKey(k, "passphrase", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deployer.json"), blob, 0o600))

	factory, addr, err := SignerFactoryFromKeystore(dir, "deployer", "passphrase")
	require.NoError(t, err)
	require.Equal(t, testAddress0, addr)
	require.Equal(t, addr, signAndRecover(t, factory, addr))

	_, _, err = SignerFactoryFromKeystore(dir, "deployer", "wrong")
	require.Error(t, err)
	_, _, err = SignerFactoryFromKeystore(dir, "missing", "passphrase")
	require.Error(t, err)
}

func TestGanachePhraseSigner(t *testing.T) {
	// ganache-cli --mnemonic brownie, as started by Brownie's development network.
	want := []common.Address{
		common.HexToAddress("0x66aB6D9362d4F35596279692F0251Db635165871"),
		common.HexToAddress("0x33A4622B82D4c04a53e170c638B944ce27cffce3"),
		common.HexToAddress("0x0063046686E46Dc6F15918b61AE2B121458534a5"),
	}
	for i, addr := range want {
		factory, got, err := SignerFactoryFromMnemonic("brownie", DerivationPath(i))
		require.NoError(t, err)
		require.Equal(t, addr, got)
		require.Equal(t, addr, signAndRecover(t, factory, addr))
	}
}
