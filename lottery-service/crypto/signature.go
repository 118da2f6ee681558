// Package crypto provides signer factories for the accounts the lottery
// tooling sends transactions from: raw private keys, HD wallet mnemonics
// and go-ethereum keystore files.
package crypto

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	hdwallet "github.com/ethereum-optimism/go-ethereum-hdwallet"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

var ErrNoKeyMaterial = errors.New("no private key or mnemonic supplied")

// SignerFn signs a transaction for the given address.
type SignerFn func(context.Context, common.Address, *types.Transaction) (*types.Transaction, error)

// SignerFactory creates a SignerFn that is bound to a specific ChainID
type SignerFactory func(chainID *big.Int) SignerFn

// DerivationPath returns the standard Ethereum HD path of the account at index.
func DerivationPath(index int) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", index)
}

// SignerFactoryFromConfig considers the two ways a key can be supplied:
// a hex private key, or a mnemonic with an HD path. Supplying both is an error.
func SignerFactoryFromConfig(privateKey, mnemonic, hdPath string) (SignerFactory, common.Address, error) {
	switch {
	case privateKey != "" && mnemonic != "":
		return nil, common.Address{}, errors.New("cannot specify both a private key and a mnemonic")
	case privateKey != "":
		return SignerFactoryFromPrivateKey(privateKey)
	case mnemonic != "":
		if hdPath == "" {
			hdPath = DerivationPath(0)
		}
		return SignerFactoryFromMnemonic(mnemonic, hdPath)
	default:
		return nil, common.Address{}, ErrNoKeyMaterial
	}
}

func SignerFactoryFromPrivateKey(privateKey string) (SignerFactory, common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to parse the private key: %w", err)
	}
	return SignerFactoryFromKey(key), crypto.PubkeyToAddress(key.PublicKey), nil
}

func SignerFactoryFromMnemonic(mnemonic, hdPath string) (SignerFactory, common.Address, error) {
	key, err := KeyFromMnemonic(mnemonic, hdPath)
	if err != nil {
		return nil, common.Address{}, err
	}
	return SignerFactoryFromKey(key), crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignerFactoryFromKeystore loads the account stored as <dir>/<id>.json,
// decrypting it with passphrase.
func SignerFactoryFromKeystore(dir, id, passphrase string) (SignerFactory, common.Address, error) {
	key, err := KeyFromKeystore(dir, id, passphrase)
	if err != nil {
		return nil, common.Address{}, err
	}
	return SignerFactoryFromKey(key), crypto.PubkeyToAddress(key.PublicKey), nil
}

func SignerFactoryFromKey(key *ecdsa.PrivateKey) SignerFactory {
	from := crypto.PubkeyToAddress(key.PublicKey)
	return func(chainID *big.Int) SignerFn {
		s := PrivateKeySignerFn(key, chainID)
		return func(_ context.Context, addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, fmt.Errorf("attempting to sign for %s, expected %s: %w", addr, from, bind.ErrNotAuthorized)
			}
			return s(addr, tx)
		}
	}
}

// PrivateKeySignerFn returns a bind.SignerFn for the given key and chain.
func PrivateKeySignerFn(key *ecdsa.PrivateKey, chainID *big.Int) bind.SignerFn {
	from := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(chainID)
	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != from {
			return nil, bind.ErrNotAuthorized
		}
		signature, err := crypto.Sign(signer.Hash(tx).Bytes(), key)
		if err != nil {
			return nil, err
		}
		return tx.WithSignature(signer, signature)
	}
}

// KeyFromMnemonic derives the key at hdPath. Phrases that are not valid BIP-39
// mnemonics, like ganache's "brownie", are seeded the way ganache does it:
// without checking the word list.
func KeyFromMnemonic(mnemonic, hdPath string) (*ecdsa.PrivateKey, error) {
	var (
		wallet *hdwallet.Wallet
		err    error
	)
	if mnemonic == "" || bip39.IsMnemonicValid(mnemonic) {
		wallet, err = hdwallet.NewFromMnemonic(mnemonic)
	} else {
		wallet, err = hdwallet.NewFromSeed(bip39.NewSeed(mnemonic, ""))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(hdPath)
	if err != nil {
		return nil, fmt.Errorf("invalid hd path %q: %w", hdPath, err)
	}
	account, err := wallet.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account: %w", err)
	}
	key, err := wallet.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve private key: %w", err)
	}
	return key, nil
}

func KeyFromKeystore(dir, id, passphrase string) (*ecdsa.PrivateKey, error) {
	keyjson, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore account %q: %w", id, err)
	}
	key, err := keystore.DecryptKey(keyjson, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore account %q: %w", id, err)
	}
	return key.PrivateKey, nil
}
