package network

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"

	lotcrypto "github.com/dcSpark/smartcontract-lottery/lottery-service/crypto"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
)

const (
	Development    = "development"
	GanacheLocal   = "ganache-local"
	MainnetFork    = "mainnet-fork"
	MainnetForkDev = "mainnet-fork-dev"
)

// DefaultDevMnemonic seeds the unlocked accounts of local and forked chains
// when the config does not name one. Brownie starts ganache with it on the
// development and mainnet-fork networks. Chains started otherwise (anvil,
// hardhat, the ganache app) need dev_mnemonic in the config.
const DefaultDevMnemonic = "brownie"

var (
	// LocalBlockchainEnvironments are chains started for development. Mocks are
	// deployed on them and the deployer answers randomness requests itself.
	LocalBlockchainEnvironments = []string{Development, GanacheLocal}
	// ForkedLocalEnvironments are local forks of a live chain. They use the live
	// contract addresses but unlocked development accounts.
	ForkedLocalEnvironments = []string{MainnetFork, MainnetForkDev}
)

var ErrNoWallet = errors.New("no wallet configured")

func IsLocal(name string) bool {
	return slices.Contains(LocalBlockchainEnvironments, name)
}

func IsForked(name string) bool {
	return slices.Contains(ForkedLocalEnvironments, name)
}

// NeedsMocks reports whether contracts are replaced by freshly deployed mocks.
func NeedsMocks(name string) bool {
	return IsLocal(name)
}

// DeploymentKey is the chain key under which deployments are recorded in the
// deployment map. The development chain is ephemeral and lives under "dev".
func DeploymentKey(name string, chainID uint64) string {
	if name == Development {
		return "dev"
	}
	return strconv.FormatUint(chainID, 10)
}

// DefaultKeystoreDir is where Brownie keeps named accounts.
func DefaultKeystoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".brownie", "accounts")
	}
	return filepath.Join(home, ".brownie", "accounts")
}

// Account is a sending address with the means to sign for it.
type Account struct {
	Address common.Address
	Signer  lotcrypto.SignerFactory
}

// PassphraseFn supplies the password of a keystore account.
type PassphraseFn func(id string) (string, error)

// Accounts selects the sending account the way the deploy scripts do.
type Accounts struct {
	network     string
	mnemonic    string
	fromKey     string
	keystoreDir string
	passphrase  PassphraseFn
}

func NewAccounts(network string, cfg *config.Config, keystoreDir string, passphrase PassphraseFn) *Accounts {
	mnemonic := cfg.DevMnemonic
	if mnemonic == "" {
		mnemonic = DefaultDevMnemonic
	}
	if keystoreDir == "" {
		keystoreDir = DefaultKeystoreDir()
	}
	return &Accounts{
		network:     network,
		mnemonic:    mnemonic,
		fromKey:     cfg.Wallets.FromKey,
		keystoreDir: keystoreDir,
		passphrase:  passphrase,
	}
}

// Get returns an account:
//   - a non-zero index selects that development account,
//   - an id loads the named keystore account,
//   - on local and forked chains the first development account is used,
//   - otherwise the key in wallets.from_key.
//
// Index 0 falls through to the later rules, like the scripts it replaces.
func (a *Accounts) Get(index int, id string) (Account, error) {
	if index > 0 {
		return a.Dev(index)
	}
	if id != "" {
		return a.keystore(id)
	}
	if IsLocal(a.network) || IsForked(a.network) {
		return a.Dev(0)
	}
	if a.fromKey == "" {
		return Account{}, fmt.Errorf("%w: set wallets.from_key for network %s", ErrNoWallet, a.network)
	}
	factory, addr, err := lotcrypto.SignerFactoryFromPrivateKey(a.fromKey)
	if err != nil {
		return Account{}, fmt.Errorf("invalid wallets.from_key: %w", err)
	}
	return Account{Address: addr, Signer: factory}, nil
}

// Dev derives the development account at index from the dev mnemonic.
func (a *Accounts) Dev(index int) (Account, error) {
	factory, addr, err := lotcrypto.SignerFactoryFromMnemonic(a.mnemonic, lotcrypto.DerivationPath(index))
	if err != nil {
		return Account{}, fmt.Errorf("failed to derive dev account %d: %w", index, err)
	}
	return Account{Address: addr, Signer: factory}, nil
}

func (a *Accounts) keystore(id string) (Account, error) {
	var pass string
	if a.passphrase != nil {
		var err error
		if pass, err = a.passphrase(id); err != nil {
			return Account{}, fmt.Errorf("failed to read password for %s: %w", id, err)
		}
	}
	factory, addr, err := lotcrypto.SignerFactoryFromKeystore(a.keystoreDir, id, pass)
	if err != nil {
		return Account{}, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	return Account{Address: addr, Signer: factory}, nil
}
