package deployer

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/contracts"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

// Parameters used on local chains when the network section leaves them out.
var (
	DefaultFee              = big.NewInt(100000000000000000)
	DefaultKeyHash          = common.HexToHash("0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311")
	DefaultGasLane          = common.HexToHash("0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15")
	DefaultCallbackGasLimit = uint32(500000)
	DefaultInterval         = big.NewInt(30)
)

var (
	// DefaultEntryExtra is added on top of the entrance fee when entering.
	DefaultEntryExtra = big.NewInt(100000)
	// StaticRNG answers randomness requests on local chains. With three
	// players 777 % 3 == 0 picks the first one.
	StaticRNG = big.NewInt(777)
)

const (
	DefaultWinnerTimeout      = 240 * time.Second
	DefaultWinnerPollInterval = 5 * time.Second
)

type Config struct {
	// Network is the active network name.
	Network       string
	NetworkConfig *config.NetworkConfig
	// ChainKey is the deployment map key of the active chain.
	ChainKey string

	EntryExtra *big.Int
	LinkFund   *big.Int
	StaticRNG  *big.Int

	// WinnerTimeout bounds WaitForWinner. The oracle answers on its
	// own schedule on live networks.
	WinnerTimeout      time.Duration
	WinnerPollInterval time.Duration

	// UpdateFrontEnd exports the build dir after each deployment.
	UpdateFrontEnd bool
}

func DefaultConfig(networkName string, nc *config.NetworkConfig, chainID uint64) Config {
	return Config{
		Network:            networkName,
		NetworkConfig:      nc,
		ChainKey:           network.DeploymentKey(networkName, chainID),
		EntryExtra:         DefaultEntryExtra,
		LinkFund:           contracts.DefaultLinkFund,
		StaticRNG:          StaticRNG,
		WinnerTimeout:      DefaultWinnerTimeout,
		WinnerPollInterval: DefaultWinnerPollInterval,
	}
}

func (c Config) Check() error {
	if c.Network == "" {
		return errors.New("network must be set")
	}
	if c.NetworkConfig == nil {
		return errors.New("network config must be set")
	}
	if c.ChainKey == "" {
		return errors.New("chain key must be set")
	}
	if c.WinnerTimeout <= 0 {
		return errors.New("winner timeout must be positive")
	}
	if c.WinnerPollInterval <= 0 {
		return errors.New("winner poll interval must be positive")
	}
	if c.StaticRNG == nil || c.StaticRNG.Sign() <= 0 {
		return errors.New("static randomness must be positive")
	}
	return nil
}

func (c Config) contracts() contracts.Config {
	return contracts.Config{
		Network:       c.Network,
		NetworkConfig: c.NetworkConfig,
		ChainKey:      c.ChainKey,
	}
}
