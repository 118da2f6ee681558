package txmgr

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	lotservice "github.com/dcSpark/smartcontract-lottery/lottery-service"
	lotcrypto "github.com/dcSpark/smartcontract-lottery/lottery-service/crypto"
)

const (
	// Duplicated L1 RPC flag
	L1RPCFlagName   = "l1-eth-rpc"
	ChainIDFlagName = "chain-id"
	// Key Management Flags
	MnemonicFlagName   = "mnemonic"
	HDPathFlagName     = "hd-path"
	PrivateKeyFlagName = "private-key"
	// TxMgr Flags
	NumConfirmationsFlagName          = "num-confirmations"
	SafeAbortNonceTooLowCountFlagName = "safe-abort-nonce-too-low-count"
	ResubmissionTimeoutFlagName       = "resubmission-timeout"
	NetworkTimeoutFlagName            = "network-timeout"
	TxSendTimeoutFlagName             = "txmgr.send-timeout"
	TxNotInMempoolTimeoutFlagName     = "txmgr.not-in-mempool-timeout"
	ReceiptQueryIntervalFlagName      = "txmgr.receipt-query-interval"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   MnemonicFlagName,
			Usage:  "The mnemonic used to derive the sending wallet",
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "MNEMONIC"),
		},
		cli.StringFlag{
			Name:   HDPathFlagName,
			Usage:  "The HD path used to derive the wallet from the mnemonic. The mnemonic flag must also be set.",
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "HD_PATH"),
		},
		cli.StringFlag{
			Name:   PrivateKeyFlagName,
			Usage:  "The private key to use with the service. Must not be used with mnemonic.",
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "PRIVATE_KEY"),
		},
		cli.Uint64Flag{
			Name:   ChainIDFlagName,
			Usage:  "Chain ID used when signing. If 0 it is fetched from the RPC endpoint.",
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "CHAIN_ID"),
		},
		cli.Uint64Flag{
			Name:   NumConfirmationsFlagName,
			Usage:  "Number of confirmations which we will wait after sending a transaction",
			Value:  1,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "NUM_CONFIRMATIONS"),
		},
		cli.Uint64Flag{
			Name:   SafeAbortNonceTooLowCountFlagName,
			Usage:  "Number of ErrNonceTooLow observations required to give up on a tx at a particular nonce without receiving confirmation",
			Value:  3,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "SAFE_ABORT_NONCE_TOO_LOW_COUNT"),
		},
		cli.DurationFlag{
			Name:   ResubmissionTimeoutFlagName,
			Usage:  "Duration we will wait before resubmitting a transaction with a higher fee",
			Value:  48 * time.Second,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "RESUBMISSION_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   NetworkTimeoutFlagName,
			Usage:  "Timeout for all network operations",
			Value:  10 * time.Second,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "NETWORK_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   TxSendTimeoutFlagName,
			Usage:  "Timeout for sending transactions. If 0 it is disabled.",
			Value:  0,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "TXMGR_TX_SEND_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   TxNotInMempoolTimeoutFlagName,
			Usage:  "Timeout for aborting a tx send if the tx does not make it to the mempool.",
			Value:  2 * time.Minute,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "TXMGR_TX_NOT_IN_MEMPOOL_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   ReceiptQueryIntervalFlagName,
			Usage:  "Frequency to poll for receipts",
			Value:  time.Second,
			EnvVar: lotservice.PrefixEnvVar(envPrefix, "TXMGR_RECEIPT_QUERY_INTERVAL"),
		},
	}
}

type CLIConfig struct {
	L1RPCURL                  string
	ChainID                   uint64
	Mnemonic                  string
	HDPath                    string
	PrivateKey                string
	NumConfirmations          uint64
	SafeAbortNonceTooLowCount uint64
	ResubmissionTimeout       time.Duration
	ReceiptQueryInterval      time.Duration
	NetworkTimeout            time.Duration
	TxSendTimeout             time.Duration
	TxNotInMempoolTimeout     time.Duration
}

func (m CLIConfig) Check() error {
	if m.L1RPCURL == "" {
		return errors.New("must provide a L1 RPC url")
	}
	if m.NumConfirmations == 0 {
		return errors.New("NumConfirmations must not be 0")
	}
	if m.NetworkTimeout == 0 {
		return errors.New("must provide NetworkTimeout")
	}
	if m.ResubmissionTimeout == 0 {
		return errors.New("must provide ResubmissionTimeout")
	}
	if m.ReceiptQueryInterval == 0 {
		return errors.New("must provide ReceiptQueryInterval")
	}
	if m.TxNotInMempoolTimeout == 0 {
		return errors.New("must provide TxNotInMempoolTimeout")
	}
	if m.SafeAbortNonceTooLowCount == 0 {
		return errors.New("SafeAbortNonceTooLowCount must not be 0")
	}
	return nil
}

// ReadCLIConfig reads the tx manager flags. The RPC url is owned by the caller
// since it is shared with the read-only contract bindings.
func ReadCLIConfig(ctx *cli.Context, rpcURL string) CLIConfig {
	return CLIConfig{
		L1RPCURL:                  rpcURL,
		ChainID:                   ctx.GlobalUint64(ChainIDFlagName),
		Mnemonic:                  ctx.GlobalString(MnemonicFlagName),
		HDPath:                    ctx.GlobalString(HDPathFlagName),
		PrivateKey:                ctx.GlobalString(PrivateKeyFlagName),
		NumConfirmations:          ctx.GlobalUint64(NumConfirmationsFlagName),
		SafeAbortNonceTooLowCount: ctx.GlobalUint64(SafeAbortNonceTooLowCountFlagName),
		ResubmissionTimeout:       ctx.GlobalDuration(ResubmissionTimeoutFlagName),
		ReceiptQueryInterval:      ctx.GlobalDuration(ReceiptQueryIntervalFlagName),
		NetworkTimeout:            ctx.GlobalDuration(NetworkTimeoutFlagName),
		TxSendTimeout:             ctx.GlobalDuration(TxSendTimeoutFlagName),
		TxNotInMempoolTimeout:     ctx.GlobalDuration(TxNotInMempoolTimeoutFlagName),
	}
}

// DefaultCLIConfig is used by callers that do not read flags, like the
// integration tests.
func DefaultCLIConfig(rpcURL string) CLIConfig {
	return CLIConfig{
		L1RPCURL:                  rpcURL,
		NumConfirmations:          1,
		SafeAbortNonceTooLowCount: 3,
		ResubmissionTimeout:       48 * time.Second,
		ReceiptQueryInterval:      time.Second,
		NetworkTimeout:            10 * time.Second,
		TxNotInMempoolTimeout:     2 * time.Minute,
	}
}

func NewConfig(cfg CLIConfig, l log.Logger) (Config, error) {
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.NetworkTimeout)
	defer cancel()
	l1, err := ethclient.DialContext(ctx, cfg.L1RPCURL)
	if err != nil {
		return Config{}, fmt.Errorf("could not dial eth client: %w", err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = l1.ChainID(ctx)
		if err != nil {
			return Config{}, fmt.Errorf("could not fetch L1 chain ID: %w", err)
		}
	}

	signerFactory, from, err := lotcrypto.SignerFactoryFromConfig(cfg.PrivateKey, cfg.Mnemonic, cfg.HDPath)
	if err != nil {
		return Config{}, fmt.Errorf("could not init signer: %w", err)
	}
	l.Debug("tx manager configured", "from", from, "chainID", chainID)

	return NewConfigFromBackend(cfg, l1, chainID, from, signerFactory(chainID)), nil
}

// NewConfigFromBackend builds a Config from already resolved parts. It is used by
// callers that own the backend and manage several accounts against it.
func NewConfigFromBackend(cfg CLIConfig, backend ETHBackend, chainID *big.Int, from common.Address, signer lotcrypto.SignerFn) Config {
	return Config{
		Backend:                   backend,
		ChainID:                   chainID,
		ResubmissionTimeout:       cfg.ResubmissionTimeout,
		TxSendTimeout:             cfg.TxSendTimeout,
		TxNotInMempoolTimeout:     cfg.TxNotInMempoolTimeout,
		NetworkTimeout:            cfg.NetworkTimeout,
		ReceiptQueryInterval:      cfg.ReceiptQueryInterval,
		NumConfirmations:          cfg.NumConfirmations,
		SafeAbortNonceTooLowCount: cfg.SafeAbortNonceTooLowCount,
		Signer:                    signer,
		From:                      from,
	}
}

// Config houses parameters for altering the behavior of a SimpleTxManager.
type Config struct {
	Backend ETHBackend
	// ChainID is the chain ID of the L1 chain.
	ChainID *big.Int

	// ResubmissionTimeout is the interval at which, if no previously
	// published transaction has been mined, the new tx with a bumped gas
	// price will be published.
	ResubmissionTimeout time.Duration

	// TxSendTimeout is how long to wait for sending a transaction.
	// By default it is unbounded.
	TxSendTimeout time.Duration

	// TxNotInMempoolTimeout is how long to wait before aborting a transaction send if the transaction does not
	// make it to the mempool. If the tx is in the mempool, TxSendTimeout is used instead.
	TxNotInMempoolTimeout time.Duration

	// NetworkTimeout is the allowed duration for a single network request.
	// This is intended to be used for network requests that can be replayed.
	NetworkTimeout time.Duration

	// RequireQueryInterval is the interval at which the tx manager will
	// query the backend to check for confirmations after a tx at a
	// specific gas price has been published.
	ReceiptQueryInterval time.Duration

	// NumConfirmations specifies how many blocks are need to consider a
	// transaction confirmed.
	NumConfirmations uint64

	// SafeAbortNonceTooLowCount specifies how many ErrNonceTooLow observations
	// are required to give up on a tx at a particular nonce without receiving
	// confirmation.
	SafeAbortNonceTooLowCount uint64

	// Signer is used to sign transactions when the gas price is increased.
	Signer lotcrypto.SignerFn
	From   common.Address
}
