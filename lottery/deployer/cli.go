package deployer

import (
	"errors"
	"time"

	"github.com/urfave/cli"

	lotlog "github.com/dcSpark/smartcontract-lottery/lottery-service/log"
	lotmetrics "github.com/dcSpark/smartcontract-lottery/lottery-service/metrics"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/flags"
)

type CLIConfig struct {
	// ConfigPath is the project config, usually brownie-config.yaml.
	ConfigPath string
	// Network overrides networks.default of the project config.
	Network string
	// RPCURL overrides the host of the network section.
	RPCURL string

	BuildDir string

	KeystoreDir      string
	KeystorePassword string
	AccountIndex     int
	AccountID        string

	ChainInfoDir   string
	ConfigJSONPath string
	UpdateFrontEnd bool

	// FrontEndDebounce overrides the settle time of the front end watcher.
	FrontEndDebounce time.Duration

	WinnerTimeout      time.Duration
	WinnerPollInterval time.Duration

	// The RPC url of TxMgrConfig is filled in once the network is known.
	TxMgrConfig   txmgr.CLIConfig
	LogConfig     lotlog.CLIConfig
	MetricsConfig lotmetrics.CLIConfig
}

func (c CLIConfig) Check() error {
	if c.ConfigPath == "" {
		return errors.New("config path must be set")
	}
	if c.BuildDir == "" {
		return errors.New("build dir must be set")
	}
	if c.AccountIndex < 0 {
		return errors.New("account index must not be negative")
	}
	if c.WinnerTimeout <= 0 {
		return errors.New("winner timeout must be positive")
	}
	if c.WinnerPollInterval <= 0 {
		return errors.New("winner poll interval must be positive")
	}
	if c.TxMgrConfig.PrivateKey != "" && c.TxMgrConfig.Mnemonic != "" {
		return errors.New("cannot specify both a private key and a mnemonic")
	}
	if err := c.LogConfig.Check(); err != nil {
		return err
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return err
	}
	return nil
}

// NewConfig parses the Config from the provided flags or environment variables.
func NewConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		/* Required Flags */
		ConfigPath: ctx.GlobalString(flags.ConfigFlag.Name),
		BuildDir:   ctx.GlobalString(flags.BuildDirFlag.Name),

		/* Optional Flags */
		Network:            ctx.GlobalString(flags.NetworkFlag.Name),
		RPCURL:             ctx.GlobalString(flags.RPCURLFlag.Name),
		KeystoreDir:        ctx.GlobalString(flags.KeystoreDirFlag.Name),
		KeystorePassword:   ctx.GlobalString(flags.KeystorePasswordFlag.Name),
		AccountIndex:       ctx.GlobalInt(flags.AccountIndexFlag.Name),
		AccountID:          ctx.GlobalString(flags.AccountIDFlag.Name),
		ChainInfoDir:       ctx.GlobalString(flags.ChainInfoDirFlag.Name),
		ConfigJSONPath:     ctx.GlobalString(flags.ConfigJSONFlag.Name),
		UpdateFrontEnd:     ctx.GlobalBool(flags.UpdateFrontEndFlag.Name),
		WinnerTimeout:      ctx.GlobalDuration(flags.WinnerTimeoutFlag.Name),
		WinnerPollInterval: ctx.GlobalDuration(flags.WinnerPollIntervalFlag.Name),
		TxMgrConfig:        txmgr.ReadCLIConfig(ctx, ""),
		LogConfig:          lotlog.ReadCLIConfig(ctx),
		MetricsConfig:      lotmetrics.ReadCLIConfig(ctx),
	}
}
