package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	lotservice "github.com/dcSpark/smartcontract-lottery/lottery-service"
	lotlog "github.com/dcSpark/smartcontract-lottery/lottery-service/log"
	lotmetrics "github.com/dcSpark/smartcontract-lottery/lottery-service/metrics"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/frontend"
)

const EnvVarPrefix = "LOTTERY"

func prefixEnvVar(name string) string {
	return lotservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	// Required Flags
	ConfigFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "Path of the project config",
		Value:  config.DefaultPath,
		EnvVar: prefixEnvVar("CONFIG"),
	}
	BuildDirFlag = cli.StringFlag{
		Name:   "build-dir",
		Usage:  "Directory holding the compiled contracts and the deployment map",
		Value:  "build",
		EnvVar: prefixEnvVar("BUILD_DIR"),
	}

	// Optional flags
	NetworkFlag = cli.StringFlag{
		Name:   "network",
		Usage:  "Network to operate on. Defaults to networks.default of the config",
		EnvVar: prefixEnvVar("NETWORK"),
	}
	RPCURLFlag = cli.StringFlag{
		Name:   "rpc-url",
		Usage:  "HTTP or WS endpoint of the chain. Defaults to the host of the network section",
		EnvVar: prefixEnvVar("RPC_URL"),
	}
	KeystoreDirFlag = cli.StringFlag{
		Name:   "keystore-dir",
		Usage:  "Directory of named keystore accounts. Defaults to ~/.brownie/accounts",
		EnvVar: prefixEnvVar("KEYSTORE_DIR"),
	}
	KeystorePasswordFlag = cli.StringFlag{
		Name:   "keystore-password",
		Usage:  "Password of the keystore account. Prompted for when not set",
		EnvVar: prefixEnvVar("KEYSTORE_PASSWORD"),
	}
	AccountIndexFlag = cli.IntFlag{
		Name:   "account-index",
		Usage:  "Development account to send from",
		EnvVar: prefixEnvVar("ACCOUNT_INDEX"),
	}
	AccountIDFlag = cli.StringFlag{
		Name:   "account-id",
		Usage:  "Keystore account to send from",
		EnvVar: prefixEnvVar("ACCOUNT_ID"),
	}
	ChainInfoDirFlag = cli.StringFlag{
		Name:   "front-end.chain-info",
		Usage:  "Front end directory the build dir is copied to",
		Value:  frontend.DefaultChainInfoDir,
		EnvVar: prefixEnvVar("FRONT_END_CHAIN_INFO"),
	}
	ConfigJSONFlag = cli.StringFlag{
		Name:   "front-end.config-json",
		Usage:  "Front end path the project config is written to as JSON",
		Value:  frontend.DefaultConfigJSONPath,
		EnvVar: prefixEnvVar("FRONT_END_CONFIG_JSON"),
	}
	UpdateFrontEndFlag = cli.BoolFlag{
		Name:   "update-front-end",
		Usage:  "Export the build dir to the front end after every deployment",
		EnvVar: prefixEnvVar("UPDATE_FRONT_END"),
	}
	WinnerTimeoutFlag = cli.DurationFlag{
		Name:   "winner-timeout",
		Usage:  "How long to wait for the oracle to pick the winner",
		Value:  240 * time.Second,
		EnvVar: prefixEnvVar("WINNER_TIMEOUT"),
	}
	WinnerPollIntervalFlag = cli.DurationFlag{
		Name:   "winner-poll-interval",
		Usage:  "How often to check whether the winner is picked",
		Value:  5 * time.Second,
		EnvVar: prefixEnvVar("WINNER_POLL_INTERVAL"),
	}
)

// Command flags
var (
	ExtraFlag = cli.StringFlag{
		Name:  "extra",
		Usage: "Wei paid on top of the entrance fee",
		Value: "100000",
	}
	TokenIDFlag = cli.Int64Flag{
		Name:  "token-id",
		Usage: "Token of the NFT collection",
	}
	CollectionFlag = cli.StringFlag{
		Name:  "collection",
		Usage: "NFT collection of the token. Defaults to nft_collection of the network, or the mock collection on local chains",
	}
	WatchFlag = cli.BoolFlag{
		Name:  "watch",
		Usage: "Keep exporting whenever the build dir or the config changes",
	}
	DebounceFlag = cli.DurationFlag{
		Name:  "debounce",
		Usage: "How long the build dir has to be quiet before exporting",
		Value: frontend.DefaultDebounce,
	}
)

var requiredFlags = []cli.Flag{
	ConfigFlag,
	BuildDirFlag,
}

var optionalFlags = []cli.Flag{
	NetworkFlag,
	RPCURLFlag,
	KeystoreDirFlag,
	KeystorePasswordFlag,
	AccountIndexFlag,
	AccountIDFlag,
	ChainInfoDirFlag,
	ConfigJSONFlag,
	UpdateFrontEndFlag,
	WinnerTimeoutFlag,
	WinnerPollIntervalFlag,
}

func init() {
	optionalFlags = append(optionalFlags, lotlog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, lotmetrics.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, txmgr.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.GlobalIsSet(f.GetName()) && ctx.GlobalString(f.GetName()) == "" {
			return fmt.Errorf("flag %s is required", f.GetName())
		}
	}
	return nil
}
