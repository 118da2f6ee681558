package deployer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lotlog "github.com/dcSpark/smartcontract-lottery/lottery-service/log"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

func validCLIConfig() CLIConfig {
	return CLIConfig{
		ConfigPath:         config.DefaultPath,
		BuildDir:           "build",
		WinnerTimeout:      DefaultWinnerTimeout,
		WinnerPollInterval: DefaultWinnerPollInterval,
		LogConfig:          lotlog.DefaultCLIConfig(),
	}
}

func TestCLIConfigCheck(t *testing.T) {
	require.NoError(t, validCLIConfig().Check())

	tests := []struct {
		name   string
		modify func(*CLIConfig)
		errMsg string
	}{
		{"NoConfig", func(c *CLIConfig) { c.ConfigPath = "" }, "config path must be set"},
		{"NoBuildDir", func(c *CLIConfig) { c.BuildDir = "" }, "build dir must be set"},
		{"NegativeIndex", func(c *CLIConfig) { c.AccountIndex = -1 }, "account index must not be negative"},
		{"NoTimeout", func(c *CLIConfig) { c.WinnerTimeout = 0 }, "winner timeout must be positive"},
		{"NoPollInterval", func(c *CLIConfig) { c.WinnerPollInterval = 0 }, "winner poll interval must be positive"},
		{"KeyAndMnemonic", func(c *CLIConfig) {
			c.TxMgrConfig.PrivateKey = "0x01"
			c.TxMgrConfig.Mnemonic = network.DefaultDevMnemonic
		}, "cannot specify both a private key and a mnemonic"},
		{"BadLogFormat", func(c *CLIConfig) { c.LogConfig.Format = "xml" }, "unrecognized log format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validCLIConfig()
			test.modify(&cfg)
			require.ErrorContains(t, cfg.Check(), test.errMsg)
		})
	}
}

func TestConfigCheck(t *testing.T) {
	cfg := DefaultConfig(network.Development, &config.NetworkConfig{Name: network.Development}, 1337)
	require.NoError(t, cfg.Check())
	require.Equal(t, "dev", cfg.ChainKey)

	cfg.StaticRNG = nil
	require.ErrorContains(t, cfg.Check(), "static randomness")

	cfg = DefaultConfig("sepolia", &config.NetworkConfig{Name: "sepolia"}, 11155111)
	require.Equal(t, "11155111", cfg.ChainKey)
	cfg.WinnerPollInterval = -time.Second
	require.Error(t, cfg.Check())
}

func writeProject(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), config.DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadProjectAndRPCURL(t *testing.T) {
	path := writeProject(t, `
networks:
  default: development
  sepolia:
    host: https://rpc.sepolia.org
  goerli:
    fee: 100000000000000000
`)
	cfg := validCLIConfig()
	cfg.ConfigPath = path

	project, err := LoadProject(cfg)
	require.NoError(t, err)
	require.Equal(t, network.Development, project.Network)
	url, err := project.RPCURL("")
	require.NoError(t, err)
	require.Equal(t, DefaultLocalRPC, url)

	cfg.Network = "sepolia"
	project, err = LoadProject(cfg)
	require.NoError(t, err)
	url, err = project.RPCURL("")
	require.NoError(t, err)
	require.Equal(t, "https://rpc.sepolia.org", url)
	url, err = project.RPCURL("ws://localhost:8546")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8546", url)

	cfg.Network = "goerli"
	project, err = LoadProject(cfg)
	require.NoError(t, err)
	_, err = project.RPCURL("")
	require.ErrorIs(t, err, config.ErrMissingField)
}
