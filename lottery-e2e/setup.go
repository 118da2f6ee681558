/*
Package lottery_e2e runs the lottery tooling against real chain backends.

The tx manager tests use go-ethereum's simulated backend and always run. The
lottery tests need a node and a project: they are skipped unless
LOTTERY_E2E_RPC is set. Against a development node (ganache-cli --mnemonic
brownie, or any node whose phrase is the project's dev_mnemonic) they deploy
mocks; against a live network they wait for the
Chainlink oracle, so the LINK and ETH for it must be in the account.

	LOTTERY_E2E_RPC=http://127.0.0.1:8545 \
	LOTTERY_E2E_CONFIG=../brownie-config.yaml \
	LOTTERY_E2E_NETWORK=development \
	go test ./lottery-e2e/...
*/
package lottery_e2e

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type TestConfig struct {
	rpcURL   string
	config   string
	network  string
	buildDir string
	timeout  time.Duration
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

// liveConfig returns the node to test against, skipping the test if none is
// configured.
func liveConfig(t *testing.T) TestConfig {
	rpcURL := os.Getenv("LOTTERY_E2E_RPC")
	if rpcURL == "" {
		t.Skip("LOTTERY_E2E_RPC not set")
	}
	timeout, err := time.ParseDuration(envOr("LOTTERY_E2E_WINNER_TIMEOUT", "4m"))
	if err != nil {
		t.Fatalf("invalid LOTTERY_E2E_WINNER_TIMEOUT: %v", err)
	}
	return TestConfig{
		rpcURL:   rpcURL,
		config:   envOr("LOTTERY_E2E_CONFIG", filepath.Join("..", "brownie-config.yaml")),
		network:  envOr("LOTTERY_E2E_NETWORK", "development"),
		buildDir: envOr("LOTTERY_E2E_BUILD_DIR", filepath.Join("..", "build")),
		timeout:  timeout,
	}
}
