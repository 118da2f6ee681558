package lottery_service

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestPrefixEnvVar(t *testing.T) {
	require.Equal(t, "LOTTERY_NETWORK", PrefixEnvVar("LOTTERY", "NETWORK"))
}

func TestCLIFlagsToEnvVars(t *testing.T) {
	flags := []cli.Flag{
		cli.StringFlag{
			Name:   "test",
			EnvVar: "LOTTERY_TEST_VAR",
		},
		cli.IntFlag{
			Name: "no env var",
		},
	}
	res := cliFlagsToEnvVars(flags)
	require.Contains(t, res, "LOTTERY_TEST_VAR")
	require.Len(t, res, 1)
}

func TestValidateEnvVars(t *testing.T) {
	provided := []string{"LOTTERY_BAR_VAR=true", "LOTTERY_NETWORK=development", "OTHER_VAR=1"}
	defined := map[string]struct{}{
		"LOTTERY_NETWORK": {},
	}
	invalids := validateEnvVars("LOTTERY", provided, defined)
	require.ElementsMatch(t, invalids, []string{"LOTTERY_BAR_VAR"})
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x8a791620dd6260079bf849dc5567adc3f2fdc318")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x8a791620dd6260079bf849dc5567adc3f2fdc318"), addr)

	_, err = ParseAddress("not-an-address")
	require.Error(t, err)
}
