package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/deployer"
	"github.com/dcSpark/smartcontract-lottery/lottery/flags"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

var commands = []cli.Command{
	{
		Name:   "deploy",
		Usage:  "Deploy a lottery, with mocks on local chains",
		Action: withDeployer(deployLottery),
	},
	{
		Name:   "start",
		Usage:  "Open the latest lottery for entries",
		Action: withDeployer(startLottery),
	},
	{
		Name:   "enter",
		Usage:  "Enter the latest lottery, paying the entrance fee",
		Flags:  []cli.Flag{flags.ExtraFlag},
		Action: withDeployer(enterLottery),
	},
	{
		Name:   "end",
		Usage:  "End the latest lottery and wait for the winner",
		Action: withDeployer(endLottery),
	},
	{
		Name:   "state",
		Usage:  "Show the latest lottery",
		Action: withDeployer(showState),
	},
	{
		Name:   "run",
		Usage:  "Deploy, start, enter and end a lottery",
		Action: withDeployer(runLottery),
	},
	{
		Name:   "deploy-nft",
		Usage:  "Deploy an NFT lottery running on a VRF v2 subscription",
		Action: withDeployer(deployNFTLottery),
	},
	{
		Name:   "enter-nft",
		Usage:  "Enter the latest NFT lottery with a token of the collection",
		Flags:  []cli.Flag{flags.CollectionFlag, flags.TokenIDFlag},
		Action: withDeployer(enterNFTLottery),
	},
	{
		Name:   "upkeep",
		Usage:  "Close the NFT lottery round once its interval passed",
		Action: withDeployer(performUpkeep),
	},
	{
		Name:   "transfer-token",
		Usage:  "Return a token held by the NFT lottery to the player who entered it",
		Flags:  []cli.Flag{flags.CollectionFlag, flags.TokenIDFlag},
		Action: withDeployer(transferTokenBack),
	},
	{
		Name:   "nft-state",
		Usage:  "Show the latest NFT lottery",
		Action: withDeployer(showNFTState),
	},
	{
		Name:   "update-front-end",
		Usage:  "Copy the build dir and the config to the front end",
		Flags:  []cli.Flag{flags.WatchFlag, flags.DebounceFlag},
		Action: updateFrontEnd,
	},
	{
		Name:   "networks",
		Usage:  "List the configured networks",
		Action: listNetworks,
	},
}

func deployLottery(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	addr, err := d.DeployLottery(ctx)
	if err != nil {
		return err
	}
	fmt.Println(addr.Hex())
	return nil
}

func startLottery(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	_, err := d.StartLottery(ctx)
	return err
}

func enterLottery(ctx context.Context, cliCtx *cli.Context, d *deployer.Deployer) error {
	extra, ok := new(big.Int).SetString(cliCtx.String(flags.ExtraFlag.Name), 0)
	if !ok || extra.Sign() < 0 {
		return fmt.Errorf("invalid extra amount %q", cliCtx.String(flags.ExtraFlag.Name))
	}
	_, err := d.EnterLottery(ctx, nil, extra)
	return err
}

func endLottery(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	requestID, err := d.EndLottery(ctx)
	if err != nil {
		return err
	}
	if network.NeedsMocks(d.Cfg.Network) {
		if err := d.FulfillRandomness(ctx, requestID, nil); err != nil {
			return err
		}
	}
	return waitForWinner(ctx, d, d.WaitForWinner)
}

func runLottery(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	return waitForWinner(ctx, d, d.Run)
}

// waitForWinner shows a spinner while the oracle picks the winner.
func waitForWinner(ctx context.Context, d *deployer.Deployer, wait func(context.Context, func(bindings.LotteryState)) (common.Address, error)) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("waiting for the winner"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	winner, err := wait(ctx, func(s bindings.LotteryState) {
		bar.Describe("lottery is " + s.String())
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	fmt.Printf("%s is the new winner!\n", winner.Hex())
	return nil
}

func showState(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	s, err := d.Status(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Address", s.Address.Hex()})
	table.Append([]string{"State", s.State.String()})
	table.Append([]string{"Entrance fee (wei)", s.EntranceFee.String()})
	table.Append([]string{"Balance (wei)", s.Balance.String()})
	table.Append([]string{"Players", strconv.Itoa(len(s.Players))})
	for i, p := range s.Players {
		table.Append([]string{fmt.Sprintf("Player %d", i), p.Hex()})
	}
	table.Append([]string{"Recent winner", s.RecentWinner.Hex()})
	table.Render()
	return nil
}

func deployNFTLottery(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	dep, err := d.DeployNFTLottery(ctx)
	if err != nil {
		return err
	}
	fmt.Println(dep.Lottery.Hex())
	return nil
}

// collectionFlag reads --collection. Unset means the configured collection.
func collectionFlag(cliCtx *cli.Context) (common.Address, error) {
	s := cliCtx.String(flags.CollectionFlag.Name)
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid collection address %q", s)
	}
	return common.HexToAddress(s), nil
}

func enterNFTLottery(ctx context.Context, cliCtx *cli.Context, d *deployer.Deployer) error {
	collection, err := collectionFlag(cliCtx)
	if err != nil {
		return err
	}
	_, err = d.EnterNFTLottery(ctx, nil, collection, big.NewInt(cliCtx.Int64(flags.TokenIDFlag.Name)))
	return err
}

func performUpkeep(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	_, err := d.PerformUpkeep(ctx)
	return err
}

func transferTokenBack(ctx context.Context, cliCtx *cli.Context, d *deployer.Deployer) error {
	collection, err := collectionFlag(cliCtx)
	if err != nil {
		return err
	}
	_, err = d.TransferTokenBack(ctx, collection, big.NewInt(cliCtx.Int64(flags.TokenIDFlag.Name)))
	return err
}

func showNFTState(ctx context.Context, _ *cli.Context, d *deployer.Deployer) error {
	s, err := d.NFTStatus(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Address", s.Address.Hex()})
	table.Append([]string{"State", s.State.String()})
	table.Append([]string{"Upkeep needed", strconv.FormatBool(s.UpkeepNeeded)})
	table.Append([]string{"Recent winner", s.RecentWinner.Hex()})
	table.Render()

	if len(s.Treasury) == 0 {
		return nil
	}
	treasury := tablewriter.NewWriter(os.Stdout)
	treasury.SetHeader([]string{"Collection", "Token", "Owner"})
	for _, t := range s.Treasury {
		treasury.Append([]string{t.Collection.Hex(), t.TokenID.String(), t.Owner.Hex()})
	}
	treasury.Render()
	return nil
}

func updateFrontEnd(cliCtx *cli.Context) error {
	ctx, cancel, cfg, l, err := setup(cliCtx)
	if err != nil {
		return err
	}
	defer cancel()
	project, err := deployer.LoadProject(cfg)
	if err != nil {
		return err
	}
	cfg.FrontEndDebounce = cliCtx.Duration(flags.DebounceFlag.Name)
	exporter := project.FrontEnd(l, cfg)
	if !cliCtx.Bool(flags.WatchFlag.Name) {
		return exporter.Update()
	}
	return exporter.Watch(ctx)
}

func listNetworks(cliCtx *cli.Context) error {
	_, cancel, cfg, _, err := setup(cliCtx)
	if err != nil {
		return err
	}
	defer cancel()
	project, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Network", "Kind", "Host", "Chain ID", "Default"})
	rows := append([]string{}, network.LocalBlockchainEnvironments...)
	for _, name := range project.NetworkNames() {
		if !network.IsLocal(name) {
			rows = append(rows, name)
		}
	}
	for _, name := range rows {
		nc, err := project.Network(name)
		if err != nil {
			return err
		}
		kind := "live"
		switch {
		case network.IsLocal(name):
			kind = "local"
		case network.IsForked(name):
			kind = "fork"
		}
		chainID := ""
		if nc.ChainID != 0 {
			chainID = strconv.FormatUint(nc.ChainID, 10)
		}
		def := ""
		if name == project.Networks.Default {
			def = "*"
		}
		table.Append([]string{name, kind, nc.Host, chainID, def})
	}
	table.Render()
	return nil
}
