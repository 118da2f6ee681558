package deployer

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/testlog"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/chaintest"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/contracts"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

var (
	account  = common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	account1 = common.HexToAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	account2 = common.HexToAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

var hundredEther = new(big.Int).Mul(big.NewInt(1e18), big.NewInt(100))

type testHarness struct {
	chain       *chaintest.Chain
	deployments *artifacts.Deployments
	deployer    *Deployer
}

func newTestHarness(t *testing.T, networkName string, nc *config.NetworkConfig) *testHarness {
	build := artifacts.NewBuild(t.TempDir())
	require.NoError(t, chaintest.WriteArtifacts(build))
	deployments, err := artifacts.LoadDeployments(build)
	require.NoError(t, err)

	chain := chaintest.New(1337)
	devAccounts := []common.Address{account, account1, account2}
	for _, a := range devAccounts {
		chain.Fund(a, hundredEther)
	}
	if nc == nil {
		nc = &config.NetworkConfig{Name: networkName}
	}
	cfg := DefaultConfig(networkName, nc, 1337)
	cfg.WinnerPollInterval = time.Millisecond
	cfg.WinnerTimeout = time.Second
	require.NoError(t, cfg.Check())

	d := NewDeployer(DriverSetup{
		Log:         testlog.Logger(t, log.LvlInfo),
		Cfg:         cfg,
		TxManager:   chain.Manager(account),
		Backend:     chain,
		Build:       build,
		Deployments: deployments,
		Managers: func(index int, id string) (txmgr.TxManager, error) {
			if id != "" || index >= len(devAccounts) {
				return nil, fmt.Errorf("no account %d%s", index, id)
			}
			return chain.Manager(devAccounts[index]), nil
		},
	})
	return &testHarness{chain: chain, deployments: deployments, deployer: d}
}

func (h *testHarness) manager(t *testing.T, index int) txmgr.TxManager {
	mgr, err := h.deployer.Manager(index, "")
	require.NoError(t, err)
	return mgr
}

func (h *testHarness) balance(t *testing.T, addr common.Address) *big.Int {
	b, err := h.chain.BalanceAt(context.Background(), addr, nil)
	require.NoError(t, err)
	return b
}

func TestGetEntranceFee(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	addr, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)

	// $50 at the mock price of $2000 is 0.025 ether.
	fee, err := bindings.NewLottery(addr, h.chain).EntranceFee(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(25000000000000000), fee)
}

func TestCantEnterUnlessStarted(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	_, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)

	_, err = h.deployer.EnterLottery(ctx, nil, nil)
	require.ErrorIs(t, err, ErrLotteryNotOpen)

	// The contract refuses too when the check is bypassed.
	lottery, err := h.deployer.Lottery(ctx)
	require.NoError(t, err)
	candidate, err := lottery.Enter(big.NewInt(1e18))
	require.NoError(t, err)
	_, err = h.chain.Manager(account).Send(ctx, candidate)
	require.ErrorContains(t, err, "Lottery is not open")
}

func TestCanStartAndEnterLottery(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	addr, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)

	_, err = h.deployer.StartLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.EnterLottery(ctx, nil, nil)
	require.NoError(t, err)

	players, err := h.deployer.Players(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{account}, players)

	fee := big.NewInt(25000000000000000)
	require.Equal(t, new(big.Int).Add(fee, DefaultEntryExtra), h.balance(t, addr))
}

func TestCantEndUnlessStarted(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	_, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)

	_, err = h.deployer.EndLottery(ctx)
	require.ErrorContains(t, err, "Lottery is not open")
	state, err := h.deployer.LotteryState(ctx)
	require.NoError(t, err)
	require.Equal(t, bindings.LotteryClosed, state)
}

func TestCanPickWinnerCorrectly(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	addr, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.StartLottery(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = h.deployer.EnterLottery(ctx, h.manager(t, i), nil)
		require.NoError(t, err)
	}

	requestID, err := h.deployer.EndLottery(ctx)
	require.NoError(t, err)
	state, err := h.deployer.LotteryState(ctx)
	require.NoError(t, err)
	require.Equal(t, bindings.LotteryCalculatingWinner, state)

	startingBalance := h.balance(t, account)
	lotteryBalance := h.balance(t, addr)
	require.NoError(t, h.deployer.FulfillRandomness(ctx, requestID, StaticRNG))

	// 777 % 3 == 0
	winner, err := h.deployer.WaitForWinner(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, account, winner)
	require.Zero(t, h.balance(t, addr).Sign())
	require.Equal(t, new(big.Int).Add(startingBalance, lotteryBalance), h.balance(t, account))
}

func TestEndLotteryFundsLink(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	addr, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.StartLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.EnterLottery(ctx, nil, nil)
	require.NoError(t, err)
	_, err = h.deployer.EndLottery(ctx)
	require.NoError(t, err)

	link, err := h.deployer.Resolver().Get(ctx, config.KeyLinkToken)
	require.NoError(t, err)
	left, err := bindings.NewLinkToken(link, h.chain).BalanceOf(ctx, addr)
	require.NoError(t, err)
	// The request fee went to the coordinator.
	require.Equal(t, new(big.Int).Sub(contracts.DefaultLinkFund, DefaultFee), left)
}

func TestWaitForWinnerTimesOut(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	h.deployer.Cfg.WinnerTimeout = 20 * time.Millisecond
	_, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.StartLottery(ctx)
	require.NoError(t, err)
	_, err = h.deployer.EnterLottery(ctx, nil, nil)
	require.NoError(t, err)
	_, err = h.deployer.EndLottery(ctx)
	require.NoError(t, err)

	polls := 0
	_, err = h.deployer.WaitForWinner(ctx, func(s bindings.LotteryState) {
		require.Equal(t, bindings.LotteryCalculatingWinner, s)
		polls++
	})
	require.ErrorIs(t, err, ErrWinnerTimeout)
	require.Positive(t, polls)
}

func TestRunPlaysOneRound(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	winner, err := h.deployer.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, account, winner)

	status, err := h.deployer.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, bindings.LotteryClosed, status.State)
	require.Empty(t, status.Players)
	require.Zero(t, status.Balance.Sign())
	require.Equal(t, account, status.RecentWinner)
	require.Equal(t, big.NewInt(25000000000000000), status.EntranceFee)
}

func TestNoLotteryDeployed(t *testing.T) {
	h := newTestHarness(t, network.Development, nil)
	_, err := h.deployer.StartLottery(context.Background())
	require.ErrorIs(t, err, ErrNoLottery)
	_, err = h.deployer.PerformUpkeep(context.Background())
	require.ErrorIs(t, err, ErrNoNFTLottery)
}

func TestFulfillRandomnessOnlyLocal(t *testing.T) {
	h := newTestHarness(t, "sepolia", nil)
	err := h.deployer.FulfillRandomness(context.Background(), common.Hash{}, nil)
	require.ErrorIs(t, err, ErrNotLocal)
}

func TestDeployLotteryLiveRequiresFeeAndKeyHash(t *testing.T) {
	h := newTestHarness(t, "sepolia", &config.NetworkConfig{Name: "sepolia"})
	_, err := h.deployer.DeployLottery(context.Background())
	require.ErrorIs(t, err, config.ErrMissingField)
	require.ErrorContains(t, err, "networks.sepolia.fee")
	require.ErrorContains(t, err, "networks.sepolia.key_hash")
}

func TestDeployLotteryWithLiveAddresses(t *testing.T) {
	ctx := context.Background()
	nc := &config.NetworkConfig{
		Name:    "sepolia",
		Fee:     config.NewBigInt(250000000000000000),
		KeyHash: "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
	}
	h := newTestHarness(t, "sepolia", nc)

	// Stand-ins for the live oracles.
	mgr := h.chain.Manager(account)
	deploy := func(candidate txmgr.TxCandidate, err error) string {
		require.NoError(t, err)
		receipt, err := contracts.Send(ctx, mgr, candidate, "deploy")
		require.NoError(t, err)
		return receipt.ContractAddress.Hex()
	}
	nc.EthUsdPriceFeed = deploy(bindings.DeployMockV3Aggregator(chaintest.Bytecode(bindings.MockV3AggregatorName), contracts.Decimals, contracts.InitialValue))
	nc.LinkToken = deploy(bindings.DeployLinkToken(chaintest.Bytecode(bindings.LinkTokenName)))
	nc.VRFCoordinator = deploy(bindings.DeployVRFCoordinatorMock(chaintest.Bytecode(bindings.VRFCoordinatorMockName), common.HexToAddress(nc.LinkToken)))

	addr, err := h.deployer.DeployLottery(ctx)
	require.NoError(t, err)
	got, err := h.deployments.Latest("1337", bindings.LotteryName)
	require.NoError(t, err)
	require.Equal(t, addr, got)
	require.Equal(t, []string{bindings.LotteryName}, h.deployments.Contracts("1337"))

	fee, err := bindings.NewLottery(addr, h.chain).EntranceFee(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(25000000000000000), fee)
}

func TestPlayersStopAtGanacheRevert(t *testing.T) {
	entries := []common.Address{account, account1}
	get := func(_ context.Context, i uint64) (common.Address, error) {
		if i < uint64(len(entries)) {
			return entries[i], nil
		}
		return common.Address{}, fmt.Errorf("players(%d): VM Exception while processing transaction: revert", i)
	}
	got, err := players(context.Background(), get)
	require.NoError(t, err)
	require.Equal(t, entries, got)

	failing := func(context.Context, uint64) (common.Address, error) {
		return common.Address{}, fmt.Errorf("dial tcp 127.0.0.1:8545: connection refused")
	}
	_, err = players(context.Background(), failing)
	require.Error(t, err)
}
