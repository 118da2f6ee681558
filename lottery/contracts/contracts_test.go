package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/testlog"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/chaintest"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

var deployer = common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")

type testHarness struct {
	chain       *chaintest.Chain
	build       *artifacts.Build
	deployments *artifacts.Deployments
	resolver    *Resolver
}

func newTestHarness(t *testing.T, networkName string, nc *config.NetworkConfig) *testHarness {
	build := artifacts.NewBuild(t.TempDir())
	require.NoError(t, chaintest.WriteArtifacts(build))
	deployments, err := artifacts.LoadDeployments(build)
	require.NoError(t, err)

	chain := chaintest.New(1337)
	chain.Fund(deployer, new(big.Int).Mul(big.NewInt(1e18), big.NewInt(100)))
	if nc == nil {
		nc = &config.NetworkConfig{Name: networkName}
	}
	cfg := Config{
		Network:       networkName,
		NetworkConfig: nc,
		ChainKey:      network.DeploymentKey(networkName, 1337),
	}
	l := testlog.Logger(t, log.LvlInfo)
	return &testHarness{
		chain:       chain,
		build:       build,
		deployments: deployments,
		resolver:    NewResolver(l, cfg, build, deployments, chain.Manager(deployer), chain),
	}
}

func TestGetDeploysMocksOnce(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	feed, err := h.resolver.Get(ctx, config.KeyPriceFeed)
	require.NoError(t, err)
	require.Equal(t, []string{bindings.LinkTokenName, bindings.MockV3AggregatorName, bindings.VRFCoordinatorMockName}, h.deployments.Contracts("dev"))

	answer, err := bindings.NewPriceFeed(feed, h.chain).LatestAnswer(ctx)
	require.NoError(t, err)
	require.Equal(t, InitialValue, answer)
	decimals, err := bindings.NewPriceFeed(feed, h.chain).Decimals(ctx)
	require.NoError(t, err)
	require.Equal(t, uint8(Decimals), decimals)

	height := h.chain.BlockNumber()
	again, err := h.resolver.Get(ctx, config.KeyPriceFeed)
	require.NoError(t, err)
	require.Equal(t, feed, again)
	_, err = h.resolver.Get(ctx, config.KeyVRFCoordinator)
	require.NoError(t, err)
	_, err = h.resolver.Get(ctx, config.KeyLinkToken)
	require.NoError(t, err)
	require.Equal(t, height, h.chain.BlockNumber(), "no further deployments")
}

func TestDeployMocksRecordsEachDeployment(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	require.NoError(t, h.resolver.DeployMocks(ctx))
	require.NoError(t, h.resolver.DeployMocks(ctx))
	require.Len(t, h.deployments.All("dev", bindings.LinkTokenName), 2)

	link, err := h.resolver.Get(ctx, config.KeyLinkToken)
	require.NoError(t, err)
	require.Equal(t, h.deployments.All("dev", bindings.LinkTokenName)[0], link)
}

func TestGetReadsLiveAddressesFromConfig(t *testing.T) {
	nc := &config.NetworkConfig{
		Name:            "rinkeby",
		EthUsdPriceFeed: "0x8A753747A1Fa494EC906cE90E9f37563A8AF630e",
	}
	h := newTestHarness(t, "rinkeby", nc)

	feed, err := h.resolver.Get(context.Background(), config.KeyPriceFeed)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x8A753747A1Fa494EC906cE90E9f37563A8AF630e"), feed)

	_, err = h.resolver.Get(context.Background(), config.KeyLinkToken)
	require.ErrorIs(t, err, config.ErrMissingField)
	require.Zero(t, h.chain.BlockNumber())
}

func TestGetUnknownKey(t *testing.T) {
	h := newTestHarness(t, network.Development, nil)
	_, err := h.resolver.Get(context.Background(), "weth_token")
	require.ErrorIs(t, err, bindings.ErrUnknownContract)
}

func TestStaleLocalDeploymentsAreDropped(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	a, err := h.build.Load(bindings.LinkTokenName)
	require.NoError(t, err)
	stale := common.HexToAddress("0xdead")
	require.NoError(t, h.deployments.Record("dev", a, artifacts.DeploymentInfo{Address: stale}))

	link, err := h.resolver.Get(ctx, config.KeyLinkToken)
	require.NoError(t, err)
	require.NotEqual(t, stale, link)
	require.Equal(t, []common.Address{link}, h.deployments.All("dev", bindings.LinkTokenName))
}

func TestFundWithLink(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	consumer := common.HexToAddress("0x1234")

	receipt, err := h.resolver.FundWithLink(ctx, consumer, nil)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	link, err := h.resolver.Get(ctx, config.KeyLinkToken)
	require.NoError(t, err)
	balance, err := bindings.NewLinkToken(link, h.chain).BalanceOf(ctx, consumer)
	require.NoError(t, err)
	require.Equal(t, DefaultLinkFund, balance)

	_, err = h.resolver.FundWithLink(ctx, consumer, new(big.Int).Mul(chaintest.LinkSupply, big.NewInt(2)))
	require.Error(t, err)
}

func TestCreateSubscriptionLocal(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	subID, err := h.resolver.CreateSubscription(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), subID)

	consumer := common.HexToAddress("0x4321")
	require.NoError(t, h.resolver.AddConsumer(ctx, subID, consumer))

	addr, err := h.resolver.Get(ctx, config.KeyVRFCoordinatorV2)
	require.NoError(t, err)
	sub, err := bindings.NewVRFCoordinatorV2Mock(addr, h.chain).GetSubscription(ctx, subID)
	require.NoError(t, err)
	require.Equal(t, SubscriptionFund, sub.Balance)
	require.Equal(t, deployer, sub.Owner)
	require.Equal(t, []common.Address{consumer}, sub.Consumers)
}

func TestCreateSubscriptionLive(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, "goerli", &config.NetworkConfig{Name: "goerli"})
	_, err := h.resolver.CreateSubscription(ctx)
	require.ErrorIs(t, err, config.ErrMissingField)

	h = newTestHarness(t, "goerli", &config.NetworkConfig{Name: "goerli", SubscriptionID: 42})
	subID, err := h.resolver.CreateSubscription(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(42), subID)
	require.NoError(t, h.resolver.AddConsumer(ctx, subID, common.HexToAddress("0x4321")))
	require.Zero(t, h.chain.BlockNumber())
}

func TestMockCollectionMintsToDeployer(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)

	collection, err := h.resolver.Get(ctx, config.KeyNFTCollection)
	require.NoError(t, err)
	owner, err := bindings.NewERC721(collection, h.chain).OwnerOf(ctx, big.NewInt(MockTokenID))
	require.NoError(t, err)
	require.Equal(t, deployer, owner)
}

func TestSendReportsReverts(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, network.Development, nil)
	mgr := h.chain.Manager(deployer)

	addr, err := h.resolver.Deploy(ctx, bindings.MockERC721Name, bindings.DeployMockERC721)
	require.NoError(t, err)
	candidate, err := bindings.NewERC721(addr, h.chain).Approve(deployer, big.NewInt(5))
	require.NoError(t, err)

	_, err = Send(ctx, mgr, candidate, "approve")
	require.ErrorContains(t, err, "approve")

	candidate.GasLimit = 100_000
	receipt, err := Send(ctx, mgr, candidate, "approve")
	require.ErrorIs(t, err, ErrTransactionFailed)
	require.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestDeployWithoutArtifact(t *testing.T) {
	h := newTestHarness(t, network.Development, nil)
	_, err := h.resolver.Deploy(context.Background(), "Missing", func(bytecode []byte) (txmgr.TxCandidate, error) {
		return txmgr.TxCandidate{TxData: bytecode}, nil
	})
	require.ErrorIs(t, err, artifacts.ErrNoArtifact)
}

func TestMockName(t *testing.T) {
	name, err := MockName(config.KeyVRFCoordinatorV2)
	require.NoError(t, err)
	require.Equal(t, bindings.VRFCoordinatorV2MockName, name)
	_, err = MockName(config.KeyFee)
	require.ErrorIs(t, err, bindings.ErrUnknownContract)
}
