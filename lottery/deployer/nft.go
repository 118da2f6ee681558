package deployer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/metrics"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

var (
	ErrNoNFTLottery       = errors.New("no NFT lottery deployed")
	ErrUpkeepNotNeeded    = errors.New("upkeep not needed")
	ErrNotApproved        = errors.New("lottery is not approved for the token")
	ErrTokenNotInTreasury = errors.New("token not in treasury")
)

// NFTDeployment is the result of DeployNFTLottery.
type NFTDeployment struct {
	Lottery        common.Address
	Collection     common.Address
	SubscriptionID uint64
}

// DeployNFTLottery deploys the VRF v2 lottery taking NFTs as entries. On local
// chains it runs against a funded subscription of the mock coordinator and a
// mock collection holding one token of the deployer.
func (d *Deployer) DeployNFTLottery(ctx context.Context) (NFTDeployment, error) {
	nc := d.Cfg.NetworkConfig
	gasLane := DefaultGasLane
	callbackGasLimit := DefaultCallbackGasLimit
	interval := nc.Interval.BigOr(DefaultInterval)
	if !network.NeedsMocks(d.Cfg.Network) {
		if err := nc.CheckLive(config.KeyGasLane, config.KeyCallbackGasLimit, config.KeyInterval); err != nil {
			return NFTDeployment{}, err
		}
	}
	if nc.GasLane != "" {
		gasLane = nc.GasLaneValue()
	}
	if nc.CallbackGasLimit != 0 {
		callbackGasLimit = nc.CallbackGasLimit
	}
	d.warnVerify()

	feed, err := d.resolver.Get(ctx, config.KeyPriceFeed)
	if err != nil {
		return NFTDeployment{}, err
	}
	vrf, err := d.resolver.Get(ctx, config.KeyVRFCoordinatorV2)
	if err != nil {
		return NFTDeployment{}, err
	}
	subID, err := d.resolver.CreateSubscription(ctx)
	if err != nil {
		return NFTDeployment{}, err
	}

	addr, err := d.resolver.Deploy(ctx, bindings.NFTLotteryName, func(bytecode []byte) (txmgr.TxCandidate, error) {
		return bindings.DeployNFTLottery(bytecode, feed, vrf, gasLane, subID, callbackGasLimit, interval)
	})
	if err != nil {
		return NFTDeployment{}, err
	}
	if err := d.resolver.AddConsumer(ctx, subID, addr); err != nil {
		return NFTDeployment{}, err
	}
	collection, err := d.resolver.Get(ctx, config.KeyNFTCollection)
	if err != nil {
		return NFTDeployment{}, err
	}
	d.Metr.RecordDeployment(metrics.VariantNFT)
	d.Log.Info("Deployed NFT lottery", "address", addr, "subscription", subID, "collection", collection, "interval", interval)

	if err := d.updateFrontEnd(); err != nil {
		return NFTDeployment{}, err
	}
	return NFTDeployment{Lottery: addr, Collection: collection, SubscriptionID: subID}, nil
}

// NFTLottery returns the latest deployed NFT lottery.
func (d *Deployer) NFTLottery(ctx context.Context) (*bindings.NFTLottery, error) {
	addr, err := d.resolver.Latest(ctx, bindings.NFTLotteryName)
	if errors.Is(err, artifacts.ErrNoDeployment) {
		return nil, fmt.Errorf("%w on %s, run deploy-nft first", ErrNoNFTLottery, d.Cfg.Network)
	} else if err != nil {
		return nil, err
	}
	return bindings.NewNFTLottery(addr, d.Backend), nil
}

// collection returns addr, or the configured collection (the mock one on
// local chains) when addr is zero.
func (d *Deployer) collection(ctx context.Context, addr common.Address) (common.Address, error) {
	if addr != (common.Address{}) {
		return addr, nil
	}
	return d.resolver.Get(ctx, config.KeyNFTCollection)
}

// EnterNFTLottery approves the lottery for a token of collection and enters
// with it. A zero collection selects the configured one and a nil mgr enters
// from the main account.
func (d *Deployer) EnterNFTLottery(ctx context.Context, mgr txmgr.TxManager, collection common.Address, tokenID *big.Int) (*types.Receipt, error) {
	if mgr == nil {
		mgr = d.TxManager
	}
	lottery, err := d.NFTLottery(ctx)
	if err != nil {
		return nil, err
	}
	collectionAddr, err := d.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	nft := bindings.NewERC721(collectionAddr, d.Backend)

	approve, err := nft.Approve(lottery.Address(), tokenID)
	if _, err := d.send(ctx, mgr, approve, err, "approve token"); err != nil {
		return nil, err
	}
	approved, err := nft.GetApproved(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if approved != lottery.Address() {
		return nil, fmt.Errorf("%w: token %s is approved for %s", ErrNotApproved, tokenID, approved)
	}

	candidate, err := lottery.EnterLottery(collectionAddr, tokenID)
	receipt, err := d.send(ctx, mgr, candidate, err, "enter NFT lottery")
	if err != nil {
		return receipt, err
	}
	d.Metr.RecordEntry(metrics.VariantNFT)
	d.Log.Info("You entered the NFT lottery", "player", mgr.From(), "collection", collectionAddr, "token", tokenID)
	return receipt, nil
}

// PerformUpkeep closes the round once the interval has passed and returns the
// VRF request id. On local chains the request is fulfilled right away, which
// hands the treasury to the winner.
func (d *Deployer) PerformUpkeep(ctx context.Context) (*big.Int, error) {
	lottery, err := d.NFTLottery(ctx)
	if err != nil {
		return nil, err
	}
	needed, err := lottery.CheckUpkeep(ctx)
	if err != nil {
		return nil, err
	}
	if !needed {
		return nil, ErrUpkeepNotNeeded
	}
	candidate, err := lottery.PerformUpkeep()
	receipt, err := d.send(ctx, d.TxManager, candidate, err, "perform upkeep")
	if err != nil {
		return nil, err
	}
	requestID, err := lottery.ParseRequestedLotteryWinner(receipt)
	if err != nil {
		return nil, err
	}
	d.Metr.RecordLotteryEnded(metrics.VariantNFT)
	d.Log.Info("Requested NFT lottery winner", "lottery", lottery.Address(), "request", requestID)

	if !network.NeedsMocks(d.Cfg.Network) {
		return requestID, nil
	}
	vrf, err := d.resolver.Get(ctx, config.KeyVRFCoordinatorV2)
	if err != nil {
		return nil, err
	}
	fulfill, err := bindings.NewVRFCoordinatorV2Mock(vrf, d.Backend).FulfillRandomWords(requestID, lottery.Address())
	if _, err := d.send(ctx, d.TxManager, fulfill, err, "fulfill random words"); err != nil {
		return nil, err
	}
	winner, err := lottery.RecentWinner(ctx)
	if err != nil {
		return nil, err
	}
	d.Metr.RecordWinner(metrics.VariantNFT, 0)
	d.Log.Info("The NFT lottery winner is", "winner", winner)
	return requestID, nil
}

// TransferTokenBack returns a token held by the lottery to the player who
// entered with it. A zero collection selects the configured one.
func (d *Deployer) TransferTokenBack(ctx context.Context, collection common.Address, tokenID *big.Int) (*types.Receipt, error) {
	lottery, err := d.NFTLottery(ctx)
	if err != nil {
		return nil, err
	}
	collection, err = d.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	treasury, err := d.treasury(ctx, lottery)
	if err != nil {
		return nil, err
	}
	var owner common.Address
	found := false
	for _, t := range treasury {
		if t.Collection == collection && t.TokenID.Cmp(tokenID) == 0 {
			owner, found = t.Owner, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s #%s", ErrTokenNotInTreasury, collection, tokenID)
	}
	candidate, err := lottery.Transfer(owner, collection, tokenID)
	receipt, err := d.send(ctx, d.TxManager, candidate, err, "transfer token back")
	if err != nil {
		return receipt, err
	}
	d.Log.Info("Token transferred back to its owner", "owner", owner, "collection", collection, "token", tokenID)
	return receipt, nil
}

func (d *Deployer) treasury(ctx context.Context, lottery *bindings.NFTLottery) ([]bindings.TreasuryEntry, error) {
	var out []bindings.TreasuryEntry
	for i := uint64(0); ; i++ {
		t, err := lottery.Treasury(ctx, i)
		if bindings.IsRevert(err) {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}

// NFTStatus is a snapshot of an NFT lottery.
type NFTStatus struct {
	Address      common.Address
	State        bindings.NFTLotteryState
	UpkeepNeeded bool
	Players      []common.Address
	Treasury     []bindings.TreasuryEntry
	RecentWinner common.Address
}

func (d *Deployer) NFTStatus(ctx context.Context) (NFTStatus, error) {
	lottery, err := d.NFTLottery(ctx)
	if err != nil {
		return NFTStatus{}, err
	}
	s := NFTStatus{Address: lottery.Address()}
	if s.State, err = lottery.State(ctx); err != nil {
		return NFTStatus{}, err
	}
	if s.UpkeepNeeded, err = lottery.CheckUpkeep(ctx); err != nil {
		return NFTStatus{}, err
	}
	if s.Players, err = players(ctx, lottery.Players); err != nil {
		return NFTStatus{}, err
	}
	if s.Treasury, err = d.treasury(ctx, lottery); err != nil {
		return NFTStatus{}, err
	}
	if s.RecentWinner, err = lottery.RecentWinner(ctx); err != nil {
		return NFTStatus{}, err
	}
	return s, nil
}
