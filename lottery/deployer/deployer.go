// Package deployer drives the lottery contracts: it deploys them against mock
// or live oracles and walks a lottery through its rounds.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/eth"
	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/contracts"
	"github.com/dcSpark/smartcontract-lottery/lottery/frontend"
	"github.com/dcSpark/smartcontract-lottery/lottery/metrics"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

var (
	ErrNoLottery      = errors.New("no lottery deployed")
	ErrLotteryNotOpen = errors.New("lottery is not open")
	ErrNotLocal       = errors.New("only available on local networks")
	ErrWinnerTimeout  = errors.New("timed out waiting for the winner")
)

// Backend is the chain access the deployer needs besides sending txs.
type Backend interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// ManagerFactory returns a tx manager sending from another account, selected
// like network.Accounts.Get does.
type ManagerFactory func(index int, id string) (txmgr.TxManager, error)

type DriverSetup struct {
	Log         log.Logger
	Metr        metrics.Metricer
	Cfg         Config
	TxManager   txmgr.TxManager
	Backend     Backend
	Build       *artifacts.Build
	Deployments *artifacts.Deployments
	// FrontEnd is optional.
	FrontEnd *frontend.Exporter
	// Managers is optional. Without it only the main account can send.
	Managers ManagerFactory
}

// Deployer deploys and operates lotteries from one account.
type Deployer struct {
	DriverSetup
	resolver *contracts.Resolver
	closeFn  func()
}

func NewDeployer(setup DriverSetup) *Deployer {
	if setup.Metr == nil {
		setup.Metr = metrics.NoopMetrics
	}
	return &Deployer{
		DriverSetup: setup,
		resolver:    contracts.NewResolver(setup.Log, setup.Cfg.contracts(), setup.Build, setup.Deployments, setup.TxManager, setup.Backend),
	}
}

// Close releases the chain connection if the deployer owns it.
func (d *Deployer) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}

func (d *Deployer) Resolver() *contracts.Resolver {
	return d.resolver
}

func (d *Deployer) From() common.Address {
	return d.TxManager.From()
}

// Manager returns the tx manager of another account. Index 0 without an id is
// the main account.
func (d *Deployer) Manager(index int, id string) (txmgr.TxManager, error) {
	if index == 0 && id == "" {
		return d.TxManager, nil
	}
	if d.Managers == nil {
		return nil, errors.New("no account source configured")
	}
	return d.Managers(index, id)
}

func (d *Deployer) send(ctx context.Context, mgr txmgr.TxManager, candidate txmgr.TxCandidate, err error, what string) (*types.Receipt, error) {
	if err != nil {
		return nil, err
	}
	receipt, err := contracts.Send(ctx, mgr, candidate, what)
	if err != nil {
		return receipt, err
	}
	d.Log.Info("Transaction confirmed", "what", what, "from", mgr.From(), "tx", receipt.TxHash, "block", eth.ReceiptBlockID(receipt))
	return receipt, nil
}

func (d *Deployer) warnVerify() {
	if d.Cfg.NetworkConfig.Verify {
		d.Log.Warn("Source verification is not supported, verify the contract on the block explorer")
	}
}

func (d *Deployer) updateFrontEnd() error {
	if !d.Cfg.UpdateFrontEnd || d.FrontEnd == nil {
		return nil
	}
	return d.FrontEnd.Update()
}

// DeployLottery deploys a lottery wired to the price feed, VRF coordinator and
// LINK token of the active network, deploying mocks for them on local chains.
func (d *Deployer) DeployLottery(ctx context.Context) (common.Address, error) {
	nc := d.Cfg.NetworkConfig
	local := network.NeedsMocks(d.Cfg.Network)
	if !local {
		if err := nc.CheckLive(config.KeyFee, config.KeyKeyHash); err != nil {
			return common.Address{}, err
		}
	}
	d.warnVerify()

	feed, err := d.resolver.Get(ctx, config.KeyPriceFeed)
	if err != nil {
		return common.Address{}, err
	}
	vrf, err := d.resolver.Get(ctx, config.KeyVRFCoordinator)
	if err != nil {
		return common.Address{}, err
	}
	link, err := d.resolver.Get(ctx, config.KeyLinkToken)
	if err != nil {
		return common.Address{}, err
	}

	fee := nc.Fee.BigOr(DefaultFee)
	keyHash := DefaultKeyHash
	if nc.KeyHash != "" {
		keyHash = nc.KeyHashValue()
	}
	addr, err := d.resolver.Deploy(ctx, bindings.LotteryName, func(bytecode []byte) (txmgr.TxCandidate, error) {
		return bindings.DeployLottery(bytecode, feed, vrf, link, fee, keyHash)
	})
	if err != nil {
		return common.Address{}, err
	}
	d.Metr.RecordDeployment(metrics.VariantVRF)
	d.Log.Info("Deployed lottery", "address", addr, "network", d.Cfg.Network)

	if err := d.updateFrontEnd(); err != nil {
		return addr, err
	}
	return addr, nil
}

// Lottery returns the latest deployed lottery.
func (d *Deployer) Lottery(ctx context.Context) (*bindings.Lottery, error) {
	addr, err := d.resolver.Latest(ctx, bindings.LotteryName)
	if errors.Is(err, artifacts.ErrNoDeployment) {
		return nil, fmt.Errorf("%w on %s, run deploy first", ErrNoLottery, d.Cfg.Network)
	} else if err != nil {
		return nil, err
	}
	return bindings.NewLottery(addr, d.Backend), nil
}

func (d *Deployer) StartLottery(ctx context.Context) (*types.Receipt, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return nil, err
	}
	candidate, err := lottery.StartLottery()
	receipt, err := d.send(ctx, d.TxManager, candidate, err, "start lottery")
	if err != nil {
		return receipt, err
	}
	d.Log.Info("Lottery started", "lottery", lottery.Address())
	return receipt, nil
}

// EnterLottery enters the latest lottery from mgr, paying the entrance fee plus
// extra. A nil mgr enters from the main account and a nil extra adds
// Config.EntryExtra.
func (d *Deployer) EnterLottery(ctx context.Context, mgr txmgr.TxManager, extra *big.Int) (*types.Receipt, error) {
	if mgr == nil {
		mgr = d.TxManager
	}
	if extra == nil {
		extra = d.Cfg.EntryExtra
	}
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return nil, err
	}
	state, err := lottery.State(ctx)
	if err != nil {
		return nil, err
	}
	if state != bindings.LotteryOpen {
		return nil, fmt.Errorf("%w: state is %s", ErrLotteryNotOpen, state)
	}
	fee, err := lottery.EntranceFee(ctx)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Set(fee)
	if extra != nil {
		value.Add(value, extra)
	}
	candidate, err := lottery.Enter(value)
	receipt, err := d.send(ctx, mgr, candidate, err, "enter lottery")
	if err != nil {
		return receipt, err
	}
	d.Metr.RecordEntry(metrics.VariantVRF)
	d.Log.Info("You entered the lottery", "player", mgr.From(), "value", value)
	return receipt, nil
}

// EndLottery funds the lottery with LINK and ends it. It returns the id of the
// randomness request the winner is picked with.
func (d *Deployer) EndLottery(ctx context.Context) (common.Hash, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := d.resolver.FundWithLink(ctx, lottery.Address(), d.Cfg.LinkFund); err != nil {
		return common.Hash{}, err
	}
	candidate, err := lottery.EndLottery()
	receipt, err := d.send(ctx, d.TxManager, candidate, err, "end lottery")
	if err != nil {
		return common.Hash{}, err
	}
	requestID, err := lottery.ParseRequestedRandomness(receipt)
	if err != nil {
		return common.Hash{}, err
	}
	d.Metr.RecordLotteryEnded(metrics.VariantVRF)
	d.Log.Info("Lottery ended", "lottery", lottery.Address(), "request", requestID)
	return requestID, nil
}

// FulfillRandomness answers a randomness request through the mock coordinator,
// standing in for the oracle on local chains.
func (d *Deployer) FulfillRandomness(ctx context.Context, requestID common.Hash, randomness *big.Int) error {
	if !network.NeedsMocks(d.Cfg.Network) {
		return fmt.Errorf("fulfilling randomness: %w", ErrNotLocal)
	}
	if randomness == nil {
		randomness = d.Cfg.StaticRNG
	}
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return err
	}
	vrf, err := d.resolver.Get(ctx, config.KeyVRFCoordinator)
	if err != nil {
		return err
	}
	candidate, err := bindings.NewVRFCoordinatorMock(vrf, d.Backend).CallBackWithRandomness(requestID, randomness, lottery.Address())
	_, err = d.send(ctx, d.TxManager, candidate, err, "fulfill randomness")
	return err
}

// WaitForWinner polls the latest lottery until it has left the calculating
// state and returns the winner. It gives up after Config.WinnerTimeout.
// onPoll, if set, is called with the state seen on every poll.
func (d *Deployer) WaitForWinner(ctx context.Context, onPoll func(bindings.LotteryState)) (common.Address, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return common.Address{}, err
	}
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, d.Cfg.WinnerTimeout)
	defer cancel()

	// The limiter gives up early once the next poll would pass the deadline,
	// so anything but a cancelled parent counts as a timeout.
	timedOut := func(err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s: %v", ErrWinnerTimeout, d.Cfg.WinnerTimeout, err)
	}
	limiter := rate.NewLimiter(rate.Every(d.Cfg.WinnerPollInterval), 1)
	for {
		if err := limiter.Wait(waitCtx); err != nil {
			return common.Address{}, timedOut(err)
		}
		state, err := lottery.State(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return common.Address{}, timedOut(err)
			}
			d.Log.Warn("Failed to read lottery state", "err", err)
			continue
		}
		if onPoll != nil {
			onPoll(state)
		}
		if state == bindings.LotteryCalculatingWinner {
			continue
		}
		winner, err := lottery.RecentWinner(ctx)
		if err != nil {
			return common.Address{}, err
		}
		waited := time.Since(start)
		d.Metr.RecordWinner(metrics.VariantVRF, waited)
		d.Log.Info("The winner is", "winner", winner, "waited", waited)
		return winner, nil
	}
}

func (d *Deployer) LotteryState(ctx context.Context) (bindings.LotteryState, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return 0, err
	}
	return lottery.State(ctx)
}

// Players lists the entries of the current round.
func (d *Deployer) Players(ctx context.Context) ([]common.Address, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return nil, err
	}
	return players(ctx, lottery.Players)
}

// players reads an unbounded getter until it reverts past the last index.
func players(ctx context.Context, get func(context.Context, uint64) (common.Address, error)) ([]common.Address, error) {
	var out []common.Address
	for i := uint64(0); ; i++ {
		p, err := get(ctx, i)
		if bindings.IsRevert(err) {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

// Status is a snapshot of a lottery.
type Status struct {
	Address      common.Address
	State        bindings.LotteryState
	EntranceFee  *big.Int
	Balance      *big.Int
	Players      []common.Address
	RecentWinner common.Address
}

func (d *Deployer) Status(ctx context.Context) (Status, error) {
	lottery, err := d.Lottery(ctx)
	if err != nil {
		return Status{}, err
	}
	s := Status{Address: lottery.Address()}
	if s.State, err = lottery.State(ctx); err != nil {
		return Status{}, err
	}
	if s.EntranceFee, err = lottery.EntranceFee(ctx); err != nil {
		return Status{}, err
	}
	if s.Balance, err = d.Backend.BalanceAt(ctx, s.Address, nil); err != nil {
		return Status{}, fmt.Errorf("failed to read lottery balance: %w", err)
	}
	if s.Players, err = players(ctx, lottery.Players); err != nil {
		return Status{}, err
	}
	if s.RecentWinner, err = lottery.RecentWinner(ctx); err != nil {
		return Status{}, err
	}
	return s, nil
}

// Run plays one round: deploy, start, enter, end and wait for the winner. On
// local chains the deployer answers the randomness request itself.
func (d *Deployer) Run(ctx context.Context, onPoll func(bindings.LotteryState)) (common.Address, error) {
	if _, err := d.DeployLottery(ctx); err != nil {
		return common.Address{}, err
	}
	if _, err := d.StartLottery(ctx); err != nil {
		return common.Address{}, err
	}
	if _, err := d.EnterLottery(ctx, nil, nil); err != nil {
		return common.Address{}, err
	}
	requestID, err := d.EndLottery(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if network.NeedsMocks(d.Cfg.Network) {
		if err := d.FulfillRandomness(ctx, requestID, nil); err != nil {
			return common.Address{}, err
		}
	}
	return d.WaitForWinner(ctx, onPoll)
}
