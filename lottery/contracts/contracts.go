package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/artifacts"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
	"github.com/dcSpark/smartcontract-lottery/lottery/config"
	"github.com/dcSpark/smartcontract-lottery/lottery/network"
)

// Mock parameters.
const (
	Decimals = 8
	// MockTokenID is minted to the deployer when the mock NFT collection is deployed.
	MockTokenID = 0
)

var (
	// InitialValue is the mock ETH/USD answer, $2000 with 8 decimals.
	InitialValue = big.NewInt(200000000000)
	// DefaultLinkFund is the LINK sent to a consumer by FundWithLink.
	DefaultLinkFund = big.NewInt(250000000000000000)
	// V2BaseFee is the LINK premium per VRF v2 request of the mock coordinator.
	V2BaseFee = big.NewInt(250000000000000000)
	// V2GasPriceLink is the LINK per gas charged by the mock coordinator.
	V2GasPriceLink = big.NewInt(1000000000)
	// SubscriptionFund is the LINK credited to a new local VRF v2 subscription.
	SubscriptionFund = big.NewInt(1000000000000000000)
)

var ErrTransactionFailed = errors.New("transaction failed")

// contractToMock maps a config key to the mock replacing it on local chains.
var contractToMock = map[string]string{
	config.KeyPriceFeed:        bindings.MockV3AggregatorName,
	config.KeyVRFCoordinator:   bindings.VRFCoordinatorMockName,
	config.KeyLinkToken:        bindings.LinkTokenName,
	config.KeyVRFCoordinatorV2: bindings.VRFCoordinatorV2MockName,
	config.KeyNFTCollection:    bindings.MockERC721Name,
}

// MockName returns the mock contract standing in for key on local chains.
func MockName(key string) (string, error) {
	name, ok := contractToMock[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", bindings.ErrUnknownContract, key)
	}
	return name, nil
}

// Send publishes candidate and turns a reverted receipt into an error.
func Send(ctx context.Context, mgr txmgr.TxManager, candidate txmgr.TxCandidate, what string) (*types.Receipt, error) {
	receipt, err := mgr.Send(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s reverted in tx %s", ErrTransactionFailed, what, receipt.TxHash)
	}
	return receipt, nil
}

type Config struct {
	// Network is the active network name.
	Network       string
	NetworkConfig *config.NetworkConfig
	// ChainKey is the deployment map key of the active chain.
	ChainKey string
}

// Resolver finds the contracts a lottery is wired to. On live and forked
// networks they come from the config, on local chains they are mocks which are
// deployed on first use.
type Resolver struct {
	l           log.Logger
	cfg         Config
	build       *artifacts.Build
	deployments *artifacts.Deployments
	txMgr       txmgr.TxManager
	caller      bind.ContractCaller

	mu      sync.Mutex
	checked bool
}

func NewResolver(l log.Logger, cfg Config, build *artifacts.Build, deployments *artifacts.Deployments, txMgr txmgr.TxManager, caller bind.ContractCaller) *Resolver {
	return &Resolver{
		l:           l,
		cfg:         cfg,
		build:       build,
		deployments: deployments,
		txMgr:       txMgr,
		caller:      caller,
	}
}

// Get returns the address of the contract behind a config key.
func (r *Resolver) Get(ctx context.Context, key string) (common.Address, error) {
	mockName, err := MockName(key)
	if err != nil {
		return common.Address{}, err
	}
	if !network.NeedsMocks(r.cfg.Network) {
		return r.cfg.NetworkConfig.Address(key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dropStaleLocked(ctx); err != nil {
		return common.Address{}, err
	}
	addr, err := r.deployments.Latest(r.cfg.ChainKey, mockName)
	if errors.Is(err, artifacts.ErrNoDeployment) {
		if err := r.deployMockLocked(ctx, mockName); err != nil {
			return common.Address{}, err
		}
		return r.deployments.Latest(r.cfg.ChainKey, mockName)
	}
	return addr, err
}

// Latest returns the newest deployment of a contract on the active chain.
func (r *Resolver) Latest(ctx context.Context, name string) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dropStaleLocked(ctx); err != nil {
		return common.Address{}, err
	}
	return r.deployments.Latest(r.cfg.ChainKey, name)
}

// dropStaleLocked forgets the recorded deployments of a local chain that was
// restarted since they were made. It only checks once.
func (r *Resolver) dropStaleLocked(ctx context.Context) error {
	if r.checked || !network.IsLocal(r.cfg.Network) {
		return nil
	}
	for _, name := range r.deployments.Contracts(r.cfg.ChainKey) {
		addr, err := r.deployments.Latest(r.cfg.ChainKey, name)
		if err != nil {
			continue
		}
		code, err := r.caller.CodeAt(ctx, addr, nil)
		if err != nil {
			return fmt.Errorf("failed to check deployment of %s: %w", name, err)
		}
		if len(code) == 0 {
			r.l.Warn("Local chain was reset, dropping recorded deployments", "chain", r.cfg.ChainKey, "contract", name, "address", addr)
			if err := r.deployments.Forget(r.cfg.ChainKey); err != nil {
				return fmt.Errorf("failed to drop stale deployments: %w", err)
			}
			break
		}
	}
	r.checked = true
	return nil
}

// DeployMocks deploys the VRF v1 mock set: price feed, LINK token and the
// coordinator using that token.
func (r *Resolver) DeployMocks(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deployMocksLocked(ctx)
}

func (r *Resolver) deployMockLocked(ctx context.Context, name string) error {
	switch name {
	case bindings.MockV3AggregatorName, bindings.LinkTokenName, bindings.VRFCoordinatorMockName:
		return r.deployMocksLocked(ctx)
	case bindings.VRFCoordinatorV2MockName:
		_, err := r.Deploy(ctx, name, func(bytecode []byte) (txmgr.TxCandidate, error) {
			return bindings.DeployVRFCoordinatorV2Mock(bytecode, V2BaseFee, V2GasPriceLink)
		})
		return err
	case bindings.MockERC721Name:
		addr, err := r.Deploy(ctx, name, bindings.DeployMockERC721)
		if err != nil {
			return err
		}
		mint, err := bindings.NewERC721(addr, r.caller).Mint(r.txMgr.From(), big.NewInt(MockTokenID))
		if err != nil {
			return err
		}
		_, err = Send(ctx, r.txMgr, mint, "mint mock token")
		return err
	default:
		return fmt.Errorf("%w: no mock named %s", bindings.ErrUnknownContract, name)
	}
}

func (r *Resolver) deployMocksLocked(ctx context.Context) error {
	r.l.Info("Deploying mocks", "network", r.cfg.Network)

	feedArtifact, feedCandidate, err := r.candidate(bindings.MockV3AggregatorName, func(bytecode []byte) (txmgr.TxCandidate, error) {
		return bindings.DeployMockV3Aggregator(bytecode, Decimals, InitialValue)
	})
	if err != nil {
		return err
	}
	linkArtifact, linkCandidate, err := r.candidate(bindings.LinkTokenName, bindings.DeployLinkToken)
	if err != nil {
		return err
	}

	// The feed and the token are independent, so they go out together.
	queue := txmgr.NewQueue[*artifacts.Artifact](ctx, r.txMgr, 2)
	receipts := make(chan txmgr.TxReceipt[*artifacts.Artifact], 2)
	queue.Send(feedArtifact, feedCandidate, receipts)
	queue.Send(linkArtifact, linkCandidate, receipts)
	queue.Wait()

	var link common.Address
	for i := 0; i < 2; i++ {
		res := <-receipts
		if res.Err != nil {
			return fmt.Errorf("deploy %s: %w", res.ID.ContractName, res.Err)
		}
		addr, err := r.record(res.ID, res.Receipt)
		if err != nil {
			return err
		}
		if res.ID == linkArtifact {
			link = addr
		}
	}

	if _, err := r.Deploy(ctx, bindings.VRFCoordinatorMockName, func(bytecode []byte) (txmgr.TxCandidate, error) {
		return bindings.DeployVRFCoordinatorMock(bytecode, link)
	}); err != nil {
		return err
	}
	r.l.Info("Deployed mocks")
	return nil
}

func (r *Resolver) candidate(name string, pack func(bytecode []byte) (txmgr.TxCandidate, error)) (*artifacts.Artifact, txmgr.TxCandidate, error) {
	a, err := r.build.Load(name)
	if err != nil {
		return nil, txmgr.TxCandidate{}, err
	}
	bytecode, err := a.Bytes()
	if err != nil {
		return nil, txmgr.TxCandidate{}, err
	}
	candidate, err := pack(bytecode)
	if err != nil {
		return nil, txmgr.TxCandidate{}, err
	}
	return a, candidate, nil
}

// Deploy creates the named contract from its build artifact and records the
// deployment.
func (r *Resolver) Deploy(ctx context.Context, name string, pack func(bytecode []byte) (txmgr.TxCandidate, error)) (common.Address, error) {
	a, candidate, err := r.candidate(name, pack)
	if err != nil {
		return common.Address{}, err
	}
	receipt, err := Send(ctx, r.txMgr, candidate, "deploy "+name)
	if err != nil {
		return common.Address{}, err
	}
	return r.record(a, receipt)
}

func (r *Resolver) record(a *artifacts.Artifact, receipt *types.Receipt) (common.Address, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Address{}, fmt.Errorf("%w: deploy %s reverted in tx %s", ErrTransactionFailed, a.ContractName, receipt.TxHash)
	}
	info := artifacts.DeploymentInfo{
		Address: receipt.ContractAddress,
		TxHash:  receipt.TxHash,
	}
	if receipt.BlockNumber != nil {
		info.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if err := r.deployments.Record(r.cfg.ChainKey, a, info); err != nil {
		return common.Address{}, fmt.Errorf("failed to record deployment of %s: %w", a.ContractName, err)
	}
	r.l.Info("Deployed contract", "name", a.ContractName, "address", info.Address, "tx", receipt.TxHash)
	return info.Address, nil
}

// FundWithLink sends LINK to a consumer contract so it can pay for randomness.
// A nil amount sends DefaultLinkFund.
func (r *Resolver) FundWithLink(ctx context.Context, to common.Address, amount *big.Int) (*types.Receipt, error) {
	if amount == nil {
		amount = DefaultLinkFund
	}
	link, err := r.Get(ctx, config.KeyLinkToken)
	if err != nil {
		return nil, err
	}
	candidate, err := bindings.NewLinkToken(link, r.caller).Transfer(to, amount)
	if err != nil {
		return nil, err
	}
	receipt, err := Send(ctx, r.txMgr, candidate, "fund with LINK")
	if err != nil {
		return nil, err
	}
	r.l.Info("Contract funded with LINK", "contract", to, "amount", amount)
	return receipt, nil
}

// CreateSubscription returns the VRF v2 subscription to deploy against. On
// local chains a funded subscription is created on the mock coordinator,
// elsewhere the configured one is used.
func (r *Resolver) CreateSubscription(ctx context.Context) (uint64, error) {
	if !network.NeedsMocks(r.cfg.Network) {
		if err := r.cfg.NetworkConfig.CheckLive(config.KeySubscriptionID); err != nil {
			return 0, err
		}
		return r.cfg.NetworkConfig.SubscriptionID, nil
	}
	addr, err := r.Get(ctx, config.KeyVRFCoordinatorV2)
	if err != nil {
		return 0, err
	}
	vrf := bindings.NewVRFCoordinatorV2Mock(addr, r.caller)
	candidate, err := vrf.CreateSubscription()
	if err != nil {
		return 0, err
	}
	receipt, err := Send(ctx, r.txMgr, candidate, "create subscription")
	if err != nil {
		return 0, err
	}
	subID, err := vrf.ParseSubscriptionCreated(receipt)
	if err != nil {
		return 0, err
	}
	fund, err := vrf.FundSubscription(subID, SubscriptionFund)
	if err != nil {
		return 0, err
	}
	if _, err := Send(ctx, r.txMgr, fund, "fund subscription"); err != nil {
		return 0, err
	}
	r.l.Info("Created VRF subscription", "subscription", subID, "fund", SubscriptionFund)
	return subID, nil
}

// AddConsumer registers a consumer on a local VRF v2 subscription. Live
// subscriptions are managed by their owner, so this is a no-op there.
func (r *Resolver) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) error {
	if !network.NeedsMocks(r.cfg.Network) {
		r.l.Info("Add the consumer to the subscription on the VRF UI", "subscription", subID, "consumer", consumer)
		return nil
	}
	addr, err := r.Get(ctx, config.KeyVRFCoordinatorV2)
	if err != nil {
		return err
	}
	candidate, err := bindings.NewVRFCoordinatorV2Mock(addr, r.caller).AddConsumer(subID, consumer)
	if err != nil {
		return err
	}
	_, err = Send(ctx, r.txMgr, candidate, "add consumer")
	return err
}
