package bindings

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

// NFTLottery wraps the VRF v2 lottery that takes ERC721 tokens as entries.
type NFTLottery struct {
	contract
}

// TreasuryEntry is a token held by the lottery on behalf of a player.
type TreasuryEntry struct {
	Collection common.Address
	TokenID    *big.Int
	Owner      common.Address
}

func NewNFTLottery(address common.Address, caller bind.ContractCaller) *NFTLottery {
	return &NFTLottery{newContract(NFTLotteryName, address, caller)}
}

func DeployNFTLottery(bytecode []byte, priceFeed, vrfCoordinator common.Address, gasLane common.Hash, subscriptionID uint64, callbackGasLimit uint32, interval *big.Int) (txmgr.TxCandidate, error) {
	return DeployCandidate(NFTLotteryName, bytecode, priceFeed, vrfCoordinator, [32]byte(gasLane), subscriptionID, callbackGasLimit, interval)
}

// EnterLottery hands tokenID of collection to the lottery. The lottery must be
// approved on the collection first.
func (l *NFTLottery) EnterLottery(collection common.Address, tokenID *big.Int) (txmgr.TxCandidate, error) {
	return l.candidate(nil, "enterLottery", collection, tokenID)
}

// Transfer moves a token held in the treasury to to.
func (l *NFTLottery) Transfer(to, collection common.Address, tokenID *big.Int) (txmgr.TxCandidate, error) {
	return l.candidate(nil, "transfer", to, collection, tokenID)
}

func (l *NFTLottery) PerformUpkeep() (txmgr.TxCandidate, error) {
	return l.candidate(nil, "performUpkeep", []byte{})
}

func (l *NFTLottery) CheckUpkeep(ctx context.Context) (bool, error) {
	out, err := l.call(ctx, "checkUpkeep", []byte{})
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (l *NFTLottery) Players(ctx context.Context, index uint64) (common.Address, error) {
	return l.callAddress(ctx, "s_players", new(big.Int).SetUint64(index))
}

func (l *NFTLottery) NumberOfPlayers(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getNumberOfPlayers")
}

func (l *NFTLottery) Treasury(ctx context.Context, index uint64) (TreasuryEntry, error) {
	out, err := l.call(ctx, "s_treasury", new(big.Int).SetUint64(index))
	if err != nil {
		return TreasuryEntry{}, err
	}
	return TreasuryEntry{
		Collection: *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		TokenID:    *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Owner:      *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
	}, nil
}

func (l *NFTLottery) RecentWinner(ctx context.Context) (common.Address, error) {
	return l.callAddress(ctx, "s_recentWinner")
}

func (l *NFTLottery) State(ctx context.Context) (NFTLotteryState, error) {
	s, err := l.callUint8(ctx, "s_lotteryState")
	return NFTLotteryState(s), err
}

// ParseRequestedLotteryWinner extracts the VRF v2 request id from a
// performUpkeep receipt.
func (l *NFTLottery) ParseRequestedLotteryWinner(receipt *types.Receipt) (*big.Int, error) {
	lg, err := l.findLog(receipt, "RequestedLotteryWinner")
	if err != nil {
		return nil, err
	}
	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("RequestedLotteryWinner log without request id in tx %s", receipt.TxHash)
	}
	return new(big.Int).SetBytes(lg.Topics[1].Bytes()), nil
}
