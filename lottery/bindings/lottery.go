package bindings

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

// Lottery wraps the VRF v1 lottery contract.
type Lottery struct {
	contract
}

func NewLottery(address common.Address, caller bind.ContractCaller) *Lottery {
	return &Lottery{newContract(LotteryName, address, caller)}
}

func DeployLottery(bytecode []byte, priceFeed, vrfCoordinator, link common.Address, fee *big.Int, keyHash common.Hash) (txmgr.TxCandidate, error) {
	return DeployCandidate(LotteryName, bytecode, priceFeed, vrfCoordinator, link, fee, [32]byte(keyHash))
}

func (l *Lottery) StartLottery() (txmgr.TxCandidate, error) {
	return l.candidate(nil, "startLottery")
}

// Enter pays value into the lottery. The contract rejects anything below the
// entrance fee.
func (l *Lottery) Enter(value *big.Int) (txmgr.TxCandidate, error) {
	return l.candidate(value, "enter")
}

func (l *Lottery) EndLottery() (txmgr.TxCandidate, error) {
	return l.candidate(nil, "endLottery")
}

func (l *Lottery) EntranceFee(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "getEntranceFee")
}

func (l *Lottery) RecentWinner(ctx context.Context) (common.Address, error) {
	return l.callAddress(ctx, "recentWinner")
}

func (l *Lottery) Players(ctx context.Context, index uint64) (common.Address, error) {
	return l.callAddress(ctx, "players", new(big.Int).SetUint64(index))
}

func (l *Lottery) Randomness(ctx context.Context) (*big.Int, error) {
	return l.callBig(ctx, "randomness")
}

func (l *Lottery) State(ctx context.Context) (LotteryState, error) {
	s, err := l.callUint8(ctx, "lottery_state")
	return LotteryState(s), err
}

// ParseRequestedRandomness extracts the VRF request id from an endLottery receipt.
func (l *Lottery) ParseRequestedRandomness(receipt *types.Receipt) (common.Hash, error) {
	lg, err := l.findLog(receipt, "requestedRandomness")
	if err != nil {
		return common.Hash{}, err
	}
	values, err := l.abi.Unpack("requestedRandomness", lg.Data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to unpack requestedRandomness: %w", err)
	}
	return common.Hash(values[0].([32]byte)), nil
}
