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

// VRFCoordinatorMock is the VRF v1 coordinator used on local chains. Whoever
// holds it can answer randomness requests with a chosen value.
type VRFCoordinatorMock struct {
	contract
}

func NewVRFCoordinatorMock(address common.Address, caller bind.ContractCaller) *VRFCoordinatorMock {
	return &VRFCoordinatorMock{newContract(VRFCoordinatorMockName, address, caller)}
}

func DeployVRFCoordinatorMock(bytecode []byte, link common.Address) (txmgr.TxCandidate, error) {
	return DeployCandidate(VRFCoordinatorMockName, bytecode, link)
}

func (v *VRFCoordinatorMock) CallBackWithRandomness(requestID common.Hash, randomness *big.Int, consumer common.Address) (txmgr.TxCandidate, error) {
	return v.candidate(nil, "callBackWithRandomness", [32]byte(requestID), randomness, consumer)
}

// VRFCoordinatorV2Mock is the subscription based VRF v2 coordinator used on
// local chains.
type VRFCoordinatorV2Mock struct {
	contract
}

// Subscription is the state of a VRF v2 subscription.
type Subscription struct {
	Balance   *big.Int
	ReqCount  uint64
	Owner     common.Address
	Consumers []common.Address
}

func NewVRFCoordinatorV2Mock(address common.Address, caller bind.ContractCaller) *VRFCoordinatorV2Mock {
	return &VRFCoordinatorV2Mock{newContract(VRFCoordinatorV2MockName, address, caller)}
}

func DeployVRFCoordinatorV2Mock(bytecode []byte, baseFee, gasPriceLink *big.Int) (txmgr.TxCandidate, error) {
	return DeployCandidate(VRFCoordinatorV2MockName, bytecode, baseFee, gasPriceLink)
}

func (v *VRFCoordinatorV2Mock) CreateSubscription() (txmgr.TxCandidate, error) {
	return v.candidate(nil, "createSubscription")
}

func (v *VRFCoordinatorV2Mock) FundSubscription(subID uint64, amount *big.Int) (txmgr.TxCandidate, error) {
	return v.candidate(nil, "fundSubscription", subID, amount)
}

func (v *VRFCoordinatorV2Mock) AddConsumer(subID uint64, consumer common.Address) (txmgr.TxCandidate, error) {
	return v.candidate(nil, "addConsumer", subID, consumer)
}

func (v *VRFCoordinatorV2Mock) FulfillRandomWords(requestID *big.Int, consumer common.Address) (txmgr.TxCandidate, error) {
	return v.candidate(nil, "fulfillRandomWords", requestID, consumer)
}

func (v *VRFCoordinatorV2Mock) GetSubscription(ctx context.Context, subID uint64) (Subscription, error) {
	out, err := v.call(ctx, "getSubscription", subID)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		Balance:   *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		ReqCount:  *abi.ConvertType(out[1], new(uint64)).(*uint64),
		Owner:     *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		Consumers: *abi.ConvertType(out[3], new([]common.Address)).(*[]common.Address),
	}, nil
}

// ParseSubscriptionCreated reads the subscription id from a createSubscription
// receipt.
func (v *VRFCoordinatorV2Mock) ParseSubscriptionCreated(receipt *types.Receipt) (uint64, error) {
	lg, err := v.findLog(receipt, "SubscriptionCreated")
	if err != nil {
		return 0, err
	}
	if len(lg.Topics) < 2 {
		return 0, fmt.Errorf("SubscriptionCreated log without subscription id in tx %s", receipt.TxHash)
	}
	return new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(), nil
}
