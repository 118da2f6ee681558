package bindings

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

// PriceFeed reads a Chainlink aggregator. MockV3Aggregator and the live feeds
// share this interface.
type PriceFeed struct {
	contract
}

func NewPriceFeed(address common.Address, caller bind.ContractCaller) *PriceFeed {
	return &PriceFeed{newContract(MockV3AggregatorName, address, caller)}
}

func DeployMockV3Aggregator(bytecode []byte, decimals uint8, initialAnswer *big.Int) (txmgr.TxCandidate, error) {
	return DeployCandidate(MockV3AggregatorName, bytecode, decimals, initialAnswer)
}

func (p *PriceFeed) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return p.callBig(ctx, "latestAnswer")
}

func (p *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	return p.callUint8(ctx, "decimals")
}

// UpdateAnswer is only available on the mock aggregator.
func (p *PriceFeed) UpdateAnswer(answer *big.Int) (txmgr.TxCandidate, error) {
	return p.candidate(nil, "updateAnswer", answer)
}
