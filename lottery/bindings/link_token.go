package bindings

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

type LinkToken struct {
	contract
}

func NewLinkToken(address common.Address, caller bind.ContractCaller) *LinkToken {
	return &LinkToken{newContract(LinkTokenName, address, caller)}
}

func DeployLinkToken(bytecode []byte) (txmgr.TxCandidate, error) {
	return DeployCandidate(LinkTokenName, bytecode)
}

func (t *LinkToken) Transfer(to common.Address, amount *big.Int) (txmgr.TxCandidate, error) {
	return t.candidate(nil, "transfer", to, amount)
}

func (t *LinkToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", owner)
}
