package bindings

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

// ERC721 covers the parts of an NFT collection the NFT lottery flow needs.
// Mint only exists on the local MockERC721.
type ERC721 struct {
	contract
}

func NewERC721(address common.Address, caller bind.ContractCaller) *ERC721 {
	return &ERC721{newContract(MockERC721Name, address, caller)}
}

func DeployMockERC721(bytecode []byte) (txmgr.TxCandidate, error) {
	return DeployCandidate(MockERC721Name, bytecode)
}

func (e *ERC721) Approve(to common.Address, tokenID *big.Int) (txmgr.TxCandidate, error) {
	return e.candidate(nil, "approve", to, tokenID)
}

func (e *ERC721) Mint(to common.Address, tokenID *big.Int) (txmgr.TxCandidate, error) {
	return e.candidate(nil, "mint", to, tokenID)
}

func (e *ERC721) GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return e.callAddress(ctx, "getApproved", tokenID)
}

func (e *ERC721) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return e.callAddress(ctx, "ownerOf", tokenID)
}
