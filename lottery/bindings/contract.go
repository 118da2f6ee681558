package bindings

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
)

// Contract names as they appear in the build artifacts and deployment map.
const (
	LotteryName              = "Lottery"
	NFTLotteryName           = "NFTLottery"
	MockV3AggregatorName     = "MockV3Aggregator"
	LinkTokenName            = "LinkToken"
	VRFCoordinatorMockName   = "VRFCoordinatorMock"
	VRFCoordinatorV2MockName = "VRFCoordinatorV2Mock"
	MockERC721Name           = "MockERC721"
)

var (
	ErrEventNotFound   = errors.New("event not found in receipt")
	ErrUnknownContract = errors.New("unknown contract")
)

var parsedABIs = map[string]abi.ABI{
	LotteryName:              mustParseABI(LotteryABI),
	NFTLotteryName:           mustParseABI(NFTLotteryABI),
	MockV3AggregatorName:     mustParseABI(MockV3AggregatorABI),
	LinkTokenName:            mustParseABI(LinkTokenABI),
	VRFCoordinatorMockName:   mustParseABI(VRFCoordinatorMockABI),
	VRFCoordinatorV2MockName: mustParseABI(VRFCoordinatorV2MockABI),
	MockERC721Name:           mustParseABI(ERC721ABI),
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Errorf("invalid abi: %w", err))
	}
	return parsed
}

// ABI returns the parsed interface of a known contract.
func ABI(contractName string) (abi.ABI, error) {
	parsed, ok := parsedABIs[contractName]
	if !ok {
		return abi.ABI{}, fmt.Errorf("%w: %s", ErrUnknownContract, contractName)
	}
	return parsed, nil
}

// DeployCandidate packs the creation bytecode of a known contract with its
// constructor arguments into a contract creation candidate.
func DeployCandidate(contractName string, bytecode []byte, args ...interface{}) (txmgr.TxCandidate, error) {
	parsed, err := ABI(contractName)
	if err != nil {
		return txmgr.TxCandidate{}, err
	}
	input, err := parsed.Pack("", args...)
	if err != nil {
		return txmgr.TxCandidate{}, fmt.Errorf("failed to pack %s constructor: %w", contractName, err)
	}
	data := make([]byte, 0, len(bytecode)+len(input))
	data = append(data, bytecode...)
	data = append(data, input...)
	return txmgr.TxCandidate{TxData: data}, nil
}

// contract is the shared plumbing of the typed wrappers: calldata packing for
// txs sent through a TxManager, view calls and receipt log lookups.
type contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

func newContract(contractName string, address common.Address, caller bind.ContractCaller) contract {
	parsed := parsedABIs[contractName]
	return contract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, caller, nil, nil),
	}
}

func (c *contract) Address() common.Address {
	return c.address
}

func (c *contract) candidate(value *big.Int, method string, args ...interface{}) (txmgr.TxCandidate, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return txmgr.TxCandidate{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	to := c.address
	return txmgr.TxCandidate{
		TxData: data,
		To:     &to,
		Value:  value,
	}, nil
}

func (c *contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return out, nil
}

func (c *contract) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *contract) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *contract) callUint8(ctx context.Context, method string, args ...interface{}) (uint8, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// findLog returns the first log of the named event emitted by this contract.
func (c *contract) findLog(receipt *types.Receipt, event string) (*types.Log, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return nil, fmt.Errorf("no %s event in abi", event)
	}
	for _, lg := range receipt.Logs {
		if lg.Address != c.address || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		return lg, nil
	}
	return nil, fmt.Errorf("%w: %s in tx %s", ErrEventNotFound, event, receipt.TxHash)
}

// revertCode is the JSON-RPC error code geth and anvil return for reverted calls.
const revertCode = 3

// revertMessages are the ways nodes word a rejected call. Geth and anvil say
// "execution reverted", ganache and hardhat report a VM exception, which for
// old contracts indexing past an array is an invalid opcode.
var revertMessages = []string{
	"execution reverted",
	"VM Exception while processing transaction: revert",
	"VM Exception while processing transaction: invalid opcode",
}

// IsRevert reports whether err is a call the contract rejected, as opposed to
// a transport failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertCode {
		return true
	}
	msg := err.Error()
	for _, m := range revertMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
