// Package chaintest is an in-memory chain running Go models of the lottery
// contracts and their mocks. It stands in for a development node in tests:
// it sends transactions through txmgr.TxManager and answers view calls through
// bind.ContractCaller.
package chaintest

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dcSpark/smartcontract-lottery/lottery-service/txmgr"
	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
)

var ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")

// RevertError is returned when a contract rejects a call.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func revert(format string, args ...interface{}) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

type account struct {
	code []byte
	impl contract
}

// Chain is the in-memory chain. It is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID  *big.Int
	number   uint64
	time     uint64
	nonces   map[common.Address]uint64
	balances map[common.Address]*big.Int
	accounts map[common.Address]*account
	receipts map[common.Hash]*types.Receipt
}

func New(chainID int64) *Chain {
	return &Chain{
		chainID:  big.NewInt(chainID),
		time:     1_700_000_000,
		nonces:   make(map[common.Address]uint64),
		balances: make(map[common.Address]*big.Int),
		accounts: make(map[common.Address]*account),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Fund credits wei to addr.
func (c *Chain) Fund(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Add(c.balanceLocked(addr), wei)
}

// AdvanceTime moves the chain clock forward, as seen by the next transactions.
func (c *Chain) AdvanceTime(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time += seconds
}

func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.number
}

func (c *Chain) Receipt(hash common.Hash) (*types.Receipt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	return r, ok
}

func (c *Chain) balanceLocked(addr common.Address) *big.Int {
	if b, ok := c.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) BalanceAt(ctx context.Context, addr common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceLocked(addr)), nil
}

func (c *Chain) CodeAt(ctx context.Context, addr common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acct, ok := c.accounts[addr]; ok {
		return common.CopyBytes(acct.code), nil
	}
	return nil, nil
}

// CallContract executes a view call. State changes made by the call are
// discarded.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.To == nil {
		return nil, errors.New("chaintest: contract creation in a call")
	}
	acct, ok := c.accounts[*msg.To]
	if !ok {
		return nil, nil
	}
	snap := c.snapshot()
	defer c.restore(snap)

	var logs []*types.Log
	e := &env{chain: c, self: *msg.To, from: msg.From, value: new(big.Int), logs: &logs}
	return c.execute(e, acct.impl, msg.Data)
}

// Manager returns a TxManager sending from addr.
func (c *Chain) Manager(addr common.Address) *Manager {
	return &Manager{chain: c, from: addr}
}

// Manager sends transactions to the chain. Each send is mined in its own block.
type Manager struct {
	chain *Chain
	from  common.Address
}

var _ txmgr.TxManager = (*Manager)(nil)

func (m *Manager) From() common.Address {
	return m.from
}

func (m *Manager) Send(ctx context.Context, candidate txmgr.TxCandidate) (*types.Receipt, error) {
	return m.chain.Send(ctx, m.from, candidate)
}

// Send mines candidate from the sender. A failing tx without a gas limit errors
// like a failed gas estimation does. With a gas limit it is mined and reverted,
// yielding a receipt with a failed status.
func (c *Chain) Send(ctx context.Context, from common.Address, candidate txmgr.TxCandidate) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := c.nonces[from]
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	txHash := crypto.Keccak256Hash(c.chainID.Bytes(), from.Bytes(), nonceBytes[:])

	value := candidate.Value
	if value == nil {
		value = new(big.Int)
	}
	if c.balanceLocked(from).Cmp(value) < 0 {
		return nil, fmt.Errorf("failed to create the tx: %w: address %s", ErrInsufficientFunds, from)
	}

	snap := c.snapshot()
	var logs []*types.Log
	var created common.Address
	var err error
	if candidate.To == nil {
		created = crypto.CreateAddress(from, nonce)
		err = c.create(from, created, value, candidate.TxData, &logs)
	} else {
		err = c.transact(from, *candidate.To, value, candidate.TxData, &logs)
	}
	if err != nil {
		c.restore(snap)
		if candidate.GasLimit == 0 {
			return nil, fmt.Errorf("failed to create the tx: failed to estimate gas: %w", err)
		}
		logs = nil
	}

	c.nonces[from] = nonce + 1
	c.number++
	receipt := &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		EffectiveGasPrice: big.NewInt(1),
		TxHash:            txHash,
		ContractAddress:   created,
		BlockNumber:       new(big.Int).SetUint64(c.number),
		BlockHash:         crypto.Keccak256Hash(txHash.Bytes()),
		Logs:              logs,
	}
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		receipt.ContractAddress = common.Address{}
	}
	for i, lg := range logs {
		lg.TxHash = txHash
		lg.BlockNumber = c.number
		lg.BlockHash = receipt.BlockHash
		lg.Index = uint(i)
	}
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
	c.receipts[txHash] = receipt
	return receipt, nil
}

func (c *Chain) create(from, addr common.Address, value *big.Int, data []byte, logs *[]*types.Log) error {
	name, args, ok := splitBytecode(data)
	if !ok {
		return errors.New("chaintest: unknown creation code")
	}
	ctor, ok := constructors[name]
	if !ok {
		return fmt.Errorf("chaintest: no model for %s", name)
	}
	parsed, err := bindings.ABI(name)
	if err != nil {
		return err
	}
	values, err := parsed.Constructor.Inputs.Unpack(args)
	if err != nil {
		return revert("bad constructor arguments: %v", err)
	}
	e := &env{chain: c, self: addr, from: from, value: value, logs: logs}
	impl, err := ctor(e, values)
	if err != nil {
		return err
	}
	c.moveETH(from, addr, value)
	c.accounts[addr] = &account{code: common.CopyBytes(data[:len(data)-len(args)]), impl: impl}
	return nil
}

func (c *Chain) transact(from, to common.Address, value *big.Int, data []byte, logs *[]*types.Log) error {
	acct, ok := c.accounts[to]
	if !ok {
		c.moveETH(from, to, value)
		return nil
	}
	e := &env{chain: c, self: to, from: from, value: value, logs: logs}
	method, err := methodOf(acct.impl, data)
	if err != nil {
		return err
	}
	if value.Sign() > 0 && !method.IsPayable() {
		return revert("%s is not payable", method.Name)
	}
	c.moveETH(from, to, value)
	_, err = c.execute(e, acct.impl, data)
	return err
}

func methodOf(impl contract, data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, revert("no function selector")
	}
	parsed, err := bindings.ABI(impl.name())
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, revert("unknown function selector %x", data[:4])
	}
	return method, nil
}

func (c *Chain) execute(e *env, impl contract, data []byte) ([]byte, error) {
	method, err := methodOf(impl, data)
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert("bad arguments for %s: %v", method.Name, err)
	}
	out, err := impl.call(e, method.Name, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (c *Chain) moveETH(from, to common.Address, value *big.Int) {
	if value == nil || value.Sign() == 0 {
		return
	}
	c.balances[from] = new(big.Int).Sub(c.balanceLocked(from), value)
	c.balances[to] = new(big.Int).Add(c.balanceLocked(to), value)
}

type snapshot struct {
	number   uint64
	balances map[common.Address]*big.Int
	accounts map[common.Address]*account
}

func (c *Chain) snapshot() snapshot {
	s := snapshot{
		number:   c.number,
		balances: make(map[common.Address]*big.Int, len(c.balances)),
		accounts: make(map[common.Address]*account, len(c.accounts)),
	}
	for k, v := range c.balances {
		s.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range c.accounts {
		s.accounts[k] = &account{code: v.code, impl: v.impl.clone()}
	}
	return s
}

func (c *Chain) restore(s snapshot) {
	c.number = s.number
	c.balances = s.balances
	c.accounts = s.accounts
}

// env is the execution context of one contract frame.
type env struct {
	chain *Chain
	self  common.Address
	from  common.Address
	value *big.Int
	logs  *[]*types.Log
}

func (e *env) now() uint64 {
	return e.chain.time
}

func (e *env) balance() *big.Int {
	return e.chain.balanceLocked(e.self)
}

func (e *env) sendETH(to common.Address, amount *big.Int) {
	e.chain.moveETH(e.self, to, amount)
}

func (e *env) emit(contractName, event string, topics []common.Hash, data ...interface{}) error {
	parsed, err := bindings.ABI(contractName)
	if err != nil {
		return err
	}
	ev, ok := parsed.Events[event]
	if !ok {
		return fmt.Errorf("chaintest: no event %s on %s", event, contractName)
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		return fmt.Errorf("chaintest: packing %s: %w", event, err)
	}
	*e.logs = append(*e.logs, &types.Log{
		Address: e.self,
		Topics:  append([]common.Hash{ev.ID}, topics...),
		Data:    packed,
	})
	return nil
}

// callAs runs method on the contract at to with this frame's contract as the
// sender.
func (e *env) callAs(to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	acct, ok := e.chain.accounts[to]
	if !ok {
		return nil, revert("call to non-contract %s", to)
	}
	sub := &env{chain: e.chain, self: to, from: e.self, value: new(big.Int), logs: e.logs}
	return acct.impl.call(sub, method, args)
}

// lookup returns the model deployed at addr if it has the wanted type.
func lookup[T contract](e *env, addr common.Address) (T, error) {
	var zero T
	acct, ok := e.chain.accounts[addr]
	if !ok {
		return zero, revert("no contract at %s", addr)
	}
	impl, ok := acct.impl.(T)
	if !ok {
		return zero, revert("unexpected contract %s at %s", acct.impl.name(), addr)
	}
	return impl, nil
}

const codePrefix = "chaintest:"

// Bytecode is the creation code chaintest recognizes as the named contract.
func Bytecode(name string) []byte {
	code := []byte(codePrefix + name)
	return append(code, 0)
}

func splitBytecode(data []byte) (string, []byte, bool) {
	if !bytes.HasPrefix(data, []byte(codePrefix)) {
		return "", nil, false
	}
	rest := data[len(codePrefix):]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", nil, false
	}
	return string(rest[:end]), rest[end+1:], true
}
