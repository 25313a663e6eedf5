// Package testutil 测试用的内存链与钱包
//
// Chain 实现 transport.Backend：按 ABI 解码调用数据，交给注册的 Go 合约执行，
// 交易按 EIP-155 恢复发送者、校验 nonce 并立即出块。不收取 gas。
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// 默认参数
const (
	DefaultGasLimit = uint64(100_000)
	blockGasLimit   = uint64(30_000_000)
)

var (
	// ErrChainClosed 后端已关闭
	ErrChainClosed = errors.New("chain backend closed")
	// ErrInsufficientFunds 余额不足
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
)

// RevertError 合约回滚
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// Revert 构造回滚错误
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

// Contract 内存合约
//
// method 为空表示无调用数据的转账（receive）。
// 只有 env.Commit 为 true 时允许修改状态。
type Contract interface {
	ABI() *abi.ABI
	Run(env *Env, method string, args []interface{}) ([]interface{}, error)
}

// Constructor 部署时根据构造参数创建合约
type Constructor func(env *Env, args []interface{}) (Contract, error)

// CallHook 调用前拦截，返回非 nil 错误即中止调用
type CallHook func(to common.Address, method string, args []interface{}) error

type codeFactory struct {
	code []byte
	abi  *abi.ABI
	ctor Constructor
}

type account struct {
	contract Contract
	code     []byte
}

// Chain 内存链
type Chain struct {
	mu        sync.Mutex
	chainID   *big.Int
	now       time.Time
	block     uint64
	gasPrice  *big.Int
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	accounts  map[common.Address]*account
	receipts  map[common.Hash]*types.Receipt
	factories []codeFactory
	callHook  CallHook
	closed    int
}

// NewChain 创建内存链
func NewChain(chainID *big.Int) *Chain {
	return &Chain{
		chainID:  new(big.Int).Set(chainID),
		now:      time.Unix(1_700_000_000, 0),
		gasPrice: big.NewInt(1_000_000_000),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		accounts: make(map[common.Address]*account),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// ===== 测试控制 =====

// Now 链上当前时间
func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceTime 推进链上时间
func (c *Chain) AdvanceTime(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Fund 给账户充值
func (c *Chain) Fund(addr common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(addr, wei)
}

// Install 在指定地址放置合约
func (c *Chain) Install(addr common.Address, code []byte, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[addr] = &account{contract: contract, code: code}
}

// RegisterCode 注册部署字节码及其构造函数
func (c *Chain) RegisterCode(code []byte, contractABI *abi.ABI, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories = append(c.factories, codeFactory{code: code, abi: contractABI, ctor: ctor})
}

// SetCallHook 设置调用拦截
func (c *Chain) SetCallHook(hook CallHook) {
	c.mu.Lock()
	c.callHook = hook
	c.mu.Unlock()
}

// ContractAt 查询地址上的合约
func (c *Chain) ContractAt(addr common.Address) Contract {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[addr]; ok {
		return acc.contract
	}
	return nil
}

// Closed Close 被调用的次数
func (c *Chain) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ===== ContractCaller / DeployBackend =====

// CodeAt 实现 bind.ContractCaller
func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[contract]; ok {
		return common.CopyBytes(acc.code), nil
	}
	return nil, nil
}

// CallContract 实现 bind.ContractCaller，不修改状态
func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return nil, ErrChainClosed
	}
	if call.To == nil {
		return nil, errors.New("call without recipient")
	}
	return c.execute(call.From, *call.To, call.Value, call.Data, false)
}

// TransactionReceipt 实现 bind.DeployBackend
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if receipt, ok := c.receipts[txHash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

// ===== ContractTransactor =====

// HeaderByNumber 返回最新块头，BaseFee 为空（交易走 legacy 定价）
func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &types.Header{
		Number:   new(big.Int).SetUint64(c.block),
		Time:     uint64(c.now.Unix()),
		GasLimit: blockGasLimit,
	}, nil
}

// PendingCodeAt 实现 bind.ContractTransactor
func (c *Chain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return c.CodeAt(ctx, account, nil)
}

// PendingNonceAt 实现 bind.ContractTransactor
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

// SuggestGasPrice 实现 ethereum.GasPricer
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.gasPrice), nil
}

// SuggestGasTipCap 实现 ethereum.GasPricer1559
func (c *Chain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

// EstimateGas 模拟执行，失败时返回回滚原因
func (c *Chain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return 0, ErrChainClosed
	}

	var err error
	if call.To == nil {
		_, _, err = c.deploy(call.From, c.nonces[call.From], call.Value, call.Data, false)
	} else {
		_, err = c.execute(call.From, *call.To, call.Value, call.Data, false)
	}
	if err != nil {
		return 0, err
	}
	return DefaultGasLimit, nil
}

// SendTransaction 校验签名与 nonce 后立即执行并出块
//
// 执行失败的交易照常出块，回执状态为失败。
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return ErrChainClosed
	}

	nonce := c.nonces[from]
	if tx.Nonce() != nonce {
		return fmt.Errorf("invalid nonce for %s: have %d, want %d", from.Hex(), tx.Nonce(), nonce)
	}
	if _, ok := c.receipts[tx.Hash()]; ok {
		return errors.New("already known")
	}
	c.nonces[from] = nonce + 1
	c.block++

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     DefaultGasLimit,
		BlockNumber: new(big.Int).SetUint64(c.block),
		Logs:        []*types.Log{},
	}

	if tx.To() == nil {
		addr, _, err := c.deploy(from, nonce, tx.Value(), tx.Data(), true)
		if err != nil {
			receipt.Status = types.ReceiptStatusFailed
		} else {
			receipt.ContractAddress = addr
		}
	} else if _, err := c.execute(from, *tx.To(), tx.Value(), tx.Data(), true); err != nil {
		receipt.Status = types.ReceiptStatusFailed
	}

	c.receipts[tx.Hash()] = receipt
	return nil
}

// ===== ContractFilterer =====

// FilterLogs 内存链不产生日志
func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

// SubscribeFilterLogs 不支持订阅
func (c *Chain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("log subscriptions are not supported")
}

// ===== transport.Backend 扩展 =====

// BalanceAt 原生币余额
func (c *Chain) BalanceAt(ctx context.Context, addr common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed > 0 {
		return nil, ErrChainClosed
	}
	return new(big.Int).Set(c.balanceOf(addr)), nil
}

// ChainID 链ID
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// Close 标记关闭
func (c *Chain) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

// ===== 执行 =====

func (c *Chain) balanceOf(addr common.Address) *big.Int {
	if b, ok := c.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) credit(addr common.Address, wei *big.Int) {
	c.balances[addr] = new(big.Int).Add(c.balanceOf(addr), wei)
}

// transfer 转账；commit 为 false 时只检查余额
func (c *Chain) transfer(from, to common.Address, value *big.Int, commit bool) error {
	if value == nil || value.Sign() == 0 {
		return nil
	}
	if c.balanceOf(from).Cmp(value) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), c.balanceOf(from), value)
	}
	if commit {
		c.balances[from] = new(big.Int).Sub(c.balanceOf(from), value)
		c.credit(to, value)
	}
	return nil
}

// execute 执行外部调用（data 为 ABI 编码）
func (c *Chain) execute(from, to common.Address, value *big.Int, data []byte, commit bool) ([]byte, error) {
	acc, ok := c.accounts[to]
	if !ok {
		// 普通账户：只有转账
		return nil, c.transfer(from, to, value, commit)
	}

	methodName := ""
	var (
		method *abi.Method
		args   []interface{}
		err    error
	)
	if len(data) > 0 {
		if len(data) < 4 {
			return nil, Revert("invalid calldata")
		}
		method, err = acc.contract.ABI().MethodById(data[:4])
		if err != nil {
			return nil, Revert("function selector was not recognized")
		}
		args, err = method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, Revert("invalid arguments")
		}
		methodName = method.Name
	}

	out, err := c.invoke(from, to, value, methodName, args, commit)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, nil
	}
	return method.Outputs.Pack(out...)
}

// invoke 执行合约方法（已解码参数），供外部调用和合约间调用共用
func (c *Chain) invoke(from, to common.Address, value *big.Int, method string, args []interface{}, commit bool) ([]interface{}, error) {
	if c.callHook != nil {
		if err := c.callHook(to, method, args); err != nil {
			return nil, err
		}
	}

	acc, ok := c.accounts[to]
	if !ok {
		if method != "" {
			return nil, Revert("call to non-contract")
		}
		return nil, c.transfer(from, to, value, commit)
	}

	if err := c.transfer(from, to, value, commit); err != nil {
		return nil, err
	}
	env := &Env{
		chain:  c,
		Self:   to,
		Caller: from,
		Value:  valueOrZero(value),
		Now:    c.now,
		Commit: commit,
	}
	out, err := acc.contract.Run(env, method, args)
	if err != nil && commit && value != nil && value.Sign() > 0 {
		// 回滚转入的金额
		_ = c.transfer(to, from, value, true)
	}
	return out, err
}

// deploy 识别字节码并执行构造函数
func (c *Chain) deploy(from common.Address, nonce uint64, value *big.Int, data []byte, commit bool) (common.Address, Contract, error) {
	for _, f := range c.factories {
		if !bytes.HasPrefix(data, f.code) {
			continue
		}

		var args []interface{}
		if f.abi != nil && len(f.abi.Constructor.Inputs) > 0 {
			unpacked, err := f.abi.Constructor.Inputs.Unpack(data[len(f.code):])
			if err != nil {
				return common.Address{}, nil, Revert("invalid constructor arguments")
			}
			args = unpacked
		}

		addr := crypto.CreateAddress(from, nonce)
		if err := c.transfer(from, addr, value, commit); err != nil {
			return common.Address{}, nil, err
		}
		env := &Env{chain: c, Self: addr, Caller: from, Value: valueOrZero(value), Now: c.now, Commit: commit}
		contract, err := f.ctor(env, args)
		if err != nil {
			if commit {
				_ = c.transfer(addr, from, value, true)
			}
			return common.Address{}, nil, err
		}
		if commit {
			c.accounts[addr] = &account{contract: contract, code: common.CopyBytes(f.code)}
		}
		return addr, contract, nil
	}
	return common.Address{}, nil, Revert("unknown bytecode")
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Env 合约执行环境
type Env struct {
	chain  *Chain
	Self   common.Address
	Caller common.Address
	Value  *big.Int
	Now    time.Time
	Commit bool
}

// Balance 当前合约余额
func (e *Env) Balance() *big.Int {
	return new(big.Int).Set(e.chain.balanceOf(e.Self))
}

// Invoke 以当前合约身份调用另一个合约
func (e *Env) Invoke(to common.Address, method string, value *big.Int, args ...interface{}) ([]interface{}, error) {
	return e.chain.invoke(e.Self, to, value, method, args, e.Commit)
}

// Transfer 从当前合约转出原生币
func (e *Env) Transfer(to common.Address, value *big.Int) error {
	return e.chain.transfer(e.Self, to, value, e.Commit)
}
