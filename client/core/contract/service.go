package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cryptodevs/daogate/client/core/transport"
)

var (
	// ErrTransactionFailed 交易已上链但执行失败（receipt.Status == 0）
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrNilBackend 未提供链后端
	ErrNilBackend = errors.New("nil chain backend")
)

// Handle 合约句柄：地址 + ABI + 后端
//
// 每次操作都重新构建，不做缓存。
type Handle struct {
	address common.Address
	abi     *abi.ABI
	backend transport.Backend
	bound   *bind.BoundContract
}

// NewHandle 创建合约句柄
func NewHandle(address common.Address, contractABI *abi.ABI, backend transport.Backend) (*Handle, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	return &Handle{
		address: address,
		abi:     contractABI,
		backend: backend,
		bound:   bind.NewBoundContract(address, *contractABI, backend, backend, backend),
	}, nil
}

// Address 合约地址
func (h *Handle) Address() common.Address {
	return h.address
}

// ========== 只读调用 ==========

// Call 以 from 身份执行只读调用，返回解码后的输出
func (h *Handle) Call(ctx context.Context, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: from}
	if err := h.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

// ========== 交易 ==========

// Transact 签名并广播交易，不等待上链
func (h *Handle) Transact(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	txOpts := withContext(ctx, opts)
	tx, err := h.bound.Transact(txOpts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return tx, nil
}

// TransactAndWait 广播交易并等待回执
func (h *Handle) TransactAndWait(ctx context.Context, opts *bind.TransactOpts, method string, args ...interface{}) (*types.Receipt, error) {
	tx, err := h.Transact(ctx, opts, method, args...)
	if err != nil {
		return nil, err
	}
	return WaitReceipt(ctx, h.backend, tx)
}

// WaitReceipt 等待交易回执并检查执行状态
func WaitReceipt(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrTransactionFailed, tx.Hash().Hex())
	}
	return receipt, nil
}

// ========== 部署 ==========

// Deployment 部署结果
type Deployment struct {
	Address common.Address
	TxHash  common.Hash
}

// Deploy 部署构件并等待合约代码上链
func Deploy(ctx context.Context, backend transport.Backend, opts *bind.TransactOpts, artifact *Artifact, args ...interface{}) (*Deployment, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if artifact == nil || len(artifact.Bytecode) == 0 {
		return nil, ErrInvalidArtifact
	}

	txOpts := withContext(ctx, opts)
	address, tx, _, err := bind.DeployContract(txOpts, artifact.ABI, artifact.Bytecode, backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
	}

	deployed, err := bind.WaitDeployed(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s deployment: %w", artifact.ContractName, err)
	}
	if deployed != address {
		// 回执地址优先
		address = deployed
	}

	return &Deployment{Address: address, TxHash: tx.Hash()}, nil
}

// withContext 复制签名选项并绑定 ctx
func withContext(ctx context.Context, opts *bind.TransactOpts) *bind.TransactOpts {
	cp := *opts
	cp.Context = ctx
	return &cp
}
