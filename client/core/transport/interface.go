// Package transport provides the chain backend used by the gateway and the deployer.
package transport

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Backend 链后端接口 - 网关与部署流程访问链的唯一通道
// 合约读写、回执等待、余额查询都经由此接口；*ethclient.Client 直接满足它
type Backend interface {
	// 合约调用、交易发送、日志过滤
	bind.ContractBackend

	// 等待回执与部署确认
	bind.DeployBackend

	// BalanceAt 查询原生币余额（wei），blockNumber 为 nil 表示最新块
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)

	// ChainID 节点报告的链ID
	ChainID(ctx context.Context) (*big.Int, error)

	// Close 关闭底层连接
	Close()
}
