// Package dao CryptoDevs DAO 合约网关
//
// Gateway 把钱包连接与合约调用封装为逐个操作：
//   - 钱包：检查连接、请求连接、查询/切换网络、订阅链切换
//   - 余额：DAO 金库余额、用户会员 NFT 数量
//   - 提案：数量、创建、读取、投票、执行
//
// 网关本身不保存状态：每次调用都重新解析签名账户、后端与合约句柄。
package dao

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/client/core/wallet"
	"github.com/cryptodevs/daogate/client/pkg/ux/ui"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	logiface "github.com/cryptodevs/daogate/pkg/interfaces/infrastructure/log"
)

// 用户提示
const (
	NoticeNoWallet      = "Make sure you have a wallet configured!"
	NoticeInstallWallet = "A wallet is not configured. Please set keystore_path in the active profile to use this app."
)

// Gateway DAO 网关
type Gateway struct {
	provider  wallet.Provider
	addresses Addresses
	networks  wallet.Networks
	notifier  ui.Notifier
	logger    logiface.Logger
}

// Option 网关选项
type Option func(*Gateway)

// WithLogger 设置日志记录器
func WithLogger(logger logiface.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithNotifier 设置用户提示器
func WithNotifier(n ui.Notifier) Option {
	return func(g *Gateway) {
		if n != nil {
			g.notifier = n
		}
	}
}

// WithNetworks 替换网络名表
func WithNetworks(n wallet.Networks) Option {
	return func(g *Gateway) {
		if n != nil {
			g.networks = n
		}
	}
}

// New 创建网关，provider 为 nil 表示没有可用钱包
func New(provider wallet.Provider, addresses Addresses, opts ...Option) *Gateway {
	g := &Gateway{
		provider:  provider,
		addresses: addresses,
		networks:  wallet.DefaultNetworks,
		notifier:  ui.NopNotifier(),
		logger:    log.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("module", "dao")
	return g
}

// Addresses 网关使用的合约地址
func (g *Gateway) Addresses() Addresses {
	return g.addresses
}

// ===== 钱包 =====

// CheckWalletConnection 返回已授权的第一个账户，不会弹出授权
func (g *Gateway) CheckWalletConnection(ctx context.Context) (string, error) {
	if g.provider == nil {
		g.logger.Info("no wallet provider found")
		return "", nil
	}

	accounts, err := g.requestAccounts(ctx, wallet.MethodAccounts)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		g.logger.Info("no authorized account found")
		return "", nil
	}

	g.logger.With("account", accounts[0]).Info("found an authorized account")
	return accounts[0], nil
}

// ConnectWallet 请求用户授权，返回第一个账户
func (g *Gateway) ConnectWallet(ctx context.Context) (string, error) {
	if g.provider == nil {
		g.notifier.Notify(NoticeNoWallet)
		return "", nil
	}

	accounts, err := g.requestAccounts(ctx, wallet.MethodRequestAccounts)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		g.logger.Info("no authorized account found")
		return "", nil
	}

	g.logger.With("account", accounts[0]).Info("found an authorized account")
	return accounts[0], nil
}

// GetNetwork 当前链的网络名，未收录的链返回 wallet.UnknownNetwork
func (g *Gateway) GetNetwork(ctx context.Context) (string, error) {
	if g.provider == nil {
		g.notifier.Notify(NoticeNoWallet)
		return "", nil
	}

	var chainID string
	if err := g.provider.Request(ctx, wallet.RequestArguments{Method: wallet.MethodChainID}, &chainID); err != nil {
		return "", fmt.Errorf("query chain id: %w", err)
	}

	name := g.networks.Name(chainID)
	g.logger.With("chain_id", chainID, "network", name).Debug("network resolved")
	return name, nil
}

// SwitchNetwork 请求钱包切换到 chainID（0x 十六进制）
func (g *Gateway) SwitchNetwork(ctx context.Context, chainID string) error {
	if g.provider == nil {
		g.notifier.Notify(NoticeInstallWallet)
		return nil
	}

	args := wallet.RequestArguments{
		Method: wallet.MethodSwitchChain,
		Params: []interface{}{wallet.SwitchChainParameter{ChainID: chainID}},
	}
	if err := g.provider.Request(ctx, args, nil); err != nil {
		return fmt.Errorf("switch to chain %s: %w", chainID, err)
	}
	return nil
}

// OnChainChanged 订阅链切换，返回取消订阅函数
func (g *Gateway) OnChainChanged(handler wallet.ChainChangedHandler) (func(), error) {
	if g.provider == nil {
		g.notifier.Notify(NoticeNoWallet)
		return func() {}, nil
	}

	unsubscribe, err := g.provider.On(wallet.EventChainChanged, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", wallet.EventChainChanged, err)
	}
	return unsubscribe, nil
}

// ===== 内部：账户与合约句柄 =====

func (g *Gateway) requestAccounts(ctx context.Context, method string) ([]string, error) {
	var accounts []string
	if err := g.provider.Request(ctx, wallet.RequestArguments{Method: method}, &accounts); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return accounts, nil
}

// signer 当前签名账户（eth_accounts 的第一个）
func (g *Gateway) signer(ctx context.Context) (common.Address, error) {
	if g.provider == nil {
		return common.Address{}, ErrNoProvider
	}
	accounts, err := g.requestAccounts(ctx, wallet.MethodAccounts)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNotConnected
	}
	if !common.IsHexAddress(accounts[0]) {
		return common.Address{}, fmt.Errorf("provider returned malformed account %q", accounts[0])
	}
	return common.HexToAddress(accounts[0]), nil
}

// handleFor 为签名账户构建合约句柄
func (g *Gateway) handleFor(ctx context.Context, address common.Address, contractABI *abi.ABI) (*contract.Handle, common.Address, error) {
	from, err := g.signer(ctx)
	if err != nil {
		return nil, common.Address{}, err
	}
	backend, err := g.provider.Backend(ctx)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("chain backend: %w", err)
	}
	handle, err := contract.NewHandle(address, contractABI, backend)
	if err != nil {
		return nil, common.Address{}, err
	}
	return handle, from, nil
}
