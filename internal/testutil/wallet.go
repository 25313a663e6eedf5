package testutil

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/client/core/wallet"
)

// Wallet 内存钱包，实现 wallet.Provider
type Wallet struct {
	mu         sync.Mutex
	keys       map[common.Address]*ecdsa.PrivateKey
	order      []common.Address
	authorized []common.Address
	chains     map[string]*Chain
	selected   string
	events     *wallet.ChainEvents
	prompts    int
	requests   []string

	// RejectConnect 为 true 时 eth_requestAccounts 返回用户拒绝
	RejectConnect bool
	// GasLimit 非零时签名选项跳过 gas 估算
	GasLimit uint64
}

// NewWallet 创建连接到 chain 的钱包
func NewWallet(chain *Chain) *Wallet {
	w := &Wallet{
		keys:   make(map[common.Address]*ecdsa.PrivateKey),
		chains: make(map[string]*Chain),
		events: wallet.NewChainEvents(),
	}
	w.selected = w.AddNetwork(chain)
	return w
}

// AddNetwork 增加可切换的网络，返回其 0x 链ID
func (w *Wallet) AddNetwork(chain *Chain) string {
	id := transport.FormatChainID(chain.chainID)
	w.mu.Lock()
	w.chains[id] = chain
	w.mu.Unlock()
	return id
}

// NewAccount 生成新账户（未授权）
func (w *Wallet) NewAccount() common.Address {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	w.mu.Lock()
	w.keys[addr] = key
	w.order = append(w.order, addr)
	w.mu.Unlock()
	return addr
}

// Authorize 直接授权账户（模拟已连接的会话）
func (w *Wallet) Authorize(addr common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.authorized {
		if a == addr {
			return
		}
	}
	w.authorized = append(w.authorized, addr)
}

// Prompts 用户被要求授权的次数
func (w *Wallet) Prompts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prompts
}

// Requests 已收到的请求方法
func (w *Wallet) Requests() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.requests...)
}

// Subscribers 当前 chainChanged 订阅数
func (w *Wallet) Subscribers() int {
	return w.events.Len()
}

// Request 实现 wallet.Provider
func (w *Wallet) Request(ctx context.Context, args wallet.RequestArguments, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	w.requests = append(w.requests, args.Method)
	w.mu.Unlock()

	switch args.Method {
	case wallet.MethodAccounts:
		return wallet.AssignResult(w.accountList(), result)

	case wallet.MethodRequestAccounts:
		w.mu.Lock()
		w.prompts++
		reject := w.RejectConnect
		if !reject && len(w.authorized) == 0 && len(w.order) > 0 {
			w.authorized = append(w.authorized, w.order[0])
		}
		w.mu.Unlock()
		if reject {
			return wallet.ErrUserRejected
		}
		return wallet.AssignResult(w.accountList(), result)

	case wallet.MethodChainID:
		w.mu.Lock()
		selected := w.selected
		w.mu.Unlock()
		return wallet.AssignResult(selected, result)

	case wallet.MethodSwitchChain:
		chainID, err := wallet.ParseSwitchChainParams(args.Params)
		if err != nil {
			return err
		}
		normalized, err := transport.NormalizeChainID(chainID)
		if err != nil {
			return wallet.NewProviderError(wallet.CodeUnrecognizedChain, "invalid chain id %q", chainID)
		}
		w.mu.Lock()
		if _, ok := w.chains[normalized]; !ok {
			w.mu.Unlock()
			return wallet.NewProviderError(wallet.CodeUnrecognizedChain, "unrecognized chain id %s", normalized)
		}
		changed := w.selected != normalized
		w.selected = normalized
		w.mu.Unlock()
		if changed {
			w.events.Publish(normalized)
		}
		return wallet.AssignResult(nil, result)

	default:
		return wallet.NewProviderError(wallet.CodeUnsupportedMethod, "method %s is not supported", args.Method)
	}
}

func (w *Wallet) accountList() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := make([]string, 0, len(w.authorized))
	for _, a := range w.authorized {
		list = append(list, a.Hex())
	}
	return list
}

// On 实现 wallet.Provider
func (w *Wallet) On(event string, handler wallet.ChainChangedHandler) (func(), error) {
	if event != wallet.EventChainChanged {
		return nil, wallet.NewProviderError(wallet.CodeUnsupportedMethod, "event %s is not supported", event)
	}
	return w.events.Subscribe(handler)
}

// Backend 实现 wallet.Provider
func (w *Wallet) Backend(ctx context.Context) (transport.Backend, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chains[w.selected], nil
}

// Transactor 实现 wallet.Provider
func (w *Wallet) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	authorized := false
	for _, a := range w.authorized {
		if a == account {
			authorized = true
			break
		}
	}
	key, ok := w.keys[account]
	if !authorized || !ok {
		return nil, wallet.NewProviderError(wallet.CodeUnauthorized, "account %s is not authorized", account.Hex())
	}

	chainID, err := transport.ParseChainID(w.selected)
	if err != nil {
		return nil, fmt.Errorf("selected chain: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.GasLimit = w.GasLimit
	return opts, nil
}

// KeyedTransactor 不经授权直接获取签名选项（部署脚本测试用）
func (w *Wallet) KeyedTransactor(account common.Address, chainID *big.Int) *bind.TransactOpts {
	w.mu.Lock()
	key := w.keys[account]
	w.mu.Unlock()
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		panic(err)
	}
	return opts
}
