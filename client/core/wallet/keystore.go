package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	logiface "github.com/cryptodevs/daogate/pkg/interfaces/infrastructure/log"
)

// NetworkConfig 钱包可切换的网络
type NetworkConfig struct {
	ChainID   *big.Int
	Name      string
	Endpoints []transport.EndpointConfig
}

// Dialer 为网络建立后端连接
type Dialer func(ctx context.Context, network NetworkConfig) (transport.Backend, error)

// DialNetwork 默认拨号：按优先级连接并校验链ID
func DialNetwork(ctx context.Context, network NetworkConfig) (transport.Backend, error) {
	return transport.DialFirst(ctx, network.Endpoints, network.ChainID)
}

// KeystoreOptions KeystoreProvider 配置
type KeystoreOptions struct {
	KeystoreDir    string
	DefaultAccount common.Address // 零值表示 keystore 中的第一个账户
	Networks       []NetworkConfig
	ChainID        *big.Int // 初始网络，nil 表示 Networks[0]
	Passphrase     string   // 非空时在创建时静默解锁默认账户
	Prompter       Prompter
	Dialer         Dialer
	Logger         logiface.Logger

	// scrypt 参数，零值使用 keystore.StandardScryptN/P
	ScryptN int
	ScryptP int
}

// KeystoreProvider 基于 go-ethereum keystore 目录的钱包提供者
type KeystoreProvider struct {
	ks             *keystore.KeyStore
	defaultAccount common.Address
	networks       map[string]NetworkConfig
	prompter       Prompter
	dialer         Dialer
	events         *ChainEvents
	logger         logiface.Logger

	mu         sync.Mutex
	selected   string // 0x 十六进制链ID
	backend    transport.Backend
	authorized []common.Address
}

// NewKeystoreProvider 创建提供者
func NewKeystoreProvider(opts KeystoreOptions) (*KeystoreProvider, error) {
	if len(opts.Networks) == 0 {
		return nil, errors.New("keystore provider: no networks configured")
	}

	scryptN, scryptP := opts.ScryptN, opts.ScryptP
	if scryptN == 0 || scryptP == 0 {
		scryptN, scryptP = keystore.StandardScryptN, keystore.StandardScryptP
	}

	p := &KeystoreProvider{
		ks:             keystore.NewKeyStore(opts.KeystoreDir, scryptN, scryptP),
		defaultAccount: opts.DefaultAccount,
		networks:       make(map[string]NetworkConfig, len(opts.Networks)),
		prompter:       opts.Prompter,
		dialer:         opts.Dialer,
		events:         NewChainEvents(),
		logger:         opts.Logger,
	}
	if p.dialer == nil {
		p.dialer = DialNetwork
	}
	if p.logger == nil {
		p.logger = log.GetLogger()
	}

	for _, network := range opts.Networks {
		if network.ChainID == nil {
			return nil, fmt.Errorf("keystore provider: network %q has no chain id", network.Name)
		}
		p.networks[transport.FormatChainID(network.ChainID)] = network
	}

	initial := opts.ChainID
	if initial == nil {
		initial = opts.Networks[0].ChainID
	}
	p.selected = transport.FormatChainID(initial)
	if _, ok := p.networks[p.selected]; !ok {
		return nil, fmt.Errorf("keystore provider: initial chain %s is not configured", p.selected)
	}

	if opts.Passphrase != "" {
		account, err := p.resolveDefault()
		if err != nil {
			return nil, err
		}
		if err := p.ks.Unlock(account, opts.Passphrase); err != nil {
			return nil, fmt.Errorf("unlock %s: %w", account.Address.Hex(), err)
		}
		p.authorized = append(p.authorized, account.Address)
	}

	return p, nil
}

// KeyStore 底层 keystore
func (p *KeystoreProvider) KeyStore() *keystore.KeyStore {
	return p.ks
}

// ===== Request =====

// Request 实现 Provider
func (p *KeystoreProvider) Request(ctx context.Context, args RequestArguments, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch args.Method {
	case MethodAccounts:
		return AssignResult(p.accountList(), result)

	case MethodRequestAccounts:
		if err := p.requestAccounts(ctx); err != nil {
			return err
		}
		return AssignResult(p.accountList(), result)

	case MethodChainID:
		p.mu.Lock()
		selected := p.selected
		p.mu.Unlock()
		return AssignResult(selected, result)

	case MethodSwitchChain:
		chainID, err := ParseSwitchChainParams(args.Params)
		if err != nil {
			return err
		}
		if err := p.switchChain(chainID); err != nil {
			return err
		}
		return AssignResult(nil, result)

	default:
		return NewProviderError(CodeUnsupportedMethod, "method %s is not supported", args.Method)
	}
}

func (p *KeystoreProvider) accountList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	list := make([]string, 0, len(p.authorized))
	for _, addr := range p.authorized {
		list = append(list, addr.Hex())
	}
	return list
}

func (p *KeystoreProvider) isAuthorized(addr common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.authorized {
		if a == addr {
			return true
		}
	}
	return false
}

func (p *KeystoreProvider) resolveDefault() (accounts.Account, error) {
	if p.defaultAccount != (common.Address{}) {
		account, err := p.ks.Find(accounts.Account{Address: p.defaultAccount})
		if err != nil {
			return accounts.Account{}, NewProviderError(CodeUnauthorized, "account %s not found in keystore", p.defaultAccount.Hex())
		}
		return account, nil
	}
	all := p.ks.Accounts()
	if len(all) == 0 {
		return accounts.Account{}, NewProviderError(CodeUnauthorized, "keystore has no accounts")
	}
	return all[0], nil
}

func (p *KeystoreProvider) requestAccounts(ctx context.Context) error {
	account, err := p.resolveDefault()
	if err != nil {
		return err
	}
	if p.isAuthorized(account.Address) {
		return nil
	}
	if p.prompter == nil {
		return NewProviderError(CodeUserRejected, "no prompter available to unlock %s", account.Address.Hex())
	}

	passphrase, err := p.prompter.Passphrase(ctx, account.Address)
	if err != nil {
		return err
	}
	if err := p.ks.Unlock(account, passphrase); err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return NewProviderError(CodeUserRejected, "incorrect passphrase for %s", account.Address.Hex())
		}
		return fmt.Errorf("unlock %s: %w", account.Address.Hex(), err)
	}

	p.mu.Lock()
	p.authorized = append(p.authorized, account.Address)
	p.mu.Unlock()

	p.logger.With("account", account.Address.Hex()).Info("账户已授权")
	return nil
}

func (p *KeystoreProvider) switchChain(chainID string) error {
	normalized, err := transport.NormalizeChainID(chainID)
	if err != nil {
		return NewProviderError(CodeUnrecognizedChain, "invalid chain id %q", chainID)
	}

	p.mu.Lock()
	if _, ok := p.networks[normalized]; !ok {
		p.mu.Unlock()
		return NewProviderError(CodeUnrecognizedChain, "unrecognized chain id %s", normalized)
	}
	if normalized == p.selected {
		p.mu.Unlock()
		return nil
	}
	old := p.backend
	p.backend = nil
	p.selected = normalized
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}

	p.logger.With("chain_id", normalized).Info("网络已切换")
	p.events.Publish(normalized)
	return nil
}

// ===== 事件 =====

// On 实现 Provider，仅支持 chainChanged
func (p *KeystoreProvider) On(event string, handler ChainChangedHandler) (func(), error) {
	if event != EventChainChanged {
		return nil, NewProviderError(CodeUnsupportedMethod, "event %s is not supported", event)
	}
	return p.events.Subscribe(handler)
}

// ===== 后端与签名 =====

// Backend 当前网络的后端，首次使用时拨号
// 拨号期间不持锁；期间网络被切换则按新网络重拨
func (p *KeystoreProvider) Backend(ctx context.Context) (transport.Backend, error) {
	for {
		p.mu.Lock()
		if p.backend != nil {
			backend := p.backend
			p.mu.Unlock()
			return backend, nil
		}
		selected := p.selected
		network := p.networks[selected]
		p.mu.Unlock()

		backend, err := p.dialer(ctx, network)
		if err != nil {
			return nil, &ProviderError{Code: CodeDisconnected, Message: fmt.Sprintf("connect %s: %v", network.Name, err)}
		}

		p.mu.Lock()
		switch {
		case p.selected != selected:
			p.mu.Unlock()
			backend.Close()
			continue
		case p.backend != nil:
			// 并发拨号已先完成
			existing := p.backend
			p.mu.Unlock()
			backend.Close()
			return existing, nil
		}
		p.backend = backend
		p.mu.Unlock()
		return backend, nil
	}
}

// Transactor 已授权账户在当前网络的签名选项
func (p *KeystoreProvider) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	if !p.isAuthorized(account) {
		return nil, NewProviderError(CodeUnauthorized, "account %s is not authorized", account.Hex())
	}

	p.mu.Lock()
	chainID := new(big.Int).Set(p.networks[p.selected].ChainID)
	p.mu.Unlock()

	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, accounts.Account{Address: account}, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Close 关闭当前后端
func (p *KeystoreProvider) Close() {
	p.mu.Lock()
	backend := p.backend
	p.backend = nil
	p.mu.Unlock()

	if backend != nil {
		backend.Close()
	}
}
