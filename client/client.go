// Package client 按 profile 组装钱包、DAO 网关与部署器
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/config"
	"github.com/cryptodevs/daogate/client/core/dao"
	"github.com/cryptodevs/daogate/client/core/deploy"
	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/client/core/wallet"
	"github.com/cryptodevs/daogate/client/pkg/ux/ui"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	logiface "github.com/cryptodevs/daogate/pkg/interfaces/infrastructure/log"
)

// Options 客户端组装参数
type Options struct {
	Profile  *config.Profile
	Prompter wallet.Prompter
	Notifier ui.Notifier
	Logger   logiface.Logger
	Dialer   wallet.Dialer // nil 使用 wallet.DialNetwork
}

// Client DAO 客户端 - CLI 的统一入口
// keystore 目录为空时视为没有安装钱包，网关按无钱包处理
type Client struct {
	profile  *config.Profile
	keystore *wallet.KeystoreProvider
	gateway  *dao.Gateway
	logger   logiface.Logger
}

// New 按 profile 创建客户端
func New(opts Options) (*Client, error) {
	if opts.Profile == nil {
		return nil, errors.New("client: profile is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	profile := opts.Profile

	daoAddr, nftAddr, _, err := profile.Addresses()
	if err != nil {
		return nil, err
	}

	c := &Client{profile: profile, logger: logger}

	// 网关的 provider 必须是 nil 接口而不是 nil 指针
	var provider wallet.Provider
	if hasKeys(profile.KeystorePath) {
		ks, err := newKeystoreProvider(profile, opts, logger)
		if err != nil {
			return nil, err
		}
		c.keystore = ks
		provider = ks
	} else {
		logger.Debugf("keystore %s 为空，未启用钱包", profile.KeystorePath)
	}

	c.gateway = dao.New(provider, dao.Addresses{DAO: daoAddr, NFT: nftAddr},
		dao.WithLogger(logger),
		dao.WithNotifier(opts.Notifier),
		dao.WithNetworks(Networks(profile)),
	)
	return c, nil
}

func newKeystoreProvider(profile *config.Profile, opts Options, logger logiface.Logger) (*wallet.KeystoreProvider, error) {
	networks, err := NetworkConfigs(profile)
	if err != nil {
		return nil, err
	}
	chainID, err := profile.InitialChainID()
	if err != nil {
		return nil, err
	}
	account, err := profile.Account()
	if err != nil {
		return nil, err
	}

	ks, err := wallet.NewKeystoreProvider(wallet.KeystoreOptions{
		KeystoreDir:    profile.KeystorePath,
		DefaultAccount: account,
		Networks:       networks,
		ChainID:        chainID,
		Passphrase:     profile.Passphrase(),
		Prompter:       opts.Prompter,
		Dialer:         opts.Dialer,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	return ks, nil
}

// hasKeys keystore 目录中至少有一个可识别的 key 文件
// 与 keystore 扫描规则一致：跳过隐藏文件与编辑器备份，文件内容须带有效 address
func hasKeys(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			continue
		}
		if isKeyFile(filepath.Join(dir, name)) {
			return true
		}
	}
	return false
}

func isKeyFile(path string) bool {
	//nolint:gosec // G304: path 来自 profile 的 keystore 目录
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var key struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return false
	}
	return common.IsHexAddress(key.Address)
}

// NetworkConfigs profile 网络转钱包网络
func NetworkConfigs(profile *config.Profile) ([]wallet.NetworkConfig, error) {
	if len(profile.Networks) == 0 {
		return nil, fmt.Errorf("profile %s: no networks configured", profile.Name)
	}
	out := make([]wallet.NetworkConfig, 0, len(profile.Networks))
	for _, n := range profile.Networks {
		id, err := transport.ParseChainID(n.ChainID)
		if err != nil {
			return nil, fmt.Errorf("profile %s: network %q: %w", profile.Name, n.Name, err)
		}
		out = append(out, wallet.NetworkConfig{ChainID: id, Name: n.Name, Endpoints: n.Endpoints})
	}
	return out, nil
}

// Networks 内置网络表叠加 profile 中命名的网络
func Networks(profile *config.Profile) wallet.Networks {
	merged := make(wallet.Networks, len(wallet.DefaultNetworks)+len(profile.Networks))
	for id, name := range wallet.DefaultNetworks {
		merged[id] = name
	}
	for _, n := range profile.Networks {
		if n.Name == "" {
			continue
		}
		if id, err := transport.NormalizeChainID(n.ChainID); err == nil {
			if _, builtin := merged[id]; !builtin {
				merged[id] = n.Name
			}
		}
	}
	return merged
}

// Profile 当前 profile
func (c *Client) Profile() *config.Profile {
	return c.profile
}

// Gateway DAO 网关
func (c *Client) Gateway() *dao.Gateway {
	return c.gateway
}

// Deployer 以连接的账户在当前网络部署合约，必要时提示解锁
func (c *Client) Deployer(ctx context.Context) (*deploy.Deployer, error) {
	if c.keystore == nil {
		return nil, dao.ErrNoProvider
	}
	account, err := c.gateway.ConnectWallet(ctx)
	if err != nil {
		return nil, err
	}
	if account == "" {
		return nil, dao.ErrNotConnected
	}
	backend, err := c.keystore.Backend(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain backend: %w", err)
	}
	opts, err := c.keystore.Transactor(ctx, common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	return deploy.New(backend, opts, c.logger), nil
}

// Close 关闭钱包后端连接
func (c *Client) Close() {
	if c.keystore != nil {
		c.keystore.Close()
	}
}
