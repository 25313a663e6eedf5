// Package config provides profile management functionality for client configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptodevs/daogate/client/core/transport"
)

// DefaultProfile 首次运行时的当前 profile
const DefaultProfile = "localhost"

// ErrProfileNotFound profile 不存在
var ErrProfileNotFound = errors.New("profile not found")

// Profile CLI配置Profile
type Profile struct {
	Name    string `json:"name"`     // Profile名称: localhost/sepolia
	ChainID string `json:"chain_id"` // 初始链ID（0x 十六进制或十进制）

	// 钱包可切换的网络
	Networks []NetworkProfile `json:"networks"`

	// 合约地址
	DAOAddress         string `json:"dao_address,omitempty"`
	NFTAddress         string `json:"nft_address,omitempty"`
	MarketplaceAddress string `json:"marketplace_address,omitempty"`

	// 钱包
	KeystorePath   string `json:"keystore_path"`             // Keystore目录
	DefaultAccount string `json:"default_account,omitempty"` // 空表示第一个账户
	PassphraseEnv  string `json:"passphrase_env,omitempty"`  // 口令环境变量名，设置后不再交互提示

	Timeout Duration `json:"timeout"` // 单条命令超时
}

// NetworkProfile 网络配置
type NetworkProfile struct {
	ChainID   string                     `json:"chain_id"`
	Name      string                     `json:"name"`
	Endpoints []transport.EndpointConfig `json:"endpoints"` // 按优先级排序
}

// Duration 时间duration(支持JSON序列化)
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(dur)
	return nil
}

// ===== 解析 =====

// InitialChainID 解析 chain_id，空值取第一个网络
func (p *Profile) InitialChainID() (*big.Int, error) {
	raw := p.ChainID
	if raw == "" && len(p.Networks) > 0 {
		raw = p.Networks[0].ChainID
	}
	id, err := transport.ParseChainID(raw)
	if err != nil {
		return nil, fmt.Errorf("profile %s: chain_id: %w", p.Name, err)
	}
	return id, nil
}

// Addresses 解析合约地址，空字段返回零地址
func (p *Profile) Addresses() (dao, nft, marketplace common.Address, err error) {
	fields := []struct {
		key   string
		value string
		out   *common.Address
	}{
		{"dao_address", p.DAOAddress, &dao},
		{"nft_address", p.NFTAddress, &nft},
		{"marketplace_address", p.MarketplaceAddress, &marketplace},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return dao, nft, marketplace, fmt.Errorf("profile %s: invalid %s %q", p.Name, f.key, f.value)
		}
		*f.out = common.HexToAddress(f.value)
	}
	return dao, nft, marketplace, nil
}

// Account 解析 default_account，空值返回零地址
func (p *Profile) Account() (common.Address, error) {
	if p.DefaultAccount == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(p.DefaultAccount) {
		return common.Address{}, fmt.Errorf("profile %s: invalid default_account %q", p.Name, p.DefaultAccount)
	}
	return common.HexToAddress(p.DefaultAccount), nil
}

// Passphrase 从 passphrase_env 读取口令
func (p *Profile) Passphrase() string {
	if p.PassphraseEnv == "" {
		return ""
	}
	return os.Getenv(p.PassphraseEnv)
}

// ===== 管理器 =====

// ProfileManager Profile管理器
type ProfileManager struct {
	configDir      string
	currentProfile string
	profiles       map[string]*Profile
}

// NewProfileManager 创建Profile管理器
func NewProfileManager(configDir string) (*ProfileManager, error) {
	if configDir == "" {
		// 默认配置目录: ~/.daogate
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		configDir = filepath.Join(homeDir, ".daogate")
	}

	// 确保配置目录存在
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	pm := &ProfileManager{
		configDir: configDir,
		profiles:  make(map[string]*Profile),
	}

	if err := pm.loadProfiles(); err != nil {
		return nil, err
	}

	if err := pm.loadCurrentProfile(); err != nil {
		pm.currentProfile = DefaultProfile
	}

	return pm, nil
}

// ConfigDir 配置目录
func (pm *ProfileManager) ConfigDir() string {
	return pm.configDir
}

// loadProfiles 加载所有profiles
func (pm *ProfileManager) loadProfiles() error {
	profilesDir := filepath.Join(pm.configDir, "profiles")

	// 如果profiles目录不存在,创建默认profiles
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		if err := os.MkdirAll(profilesDir, 0700); err != nil {
			return fmt.Errorf("create profiles dir: %w", err)
		}
		if err := pm.createDefaultProfiles(); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(profilesDir)
	if err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isJSONFile(entry.Name()) {
			continue
		}

		profile, err := pm.loadProfile(filepath.Join(profilesDir, entry.Name()))
		if err != nil {
			// 记录错误但继续
			fmt.Fprintf(os.Stderr, "Warning: failed to load profile %s: %v\n", entry.Name(), err)
			continue
		}

		pm.profiles[profile.Name] = profile
	}

	return nil
}

// loadProfile 加载单个profile
func (pm *ProfileManager) loadProfile(filePath string) (*Profile, error) {
	//nolint:gosec // G304: filePath 来自配置目录，路径安全可控
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(filePath), ".json")
	}

	pm.applyDefaults(&profile)
	return &profile, nil
}

func (pm *ProfileManager) applyDefaults(profile *Profile) {
	if profile.KeystorePath == "" {
		profile.KeystorePath = filepath.Join(pm.configDir, "keystores", profile.Name)
	}
	if profile.Timeout == 0 {
		profile.Timeout = Duration(2 * time.Minute)
	}
}

// loadCurrentProfile 加载当前profile
func (pm *ProfileManager) loadCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	//nolint:gosec // G304: currentFile 来自配置目录，路径安全可控
	data, err := os.ReadFile(currentFile)
	if err != nil {
		return err
	}

	pm.currentProfile = strings.TrimSpace(string(data))
	return nil
}

// saveCurrentProfile 保存当前profile
func (pm *ProfileManager) saveCurrentProfile() error {
	currentFile := filepath.Join(pm.configDir, "current")
	return os.WriteFile(currentFile, []byte(pm.currentProfile), 0600)
}

// DefaultProfiles 首次运行生成的 profiles
func DefaultProfiles() []*Profile {
	return []*Profile{
		{
			Name:    "localhost",
			ChainID: "0x7a69",
			Networks: []NetworkProfile{
				{
					ChainID: "0x7a69",
					Name:    "Hardhat Network",
					Endpoints: []transport.EndpointConfig{
						{Name: "hardhat", Priority: 1, URL: "http://127.0.0.1:8545"},
					},
				},
			},
			Timeout: Duration(time.Minute),
		},
		{
			Name:    "sepolia",
			ChainID: "0xaa36a7",
			Networks: []NetworkProfile{
				{
					ChainID: "0xaa36a7",
					Name:    "Sepolia Testnet",
					Endpoints: []transport.EndpointConfig{
						{Name: "sepolia-primary", Priority: 1, URL: "https://ethereum-sepolia-rpc.publicnode.com"},
						{Name: "sepolia-backup", Priority: 2, URL: "https://rpc.sepolia.org"},
					},
				},
			},
			PassphraseEnv: "DAOGATE_PASSPHRASE",
			Timeout:       Duration(5 * time.Minute),
		},
	}
}

// createDefaultProfiles 创建默认profiles
func (pm *ProfileManager) createDefaultProfiles() error {
	for _, profile := range DefaultProfiles() {
		if err := pm.SaveProfile(profile); err != nil {
			return err
		}
	}

	pm.currentProfile = DefaultProfile
	return pm.saveCurrentProfile()
}

// GetProfile 获取指定profile
func (pm *ProfileManager) GetProfile(name string) (*Profile, error) {
	profile, exists := pm.profiles[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return profile, nil
}

// GetCurrentProfile 获取当前profile
func (pm *ProfileManager) GetCurrentProfile() (*Profile, error) {
	return pm.GetProfile(pm.currentProfile)
}

// CurrentName 当前profile名
func (pm *ProfileManager) CurrentName() string {
	return pm.currentProfile
}

// ListProfiles 列出所有profiles（按名称排序）
func (pm *ProfileManager) ListProfiles() []string {
	names := make([]string, 0, len(pm.profiles))
	for name := range pm.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveProfile 保存profile
func (pm *ProfileManager) SaveProfile(profile *Profile) error {
	if profile.Name == "" {
		return errors.New("profile name is required")
	}
	pm.applyDefaults(profile)

	profilePath := filepath.Join(pm.configDir, "profiles", profile.Name+".json")

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := os.WriteFile(profilePath, data, 0600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	pm.profiles[profile.Name] = profile
	return nil
}

// SwitchProfile 切换profile
func (pm *ProfileManager) SwitchProfile(name string) error {
	if _, exists := pm.profiles[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	pm.currentProfile = name
	return pm.saveCurrentProfile()
}

// DeleteProfile 删除profile
func (pm *ProfileManager) DeleteProfile(name string) error {
	// 不能删除当前profile
	if name == pm.currentProfile {
		return fmt.Errorf("cannot delete current profile")
	}

	profilePath := filepath.Join(pm.configDir, "profiles", name+".json")
	if err := os.Remove(profilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile file: %w", err)
	}

	delete(pm.profiles, name)
	return nil
}

// isJSONFile 检查是否是JSON文件
func isJSONFile(name string) bool {
	return filepath.Ext(name) == ".json"
}
