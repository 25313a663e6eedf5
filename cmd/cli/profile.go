package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client/core/config"
	"github.com/cryptodevs/daogate/client/core/transport"
)

// profileCmd Profile管理命令
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile管理",
	Long:  "管理配置Profile,支持多环境切换(localhost/sepolia)",
}

// profileListCmd 列出所有profiles
var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有profiles",
	Long:  "列出所有可用的配置Profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles := profileMgr.ListProfiles()
		currentProfile, _ := profileMgr.GetCurrentProfile()

		var result []map[string]interface{}
		for _, name := range profiles {
			profile, err := profileMgr.GetProfile(name)
			if err != nil {
				continue
			}

			isCurrent := (currentProfile != nil && currentProfile.Name == name)

			result = append(result, map[string]interface{}{
				"name":     name,
				"chain_id": profile.ChainID,
				"current":  isCurrent,
			})
		}

		return formatter.Print(result)
	},
}

// profileShowCmd 显示profile详情
var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "显示profile详情",
	Long:  "显示指定profile的详细配置(不指定则显示当前profile)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var profile *config.Profile
		var err error

		if len(args) > 0 {
			profile, err = profileMgr.GetProfile(args[0])
		} else {
			profile, err = profileMgr.GetCurrentProfile()
		}

		if err != nil {
			formatter.PrintError(err)
			return err
		}

		return formatter.Print(profile)
	},
}

// profileSwitchCmd 切换profile
var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "切换profile",
	Long:  "切换到指定的配置Profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if err := profileMgr.SwitchProfile(name); err != nil {
			formatter.PrintError(err)
			return err
		}

		formatter.PrintSuccess(fmt.Sprintf("已切换到 profile '%s'", name))

		profile, _ := profileMgr.GetProfile(name)
		return formatter.Print(map[string]interface{}{
			"name":     name,
			"chain_id": profile.ChainID,
		})
	},
}

// profileCurrentCmd 显示当前profile
var profileCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "显示当前profile",
	Long:  "显示当前使用的配置Profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := profileMgr.GetCurrentProfile()
		if err != nil {
			formatter.PrintError(err)
			return err
		}

		return formatter.Print(map[string]interface{}{
			"name":     profile.Name,
			"chain_id": profile.ChainID,
		})
	},
}

var profileCreateFlags struct {
	ChainID     string
	NetworkName string
	RPC         string
	DAO         string
	NFT         string
	Marketplace string
	Account     string
	PassEnv     string
}

// profileCreateCmd 创建新profile
var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "创建新profile",
	Long:  "以单个网络创建新的配置Profile；需要多个网络时编辑 profiles/<name>.json 的 networks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		// 检查是否已存在
		if _, err := profileMgr.GetProfile(name); err == nil {
			return fmt.Errorf("profile '%s' 已存在", name)
		}

		f := profileCreateFlags
		chainID, err := transport.NormalizeChainID(f.ChainID)
		if err != nil {
			return fmt.Errorf("--chain-id: %w", err)
		}
		if f.RPC == "" {
			return fmt.Errorf("--rpc 必须指定")
		}

		profile := &config.Profile{
			Name:    name,
			ChainID: chainID,
			Networks: []config.NetworkProfile{
				{
					ChainID: chainID,
					Name:    f.NetworkName,
					Endpoints: []transport.EndpointConfig{
						{Name: name + "-primary", Priority: 1, URL: f.RPC},
					},
				},
			},
			DAOAddress:         f.DAO,
			NFTAddress:         f.NFT,
			MarketplaceAddress: f.Marketplace,
			DefaultAccount:     f.Account,
			PassphraseEnv:      f.PassEnv,
		}
		if _, _, _, err := profile.Addresses(); err != nil {
			return err
		}
		if _, err := profile.Account(); err != nil {
			return err
		}

		// 保存profile
		if err := profileMgr.SaveProfile(profile); err != nil {
			return fmt.Errorf("保存 profile 失败: %w", err)
		}

		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 创建成功", name))

		return formatter.Print(map[string]interface{}{
			"name":     name,
			"chain_id": chainID,
		})
	},
}

// profileImportCmd 导入profile
var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "导入profile",
	Long:  "从JSON文件导入配置Profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		// 读取文件
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}

		// 解析JSON
		var profile config.Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("解析JSON失败: %w", err)
		}

		// 检查是否已存在
		if _, err := profileMgr.GetProfile(profile.Name); err == nil {
			return fmt.Errorf("profile '%s' 已存在", profile.Name)
		}

		// 保存profile
		if err := profileMgr.SaveProfile(&profile); err != nil {
			return fmt.Errorf("保存 profile 失败: %w", err)
		}

		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 导入成功", profile.Name))

		return formatter.Print(map[string]interface{}{
			"name":     profile.Name,
			"chain_id": profile.ChainID,
		})
	},
}

// profileExportCmd 导出profile
var profileExportCmd = &cobra.Command{
	Use:   "export <name> [file]",
	Short: "导出profile",
	Long:  "将配置Profile导出为JSON文件",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		// 获取profile
		profile, err := profileMgr.GetProfile(name)
		if err != nil {
			return fmt.Errorf("获取 profile 失败: %w", err)
		}

		// 序列化JSON
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化JSON失败: %w", err)
		}

		// 确定输出文件
		outputFile := name + "-profile.json"
		if len(args) > 1 {
			outputFile = args[1]
		}

		// 写入文件
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("写入文件失败: %w", err)
		}

		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 已导出到 %s", name, outputFile))

		return formatter.Print(map[string]interface{}{
			"profile": name,
			"file":    outputFile,
		})
	},
}

// profileDeleteCmd 删除profile
var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "删除profile",
	Long:  "删除指定的配置Profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		// 获取当前profile
		currentProfile, _ := profileMgr.GetCurrentProfile()
		if currentProfile != nil && currentProfile.Name == name {
			return fmt.Errorf("不能删除当前正在使用的 profile")
		}

		// 确认删除
		fmt.Printf("确认删除 profile '%s'? (yes/no): ", name)
		var confirm string
		if _, err := fmt.Scanln(&confirm); err != nil {
			return fmt.Errorf("读取输入失败: %w", err)
		}
		if strings.ToLower(confirm) != "yes" {
			formatter.PrintInfo("取消删除")
			return nil
		}

		// 删除profile
		if err := profileMgr.DeleteProfile(name); err != nil {
			return fmt.Errorf("删除 profile 失败: %w", err)
		}

		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 已删除", name))
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSwitchCmd)
	profileCmd.AddCommand(profileCurrentCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileDeleteCmd)

	profileCreateCmd.Flags().StringVar(&profileCreateFlags.ChainID, "chain-id", "0x7a69", "链ID")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.NetworkName, "network-name", "", "网络显示名")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.RPC, "rpc", "", "JSON-RPC 地址 (http(s):// 或 ws(s)://)")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.DAO, "dao", "", "CryptoDevsDAO 地址")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.NFT, "nft", "", "CryptoDevs NFT 地址")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.Marketplace, "marketplace", "", "FakeNFTMarketplace 地址")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.Account, "account", "", "默认账户 (默认: keystore 中第一个)")
	profileCreateCmd.Flags().StringVar(&profileCreateFlags.PassEnv, "passphrase-env", "", "保存账户口令的环境变量名")
}
