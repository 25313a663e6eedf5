package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/config"
	"github.com/cryptodevs/daogate/client/core/output"
	"github.com/cryptodevs/daogate/client/core/wallet"
	logconfig "github.com/cryptodevs/daogate/internal/config/log"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	logiface "github.com/cryptodevs/daogate/pkg/interfaces/infrastructure/log"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	Profile      string // Profile名称
	ConfigDir    string // 配置目录
	OutputFormat string // 输出格式
	Silent       bool   // 静默模式
	Verbose      bool   // 详细模式
	LogFile      string // 日志文件
}

var (
	globalFlags GlobalFlags
	profileMgr  *config.ProfileManager
	formatter   *output.Formatter
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "daogate",
	Short: "CryptoDevs DAO 命令行客户端",
	Long: `daogate - CryptoDevs DAO 合约网关

通过本地 keystore 钱包与 CryptoDevsDAO 合约交互:
- 连接钱包、查看与切换网络
- 查询 DAO 金库与会员 NFT 余额
- 创建、查询、投票、执行提案
- 部署 FakeNFTMarketplace 与 CryptoDevsDAO

结果输出到 stdout，提示与日志输出到 stderr。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		profileMgr, err = config.NewProfileManager(globalFlags.ConfigDir)
		if err != nil {
			return fmt.Errorf("初始化配置: %w", err)
		}

		format, err := output.ParseFormat(globalFlags.OutputFormat)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, os.Stdout)
		formatter.SetSilent(globalFlags.Silent)

		if err := initLogger(); err != nil {
			return err
		}
		formatter.SetLogger(log.GetLogger())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.GetLogger().Sync()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "", "使用指定的Profile (默认使用当前Profile)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigDir, "config-dir", "", "配置目录 (默认: ~/.daogate)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "json", "输出格式: json|pretty|table|text")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Silent, "silent", false, "静默模式 (仅输出结果)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细输出")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "日志文件路径 (JSON，按大小轮转)")

	// 添加子命令
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(treasuryCmd)
	rootCmd.AddCommand(membershipCmd)
	rootCmd.AddCommand(proposalCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(profileCmd)
}

// initLogger 按全局标志替换全局日志记录器
func initLogger() error {
	level := logiface.InfoLevel
	if globalFlags.Verbose {
		level = logiface.DebugLevel
	}
	logger, err := log.New(logconfig.New(&logconfig.LogOptions{
		Level:     string(level),
		ToConsole: !globalFlags.Silent,
		FilePath:  globalFlags.LogFile,
	}))
	if err != nil {
		return fmt.Errorf("初始化日志: %w", err)
	}
	log.SetLogger(logger)
	return nil
}

// currentProfile --profile 指定的或当前的 profile
func currentProfile() (*config.Profile, error) {
	var (
		profile *config.Profile
		err     error
	)
	if globalFlags.Profile != "" {
		profile, err = profileMgr.GetProfile(globalFlags.Profile)
	} else {
		profile, err = profileMgr.GetCurrentProfile()
	}
	if err != nil {
		return nil, fmt.Errorf("获取Profile: %w", err)
	}
	return profile, nil
}

// getClient 按 profile 创建 DAO 客户端
func getClient() (*client.Client, error) {
	profile, err := currentProfile()
	if err != nil {
		return nil, err
	}
	return client.New(client.Options{
		Profile:  profile,
		Prompter: wallet.NewTerminalPrompter(),
		Notifier: formatter,
		Logger:   log.GetLogger(),
	})
}

// commandContext 支持 Ctrl+C 取消；timeout 为 0 时不设超时
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// withClient 创建客户端并在 profile 超时内执行 fn
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := commandContext(cmd, time.Duration(c.Profile().Timeout))
	defer cancel()
	return fn(ctx, c)
}
