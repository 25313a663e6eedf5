package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/dao"
)

// walletCmd 钱包命令
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "钱包连接",
	Long:  "检查或建立 keystore 钱包连接",
}

// walletCheckCmd 检查已授权账户，不提示输入口令
var walletCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "检查已授权账户",
	Long:  "返回已授权的第一个账户；没有授权时返回空值，不会提示输入口令",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			account, err := c.Gateway().CheckWalletConnection(ctx)
			if err != nil {
				return err
			}
			return formatter.Print(accountView(account))
		})
	},
}

// walletConnectCmd 解锁默认账户
var walletConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "连接钱包",
	Long:  "解锁 profile 的默认账户（passphrase_env 未设置时提示输入口令）",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			account, err := c.Gateway().ConnectWallet(ctx)
			if err != nil {
				return err
			}
			if account != "" {
				formatter.PrintSuccess("钱包已连接")
			}
			return formatter.Print(accountView(account))
		})
	},
}

func init() {
	walletCmd.AddCommand(walletCheckCmd)
	walletCmd.AddCommand(walletConnectCmd)
}

func accountView(account string) map[string]interface{} {
	return map[string]interface{}{
		"account":   account,
		"connected": account != "",
	}
}

// connect 写操作与会员查询前先解锁账户
//
// 没有钱包时网关已给出提示，随后的调用返回 dao.ErrNoProvider。
func connect(ctx context.Context, gw *dao.Gateway) error {
	_, err := gw.ConnectWallet(ctx)
	return err
}
