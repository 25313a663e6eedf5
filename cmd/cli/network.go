package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/transport"
)

// networkCmd 网络命令
var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "网络查看与切换",
}

// networkShowCmd 当前网络
var networkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示当前网络",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			name, err := c.Gateway().GetNetwork(ctx)
			if err != nil {
				return err
			}
			return formatter.Print(map[string]interface{}{"network": name})
		})
	},
}

// networkSwitchCmd 切换网络
var networkSwitchCmd = &cobra.Command{
	Use:   "switch <chainId>",
	Short: "切换到指定链",
	Long:  "请求钱包切换到 chainId（0x 十六进制，如 0xaa36a7）；链必须在 profile 的 networks 中",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, err := transport.NormalizeChainID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := gw.SwitchNetwork(ctx, chainID); err != nil {
				return err
			}
			name, err := gw.GetNetwork(ctx)
			if err != nil {
				return err
			}
			return formatter.Print(map[string]interface{}{"chainId": chainID, "network": name})
		})
	},
}

// networkWatchCmd 交互式切换并打印 chainChanged 事件
var networkWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "监听链切换",
	Long:  "订阅 chainChanged 事件；从标准输入逐行读取 chainId 并请求切换，Ctrl+C 或 EOF 退出",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getClient()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := commandContext(cmd, 0)
		defer cancel()

		gw := c.Gateway()
		names := client.Networks(c.Profile())
		unsubscribe, err := gw.OnChainChanged(func(chainID string) {
			_ = formatter.Print(map[string]interface{}{
				"event":   "chainChanged",
				"chainId": chainID,
				"network": names.Name(chainID),
			})
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		lines := scanLines(ctx, os.Stdin)

		formatter.PrintInfo("输入 chainId 切换网络，Ctrl+C 退出")
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if line == "" {
					continue
				}
				if err := gw.SwitchNetwork(ctx, line); err != nil {
					formatter.PrintError(fmt.Errorf("切换失败: %w", err))
				}
			}
		}
	},
}

func init() {
	networkCmd.AddCommand(networkShowCmd)
	networkCmd.AddCommand(networkSwitchCmd)
	networkCmd.AddCommand(networkWatchCmd)
}

// scanLines 逐行读取 r；ctx 取消或读到 EOF 时关闭通道
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
