package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/dao"
	"github.com/cryptodevs/daogate/client/core/output"
)

// proposalCmd 提案命令
var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "DAO 提案",
	Long:  "创建、查询、投票与执行 CryptoDevsDAO 提案",
}

// proposalCountCmd 提案总数
var proposalCountCmd = &cobra.Command{
	Use:   "count",
	Short: "提案总数",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			n, err := gw.GetNumProposals(ctx)
			if err != nil {
				return err
			}
			return formatter.Print(map[string]interface{}{"count": n})
		})
	},
}

// proposalListCmd 全部提案
var proposalListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部提案",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			raw, err := gw.GetNumProposals(ctx)
			if err != nil {
				return err
			}
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("proposal count %q: %w", raw, err)
			}
			proposals, err := gw.FetchAllProposals(ctx, n)
			if err != nil {
				return err
			}
			return formatter.Print(proposalViews(proposals))
		})
	},
}

// proposalShowCmd 单个提案
var proposalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "显示提案",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			p, err := gw.FetchProposal(ctx, id)
			if err != nil {
				return err
			}
			return formatter.Print(proposalViews([]*dao.Proposal{p})[0])
		})
	},
}

// proposalCreateCmd 创建提案
var proposalCreateCmd = &cobra.Command{
	Use:   "create <nftTokenId>",
	Short: "创建购买 NFT 的提案",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := dao.ParseTokenID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			hash, err := gw.CreateProposal(ctx, tokenID)
			if err != nil {
				return err
			}
			return printTx("提案已创建", hash)
		})
	},
}

// proposalVoteCmd 投票
var proposalVoteCmd = &cobra.Command{
	Use:   "vote <id> <YAY|NAY>",
	Short: "对提案投票",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		vote, err := dao.ParseVote(args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			hash, err := gw.VoteOnProposal(ctx, id, vote)
			if err != nil {
				return err
			}
			return printTx(fmt.Sprintf("已投票 %s", vote), hash)
		})
	},
}

// proposalExecuteCmd 执行提案
var proposalExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "执行已过截止时间的提案",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			hash, err := gw.ExecuteProposal(ctx, id)
			if err != nil {
				return err
			}
			return printTx("提案已执行", hash)
		})
	},
}

func init() {
	proposalCmd.AddCommand(proposalCountCmd)
	proposalCmd.AddCommand(proposalListCmd)
	proposalCmd.AddCommand(proposalShowCmd)
	proposalCmd.AddCommand(proposalCreateCmd)
	proposalCmd.AddCommand(proposalVoteCmd)
	proposalCmd.AddCommand(proposalExecuteCmd)
}

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q", s)
	}
	return id, nil
}

// proposalView 输出视图，带上是否仍可投票
type proposalView struct {
	*dao.Proposal
	Active bool `json:"active"`
}

func proposalViews(proposals []*dao.Proposal) []proposalView {
	now := time.Now()
	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, proposalView{Proposal: p, Active: p.Active(now)})
	}
	return views
}

func printTx(message string, hash common.Hash) error {
	formatter.PrintSuccess(message)
	return formatter.Print(output.NewSuccessOutput(map[string]interface{}{"txHash": hash.Hex()}, message))
}
