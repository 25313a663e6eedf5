package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/builder"
)

// treasuryCmd DAO 金库余额
var treasuryCmd = &cobra.Command{
	Use:   "treasury",
	Short: "DAO 金库余额",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			wei, err := gw.GetDaoTreasuryBalance(ctx)
			if err != nil {
				return err
			}
			amount, err := builder.NewAmountFromWei(wei)
			if err != nil {
				return err
			}
			return formatter.Print(map[string]interface{}{
				"dao":   gw.Addresses().DAO.Hex(),
				"wei":   amount.StringWei(),
				"ether": amount.String(),
			})
		})
	},
}

// membershipCmd 会员 NFT 余额
var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "连接账户持有的会员 NFT 数量",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			gw := c.Gateway()
			if err := connect(ctx, gw); err != nil {
				return err
			}
			balance, err := gw.GetUserMembershipBalance(ctx)
			if err != nil {
				return err
			}
			return formatter.Print(map[string]interface{}{
				"nft":     gw.Addresses().NFT.Hex(),
				"balance": balance,
			})
		})
	},
}
