package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/cryptodevs/daogate/client"
	"github.com/cryptodevs/daogate/client/core/builder"
	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/client/core/deploy"
)

var deployFlags struct {
	MarketplaceArtifact string
	DAOArtifact         string
	NFT                 string
	Funding             string
	Save                bool
}

// deployCmd 部署市场与 DAO
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "部署 FakeNFTMarketplace 与 CryptoDevsDAO",
	Long: `先部署 FakeNFTMarketplace，再以 (市场地址, NFT 集合地址) 部署 CryptoDevsDAO 并转入初始资金。

构件为 Hardhat 编译输出的 JSON 文件（包含 abi 与 bytecode）。
--save 会把部署得到的地址写回当前 profile。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deployFlags.MarketplaceArtifact == "" || deployFlags.DAOArtifact == "" {
			return errors.New("--marketplace-artifact 与 --dao-artifact 必须指定")
		}
		market, err := contract.LoadArtifact(deployFlags.MarketplaceArtifact)
		if err != nil {
			return err
		}
		daoArtifact, err := contract.LoadArtifact(deployFlags.DAOArtifact)
		if err != nil {
			return err
		}
		funding, err := builder.ParseEther(deployFlags.Funding)
		if err != nil {
			return fmt.Errorf("--funding: %w", err)
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			profile := c.Profile()
			nft := deployFlags.NFT
			if nft == "" {
				nft = profile.NFTAddress
			}
			if !common.IsHexAddress(nft) {
				return fmt.Errorf("invalid nft collection address %q (use --nft or nft_address)", nft)
			}

			d, err := c.Deployer(ctx)
			if err != nil {
				return err
			}
			res, err := d.Run(ctx, deploy.Request{
				Marketplace:   market,
				DAO:           daoArtifact,
				NFTCollection: common.HexToAddress(nft),
				Funding:       funding.Wei(),
			})
			if err != nil {
				return err
			}

			if deployFlags.Save {
				profile.MarketplaceAddress = res.Marketplace.Hex()
				profile.DAOAddress = res.DAO.Hex()
				profile.NFTAddress = common.HexToAddress(nft).Hex()
				if err := profileMgr.SaveProfile(profile); err != nil {
					return fmt.Errorf("保存 profile 失败: %w", err)
				}
				formatter.PrintSuccess(fmt.Sprintf("地址已写入 profile '%s'", profile.Name))
			}
			return formatter.Print(res)
		})
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployFlags.MarketplaceArtifact, "marketplace-artifact", "", "FakeNFTMarketplace 构件 JSON")
	deployCmd.Flags().StringVar(&deployFlags.DAOArtifact, "dao-artifact", "", "CryptoDevsDAO 构件 JSON")
	deployCmd.Flags().StringVar(&deployFlags.NFT, "nft", "", "CryptoDevs NFT 集合地址 (默认: profile 的 nft_address)")
	deployCmd.Flags().StringVar(&deployFlags.Funding, "funding", deploy.DefaultFunding, "DAO 初始资金 (ether)")
	deployCmd.Flags().BoolVar(&deployFlags.Save, "save", false, "把部署地址写回当前 profile")
}
