package testutil

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"

	"github.com/cryptodevs/daogate/client/core/contract"
)

// HardhatChainID 本地 Hardhat 链ID
var HardhatChainID = big.NewInt(31337)

// NFTAddress 会员 NFT 的固定地址
var NFTAddress = common.HexToAddress("0x00000000000000000000000000000000000Df001")

// DefaultFunding DAO 部署时注入的金额 0.001 ether
var DefaultFunding = big.NewInt(params.Ether / 1000)

// Fixture 已部署市场与 DAO 的内存链
type Fixture struct {
	Chain       *Chain
	Wallet      *Wallet
	NFT         *MembershipNFT
	Member      common.Address // 持有一枚会员 NFT，已授权
	Marketplace common.Address
	DAO         common.Address
	Funding     *big.Int
}

// NewFixture 部署市场与 DAO，并准备一个已连接的会员账户
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()

	chain := NewChain(HardhatChainID)
	chain.RegisterStandardContracts(DefaultNFTPrice)

	nft := NewMembershipNFT()
	chain.Install(NFTAddress, NFTBytecode, nft)

	w := NewWallet(chain)
	member := w.NewAccount()
	chain.Fund(member, big.NewInt(params.Ether))
	nft.Mint(member)
	w.Authorize(member)

	market, err := contract.Deploy(ctx, chain, w.KeyedTransactor(member, HardhatChainID), MarketplaceArtifact())
	require.NoError(t, err)

	opts := w.KeyedTransactor(member, HardhatChainID)
	opts.Value = new(big.Int).Set(DefaultFunding)
	dao, err := contract.Deploy(ctx, chain, opts, DAOArtifact(), market.Address, NFTAddress)
	require.NoError(t, err)

	return &Fixture{
		Chain:       chain,
		Wallet:      w,
		NFT:         nft,
		Member:      member,
		Marketplace: market.Address,
		DAO:         dao.Address,
		Funding:     new(big.Int).Set(DefaultFunding),
	}
}

// MarketplaceContract 市场合约实例
func (f *Fixture) MarketplaceContract() *Marketplace {
	return f.Chain.ContractAt(f.Marketplace).(*Marketplace)
}
