package deploy_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/client/core/deploy"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	"github.com/cryptodevs/daogate/internal/testutil"
)

type deployEnv struct {
	chain    *testutil.Chain
	deployer common.Address
	logs     *observer.ObservedLogs
	d        *deploy.Deployer
}

func newDeployEnv(t *testing.T, balance *big.Int) *deployEnv {
	t.Helper()
	chain := testutil.NewChain(testutil.HardhatChainID)
	chain.RegisterStandardContracts(testutil.DefaultNFTPrice)

	w := testutil.NewWallet(chain)
	account := w.NewAccount()
	if balance != nil {
		chain.Fund(account, balance)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	d := deploy.New(chain, w.KeyedTransactor(account, testutil.HardhatChainID), log.FromZap(zap.New(core)))
	return &deployEnv{chain: chain, deployer: account, logs: logs, d: d}
}

func TestRun_DeploysMarketplaceThenFundedDAO(t *testing.T) {
	ctx := context.Background()
	env := newDeployEnv(t, big.NewInt(params.Ether))

	res, err := env.d.Run(ctx, deploy.Request{
		Marketplace:   testutil.MarketplaceArtifact(),
		DAO:           testutil.DAOArtifact(),
		NFTCollection: testutil.NFTAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.001", res.Funding)
	assert.NotEqual(t, res.Marketplace, res.DAO)
	assert.NotEqual(t, common.Hash{}, res.MarketplaceTx)
	assert.NotEqual(t, common.Hash{}, res.DAOTx)

	// 构造参数为 (市场, NFT 集合)
	dao, ok := env.chain.ContractAt(res.DAO).(*testutil.DAO)
	require.True(t, ok)
	assert.Equal(t, res.Marketplace, dao.Marketplace())
	assert.Equal(t, testutil.NFTAddress, dao.NFT())
	_, ok = env.chain.ContractAt(res.Marketplace).(*testutil.Marketplace)
	assert.True(t, ok)

	treasury, err := env.chain.BalanceAt(ctx, res.DAO, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, big.NewInt(params.Ether/1000).Cmp(treasury), treasury.String())

	handle, err := contract.NewHandle(res.DAO, contract.DAOABI(), env.chain)
	require.NoError(t, err)
	out, err := handle.Call(ctx, env.deployer, contract.MethodOwner)
	require.NoError(t, err)
	assert.Equal(t, env.deployer, out[0])

	entries := env.logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "FakeNFTMarketplace deployed to: "+res.Marketplace.Hex(), entries[0].Message)
	assert.Equal(t, "CryptoDevsDAO deployed to: "+res.DAO.Hex(), entries[1].Message)
}

func TestRun_CustomFunding(t *testing.T) {
	env := newDeployEnv(t, big.NewInt(params.Ether))
	funding := big.NewInt(params.Ether / 2)

	res, err := env.d.Run(context.Background(), deploy.Request{
		Marketplace:   testutil.MarketplaceArtifact(),
		DAO:           testutil.DAOArtifact(),
		NFTCollection: testutil.NFTAddress,
		Funding:       funding,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.5", res.Funding)

	treasury, err := env.chain.BalanceAt(context.Background(), res.DAO, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, funding.Cmp(treasury), treasury.String())
}

func TestRun_InsufficientFundsStopsAfterMarketplace(t *testing.T) {
	env := newDeployEnv(t, nil)

	res, err := env.d.Run(context.Background(), deploy.Request{
		Marketplace:   testutil.MarketplaceArtifact(),
		DAO:           testutil.DAOArtifact(),
		NFTCollection: testutil.NFTAddress,
	})
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "deploy dao")
	assert.ErrorContains(t, err, "insufficient funds")

	entries := env.logs.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "FakeNFTMarketplace deployed to: ")
}

func TestRun_Validation(t *testing.T) {
	env := newDeployEnv(t, big.NewInt(params.Ether))
	ctx := context.Background()

	_, err := env.d.Run(ctx, deploy.Request{DAO: testutil.DAOArtifact(), NFTCollection: testutil.NFTAddress})
	assert.ErrorIs(t, err, deploy.ErrMissingArtifact)

	_, err = env.d.Run(ctx, deploy.Request{Marketplace: testutil.MarketplaceArtifact(), DAO: testutil.DAOArtifact()})
	assert.ErrorIs(t, err, deploy.ErrMissingNFT)

	_, err = env.d.Run(ctx, deploy.Request{
		Marketplace:   testutil.MarketplaceArtifact(),
		DAO:           testutil.DAOArtifact(),
		NFTCollection: testutil.NFTAddress,
		Funding:       big.NewInt(-1),
	})
	assert.Error(t, err)

	noCode := testutil.MarketplaceArtifact()
	noCode.Bytecode = nil
	_, err = env.d.Run(ctx, deploy.Request{Marketplace: noCode, DAO: testutil.DAOArtifact(), NFTCollection: testutil.NFTAddress})
	assert.ErrorIs(t, err, contract.ErrInvalidArtifact)
	assert.Empty(t, env.logs.All())
}
