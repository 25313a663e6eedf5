package contract_test

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/internal/testutil"
)

func TestEmbeddedABIs(t *testing.T) {
	dao := contract.DAOABI()
	for _, name := range []string{
		contract.MethodCreateProposal,
		contract.MethodExecuteProposal,
		contract.MethodNumProposals,
		contract.MethodProposals,
		contract.MethodVoteOnProposal,
		contract.MethodWithdrawEther,
		contract.MethodOwner,
	} {
		_, ok := dao.Methods[name]
		assert.True(t, ok, name)
	}
	assert.Len(t, dao.Constructor.Inputs, 2)
	assert.True(t, dao.Constructor.IsPayable())
	assert.True(t, dao.HasReceive())

	proposals := dao.Methods[contract.MethodProposals]
	require.Len(t, proposals.Outputs, 5)
	assert.Equal(t, "nftTokenId", proposals.Outputs[0].Name)
	assert.Equal(t, "executed", proposals.Outputs[4].Name)

	_, ok := contract.NFTABI().Methods[contract.MethodBalanceOf]
	assert.True(t, ok)
	_, ok = contract.MarketplaceABI().Methods[contract.MethodPurchase]
	assert.True(t, ok)
}

func TestParseArtifact(t *testing.T) {
	data := []byte(`{
		"contractName": "Empty",
		"abi": [{"inputs":[],"name":"ping","outputs":[],"stateMutability":"nonpayable","type":"function"}],
		"bytecode": "0x6080"
	}`)

	a, err := contract.ParseArtifact(data)
	require.NoError(t, err)
	assert.Equal(t, "Empty", a.ContractName)
	assert.Equal(t, []byte{0x60, 0x80}, a.Bytecode)
	_, ok := a.ABI.Methods["ping"]
	assert.True(t, ok)

	_, err = contract.ParseArtifact([]byte(`{"contractName":"NoABI"}`))
	assert.ErrorIs(t, err, contract.ErrInvalidArtifact)

	_, err = contract.ParseArtifact([]byte(`{"abi":[],"bytecode":"0xzz"}`))
	assert.Error(t, err)

	_, err = contract.ParseArtifact([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadArtifact(t *testing.T) {
	dir := t.TempDir()

	withCode := filepath.Join(dir, "Market.json")
	require.NoError(t, os.WriteFile(withCode, []byte(`{"contractName":"FakeNFTMarketplace","abi":[],"bytecode":"0x608060405234"}`), 0o600))
	a, err := contract.LoadArtifact(withCode)
	require.NoError(t, err)
	assert.Len(t, a.Bytecode, 6)

	abiOnly := filepath.Join(dir, "AbiOnly.json")
	require.NoError(t, os.WriteFile(abiOnly, []byte(`{"contractName":"X","abi":[],"bytecode":"0x"}`), 0o600))
	_, err = contract.LoadArtifact(abiOnly)
	assert.ErrorIs(t, err, contract.ErrInvalidArtifact)

	_, err = contract.LoadArtifact(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

type ctxKey struct{}

func TestHandle_CallAndTransact(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)

	handle, err := contract.NewHandle(fx.DAO, contract.DAOABI(), fx.Chain)
	require.NoError(t, err)
	assert.Equal(t, fx.DAO, handle.Address())

	out, err := handle.Call(ctx, fx.Member, contract.MethodNumProposals)
	require.NoError(t, err)
	assert.Equal(t, 0, out[0].(*big.Int).Sign())

	opts := fx.Wallet.KeyedTransactor(fx.Member, testutil.HardhatChainID)
	callerCtx := opts.Context
	txCtx := context.WithValue(ctx, ctxKey{}, "create")
	receipt, err := handle.TransactAndWait(txCtx, opts, contract.MethodCreateProposal, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, callerCtx, opts.Context, "caller options untouched")
	assert.Nil(t, opts.Context.Value(ctxKey{}))

	out, err = handle.Call(ctx, fx.Member, contract.MethodNumProposals)
	require.NoError(t, err)
	assert.Equal(t, "1", out[0].(*big.Int).String())

	// 估算阶段的回滚直接返回
	_, err = handle.Transact(ctx, opts, contract.MethodExecuteProposal, big.NewInt(0))
	assert.ErrorContains(t, err, testutil.ReasonDeadlineNotReached)
}

func TestHandle_MinedFailure(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)

	handle, err := contract.NewHandle(fx.DAO, contract.DAOABI(), fx.Chain)
	require.NoError(t, err)

	opts := fx.Wallet.KeyedTransactor(fx.Member, testutil.HardhatChainID)
	opts.GasLimit = 200_000
	receipt, err := handle.TransactAndWait(ctx, opts, contract.MethodWithdrawEther)
	require.NoError(t, err, "deployer is owner")
	assert.Equal(t, uint64(1), receipt.Status)

	other := fx.Wallet.NewAccount()
	fx.Chain.Fund(other, big.NewInt(params.Ether))
	otherOpts := fx.Wallet.KeyedTransactor(other, testutil.HardhatChainID)
	otherOpts.GasLimit = 200_000
	receipt, err = handle.TransactAndWait(ctx, otherOpts, contract.MethodWithdrawEther)
	assert.ErrorIs(t, err, contract.ErrTransactionFailed)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(0), receipt.Status)
}

func TestHandle_NoCode(t *testing.T) {
	chain := testutil.NewChain(testutil.HardhatChainID)
	handle, err := contract.NewHandle(common.HexToAddress("0xdead"), contract.DAOABI(), chain)
	require.NoError(t, err)

	_, err = handle.Call(context.Background(), common.Address{}, contract.MethodNumProposals)
	assert.Error(t, err)

	_, err = contract.NewHandle(common.Address{}, contract.DAOABI(), nil)
	assert.ErrorIs(t, err, contract.ErrNilBackend)
}
