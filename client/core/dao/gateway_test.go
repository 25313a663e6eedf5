package dao_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptodevs/daogate/client/core/contract"
	"github.com/cryptodevs/daogate/client/core/dao"
	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/client/core/wallet"
	"github.com/cryptodevs/daogate/client/pkg/ux/ui"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	"github.com/cryptodevs/daogate/internal/testutil"
)

func newGateway(t *testing.T, fx *testutil.Fixture, opts ...dao.Option) *dao.Gateway {
	t.Helper()
	opts = append([]dao.Option{dao.WithLogger(log.NewNop())}, opts...)
	return dao.New(fx.Wallet, dao.Addresses{DAO: fx.DAO, NFT: testutil.NFTAddress}, opts...)
}

// chainIDProvider 只回答 eth_chainId 的提供者
type chainIDProvider struct {
	chainID string
}

func (p *chainIDProvider) Request(ctx context.Context, args wallet.RequestArguments, result interface{}) error {
	if args.Method == wallet.MethodChainID {
		return wallet.AssignResult(p.chainID, result)
	}
	return wallet.ErrUnsupportedMethod
}

func (p *chainIDProvider) On(string, wallet.ChainChangedHandler) (func(), error) {
	return func() {}, nil
}

func (p *chainIDProvider) Backend(context.Context) (transport.Backend, error) {
	return nil, wallet.ErrDisconnected
}

func (p *chainIDProvider) Transactor(context.Context, common.Address) (*bind.TransactOpts, error) {
	return nil, wallet.ErrUnauthorized
}

// ===== 钱包 =====

func TestGetNetwork_TableLookup(t *testing.T) {
	ctx := context.Background()
	rec := &ui.RecordingNotifier{}

	cases := map[string]string{}
	for id, name := range wallet.DefaultNetworks {
		cases[id] = name
	}
	cases["0x7A69"] = "Hardhat Network"
	cases["0x0aa36a7"] = "Sepolia Testnet"
	cases["0x2a"] = wallet.UnknownNetwork
	cases["not-a-chain"] = wallet.UnknownNetwork

	for chainID, want := range cases {
		t.Run(chainID, func(t *testing.T) {
			p := &chainIDProvider{chainID: chainID}
			g := dao.New(p, dao.Addresses{}, dao.WithLogger(log.NewNop()), dao.WithNotifier(rec))
			got, err := g.GetNetwork(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	assert.Empty(t, rec.Messages())
}

func TestWithNetworksOverridesTable(t *testing.T) {
	p := &chainIDProvider{chainID: "0x2a"}
	g := dao.New(p, dao.Addresses{}, dao.WithLogger(log.NewNop()), dao.WithNetworks(wallet.Networks{"0x2a": "Kovan"}))
	got, err := g.GetNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kovan", got)
}

func TestCheckWalletConnection_NeverPrompts(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(testutil.HardhatChainID)
	w := testutil.NewWallet(chain)
	account := w.NewAccount()

	g := dao.New(w, dao.Addresses{}, dao.WithLogger(log.NewNop()))

	got, err := g.CheckWalletConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Equal(t, 0, w.Prompts())

	got, err = g.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.Hex(), got)
	assert.Equal(t, 1, w.Prompts())

	got, err = g.CheckWalletConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.Hex(), got)
	assert.Equal(t, 1, w.Prompts())
}

func TestConnectWallet_UserRejection(t *testing.T) {
	chain := testutil.NewChain(testutil.HardhatChainID)
	w := testutil.NewWallet(chain)
	w.NewAccount()
	w.RejectConnect = true

	g := dao.New(w, dao.Addresses{}, dao.WithLogger(log.NewNop()))
	got, err := g.ConnectWallet(context.Background())
	assert.Equal(t, "", got)
	assert.True(t, errors.Is(err, wallet.ErrUserRejected))

	var perr *wallet.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, wallet.CodeUserRejected, perr.Code)
}

func TestNoProvider(t *testing.T) {
	ctx := context.Background()
	rec := &ui.RecordingNotifier{}
	g := dao.New(nil, dao.Addresses{}, dao.WithLogger(log.NewNop()), dao.WithNotifier(rec))

	account, err := g.CheckWalletConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", account)
	assert.Empty(t, rec.Messages(), "check only logs")

	account, err = g.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", account)

	network, err := g.GetNetwork(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", network)

	require.NoError(t, g.SwitchNetwork(ctx, "0x1"))

	unsubscribe, err := g.OnChainChanged(func(string) {})
	require.NoError(t, err)
	require.NotNil(t, unsubscribe)
	unsubscribe()

	assert.Equal(t, []string{
		dao.NoticeNoWallet,
		dao.NoticeNoWallet,
		dao.NoticeInstallWallet,
		dao.NoticeNoWallet,
	}, rec.Messages())

	_, err = g.GetDaoTreasuryBalance(ctx)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.GetNumProposals(ctx)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.GetUserMembershipBalance(ctx)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.CreateProposal(ctx, big.NewInt(1))
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.FetchProposal(ctx, 0)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.VoteOnProposal(ctx, 0, dao.VoteYay)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
	_, err = g.ExecuteProposal(ctx, 0)
	assert.ErrorIs(t, err, dao.ErrNoProvider)
}

func TestNotConnected_BeforeAnyContractCall(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewChain(testutil.HardhatChainID)
	w := testutil.NewWallet(chain)
	w.NewAccount()

	var calls int
	chain.SetCallHook(func(common.Address, string, []interface{}) error {
		calls++
		return nil
	})

	g := dao.New(w, dao.Addresses{DAO: common.HexToAddress("0x01")}, dao.WithLogger(log.NewNop()))
	_, err := g.GetNumProposals(ctx)
	assert.ErrorIs(t, err, dao.ErrNotConnected)
	_, err = g.CreateProposal(ctx, big.NewInt(1))
	assert.ErrorIs(t, err, dao.ErrNotConnected)
	_, err = g.FetchAllProposals(ctx, 3)
	assert.ErrorIs(t, err, dao.ErrNotConnected)
	assert.Equal(t, 0, calls)
}

func TestSwitchNetworkAndChainChanged(t *testing.T) {
	ctx := context.Background()
	local := testutil.NewChain(testutil.HardhatChainID)
	sepolia := testutil.NewChain(big.NewInt(11155111))
	w := testutil.NewWallet(local)
	w.AddNetwork(sepolia)

	g := dao.New(w, dao.Addresses{}, dao.WithLogger(log.NewNop()))

	var seen []string
	unsubscribe, err := g.OnChainChanged(func(chainID string) { seen = append(seen, chainID) })
	require.NoError(t, err)
	assert.Equal(t, 1, w.Subscribers())

	require.NoError(t, g.SwitchNetwork(ctx, "0xaa36a7"))
	name, err := g.GetNetwork(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sepolia Testnet", name)
	assert.Equal(t, []string{"0xaa36a7"}, seen)

	err = g.SwitchNetwork(ctx, "0x1")
	assert.ErrorIs(t, err, wallet.ErrUnrecognizedChain)

	unsubscribe()
	assert.Equal(t, 0, w.Subscribers())
	require.NoError(t, g.SwitchNetwork(ctx, transport.FormatChainID(testutil.HardhatChainID)))
	assert.Len(t, seen, 1)
}

// ===== 余额 =====

func TestBalances(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	treasury, err := g.GetDaoTreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, treasury.Cmp(fx.Funding))

	balance, err := g.GetUserMembershipBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", balance)

	fx.NFT.Mint(fx.Member)
	balance, err = g.GetUserMembershipBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", balance)
}

// ===== 提案 =====

func TestCreateThenFetch(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)
	createdAt := fx.Chain.Now()

	n, err := g.GetNumProposals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", n)

	hash, err := g.CreateProposal(ctx, big.NewInt(5))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	n, err = g.GetNumProposals(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", n)

	p, err := g.FetchProposal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.ProposalID)
	assert.Equal(t, "5", p.NFTTokenID)
	assert.Equal(t, "0", p.YayVotes)
	assert.Equal(t, "0", p.NayVotes)
	assert.False(t, p.Executed)
	assert.True(t, p.Deadline.After(createdAt))
	assert.Equal(t, createdAt.Add(testutil.ProposalDuration).Unix(), p.Deadline.Unix())
	assert.True(t, p.Active(createdAt))
}

func TestCreateProposal_RevertPropagates(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)

	g := newGateway(t, fx)
	_, err := g.CreateProposal(ctx, big.NewInt(1))
	require.NoError(t, err)

	_, err = g.CreateProposal(ctx, nil)
	assert.ErrorIs(t, err, dao.ErrInvalidTokenID)

	// 非会员
	solo := testutil.NewWallet(fx.Chain)
	stranger := solo.NewAccount()
	fx.Chain.Fund(stranger, big.NewInt(1e18))
	solo.Authorize(stranger)
	gs := dao.New(solo, dao.Addresses{DAO: fx.DAO, NFT: testutil.NFTAddress}, dao.WithLogger(log.NewNop()))
	_, err = gs.CreateProposal(ctx, big.NewInt(2))
	assert.ErrorContains(t, err, testutil.ReasonNotMember)
}

func TestFetchAllProposals_OrderAndFailure(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	for _, token := range []int64{11, 22, 33} {
		_, err := g.CreateProposal(ctx, big.NewInt(token))
		require.NoError(t, err)
	}

	all, err := g.FetchAllProposals(ctx, 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, want := range []string{"11", "22", "33"} {
		assert.Equal(t, uint64(i), all[i].ProposalID)
		assert.Equal(t, want, all[i].NFTTokenID)
	}

	empty, err := g.FetchAllProposals(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	boom := errors.New("rpc timeout")
	fx.Chain.SetCallHook(func(_ common.Address, method string, args []interface{}) error {
		if method == contract.MethodProposals && args[0].(*big.Int).Int64() == 1 {
			return boom
		}
		return nil
	})
	all, err = g.FetchAllProposals(ctx, 3)
	assert.Nil(t, all)
	assert.ErrorIs(t, err, boom)
}

func TestVoteOnProposal(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	_, err := g.CreateProposal(ctx, big.NewInt(7))
	require.NoError(t, err)

	_, err = g.VoteOnProposal(ctx, 0, dao.VoteYay)
	require.NoError(t, err)

	p, err := g.FetchProposal(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", p.YayVotes)
	assert.Equal(t, "0", p.NayVotes)

	_, err = g.VoteOnProposal(ctx, 0, dao.VoteNay)
	assert.ErrorContains(t, err, testutil.ReasonAlreadyVoted)

	fx.Chain.AdvanceTime(testutil.ProposalDuration + time.Second)
	_, err = g.VoteOnProposal(ctx, 0, dao.VoteNay)
	assert.ErrorContains(t, err, testutil.ReasonDeadlineExceeded)
}

func TestVoteOnProposal_InvalidVoteRejectedBeforeCall(t *testing.T) {
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)
	before := len(fx.Wallet.Requests())

	_, err := g.VoteOnProposal(context.Background(), 0, dao.Vote(2))
	assert.ErrorIs(t, err, dao.ErrInvalidVote)
	assert.Len(t, fx.Wallet.Requests(), before)
}

func TestMinedFailureReturnsTransactionFailed(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	_, err := g.CreateProposal(ctx, big.NewInt(3))
	require.NoError(t, err)
	_, err = g.VoteOnProposal(ctx, 0, dao.VoteYay)
	require.NoError(t, err)

	// 固定 gas 跳过估算，重复投票会上链但执行失败
	fx.Wallet.GasLimit = 500_000
	hash, err := g.VoteOnProposal(ctx, 0, dao.VoteYay)
	assert.ErrorIs(t, err, contract.ErrTransactionFailed)
	assert.NotEqual(t, common.Hash{}, hash)
}

func TestExecuteProposal_TreasuryBuysNFT(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	_, err := g.CreateProposal(ctx, big.NewInt(9))
	require.NoError(t, err)
	_, err = g.VoteOnProposal(ctx, 0, dao.VoteYay)
	require.NoError(t, err)

	_, err = g.ExecuteProposal(ctx, 0)
	assert.ErrorContains(t, err, testutil.ReasonDeadlineNotReached)

	fx.Chain.AdvanceTime(testutil.ProposalDuration)
	_, err = g.ExecuteProposal(ctx, 0)
	require.NoError(t, err)

	treasury, err := g.GetDaoTreasuryBalance(ctx)
	require.NoError(t, err)
	want := new(big.Int).Sub(fx.Funding, testutil.DefaultNFTPrice)
	assert.Equal(t, 0, treasury.Cmp(want), "treasury %s, want %s", treasury, want)
	assert.Equal(t, fx.DAO, fx.MarketplaceContract().Owner(big.NewInt(9)))

	p, err := g.FetchProposal(ctx, 0)
	require.NoError(t, err)
	assert.True(t, p.Executed)

	_, err = g.ExecuteProposal(ctx, 0)
	assert.ErrorContains(t, err, testutil.ReasonAlreadyExecuted)
}

func TestExecuteProposal_RejectedKeepsTreasury(t *testing.T) {
	ctx := context.Background()
	fx := testutil.NewFixture(t)
	g := newGateway(t, fx)

	_, err := g.CreateProposal(ctx, big.NewInt(4))
	require.NoError(t, err)
	_, err = g.VoteOnProposal(ctx, 0, dao.VoteNay)
	require.NoError(t, err)

	fx.Chain.AdvanceTime(testutil.ProposalDuration)
	_, err = g.ExecuteProposal(ctx, 0)
	require.NoError(t, err)

	treasury, err := g.GetDaoTreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, treasury.Cmp(fx.Funding))
	assert.Equal(t, common.Address{}, fx.MarketplaceContract().Owner(big.NewInt(4)))
}
