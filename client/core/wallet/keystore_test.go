package wallet_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptodevs/daogate/client/core/transport"
	"github.com/cryptodevs/daogate/client/core/wallet"
	"github.com/cryptodevs/daogate/internal/core/infrastructure/log"
	"github.com/cryptodevs/daogate/internal/testutil"
)

const passphrase = "correct horse"

var sepoliaID = big.NewInt(11155111)

type providerEnv struct {
	provider *wallet.KeystoreProvider
	account  common.Address
	chains   map[string]*testutil.Chain
	prompts  int
}

func newProviderEnv(t *testing.T, answer string, configure func(*wallet.KeystoreOptions)) *providerEnv {
	t.Helper()
	dir := t.TempDir()

	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	acc, err := ks.NewAccount(passphrase)
	require.NoError(t, err)

	env := &providerEnv{
		account: acc.Address,
		chains: map[string]*testutil.Chain{
			transport.FormatChainID(testutil.HardhatChainID): testutil.NewChain(testutil.HardhatChainID),
			transport.FormatChainID(sepoliaID):               testutil.NewChain(sepoliaID),
		},
	}

	opts := wallet.KeystoreOptions{
		KeystoreDir: dir,
		Networks: []wallet.NetworkConfig{
			{ChainID: testutil.HardhatChainID, Name: "localhost"},
			{ChainID: sepoliaID, Name: "sepolia"},
		},
		Prompter: wallet.PrompterFunc(func(ctx context.Context, account common.Address) (string, error) {
			env.prompts++
			if answer == "" {
				return "", wallet.ErrUserRejected
			}
			return answer, nil
		}),
		Dialer: func(ctx context.Context, network wallet.NetworkConfig) (transport.Backend, error) {
			chain, ok := env.chains[transport.FormatChainID(network.ChainID)]
			if !ok {
				return nil, errors.New("unreachable")
			}
			return chain, nil
		},
		Logger:  log.NewNop(),
		ScryptN: keystore.LightScryptN,
		ScryptP: keystore.LightScryptP,
	}
	if configure != nil {
		configure(&opts)
	}

	p, err := wallet.NewKeystoreProvider(opts)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	env.provider = p
	return env
}

func accounts(t *testing.T, p wallet.Provider, method string) []string {
	t.Helper()
	var out []string
	require.NoError(t, p.Request(context.Background(), wallet.RequestArguments{Method: method}, &out))
	return out
}

func TestKeystoreProvider_AccountsNeverPrompts(t *testing.T) {
	env := newProviderEnv(t, passphrase, nil)

	assert.Empty(t, accounts(t, env.provider, wallet.MethodAccounts))
	assert.Equal(t, 0, env.prompts)

	got := accounts(t, env.provider, wallet.MethodRequestAccounts)
	assert.Equal(t, []string{env.account.Hex()}, got)
	assert.Equal(t, 1, env.prompts)

	assert.Equal(t, []string{env.account.Hex()}, accounts(t, env.provider, wallet.MethodAccounts))
	accounts(t, env.provider, wallet.MethodRequestAccounts)
	assert.Equal(t, 1, env.prompts, "already authorized")
}

func TestKeystoreProvider_Rejection(t *testing.T) {
	cases := map[string]string{
		"cancelled":        "",
		"wrong passphrase": "nope",
	}
	for name, answer := range cases {
		t.Run(name, func(t *testing.T) {
			env := newProviderEnv(t, answer, nil)
			err := env.provider.Request(context.Background(), wallet.RequestArguments{Method: wallet.MethodRequestAccounts}, nil)
			assert.ErrorIs(t, err, wallet.ErrUserRejected)
			assert.Empty(t, accounts(t, env.provider, wallet.MethodAccounts))
		})
	}
}

func TestKeystoreProvider_PreauthorizedPassphrase(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	acc, err := ks.NewAccount(passphrase)
	require.NoError(t, err)

	opts := wallet.KeystoreOptions{
		KeystoreDir:    dir,
		DefaultAccount: acc.Address,
		Networks:       []wallet.NetworkConfig{{ChainID: testutil.HardhatChainID, Name: "localhost"}},
		Passphrase:     passphrase,
		Logger:         log.NewNop(),
		ScryptN:        keystore.LightScryptN,
		ScryptP:        keystore.LightScryptP,
	}
	p, err := wallet.NewKeystoreProvider(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{acc.Address.Hex()}, accounts(t, p, wallet.MethodAccounts))

	opts.Passphrase = "wrong"
	_, err = wallet.NewKeystoreProvider(opts)
	assert.Error(t, err)

	opts.Passphrase = passphrase
	opts.DefaultAccount = common.HexToAddress("0xbeef")
	_, err = wallet.NewKeystoreProvider(opts)
	assert.ErrorIs(t, err, wallet.ErrUnauthorized)
}

func TestKeystoreProvider_SwitchChain(t *testing.T) {
	ctx := context.Background()
	env := newProviderEnv(t, passphrase, nil)
	p := env.provider

	var chainID string
	require.NoError(t, p.Request(ctx, wallet.RequestArguments{Method: wallet.MethodChainID}, &chainID))
	assert.Equal(t, "0x7a69", chainID)

	backend, err := p.Backend(ctx)
	require.NoError(t, err)
	local := env.chains["0x7a69"]
	assert.Same(t, local, backend)

	var events []string
	unsubscribe, err := p.On(wallet.EventChainChanged, func(id string) { events = append(events, id) })
	require.NoError(t, err)
	defer unsubscribe()

	switchTo := func(id string) error {
		return p.Request(ctx, wallet.RequestArguments{
			Method: wallet.MethodSwitchChain,
			Params: []interface{}{map[string]string{"chainId": id}},
		}, nil)
	}

	require.NoError(t, switchTo("0xAA36A7"))
	assert.Equal(t, []string{"0xaa36a7"}, events)
	assert.Equal(t, 1, local.Closed())

	backend, err = p.Backend(ctx)
	require.NoError(t, err)
	assert.Same(t, env.chains["0xaa36a7"], backend)

	// 同一链不重复通知
	require.NoError(t, switchTo("0xaa36a7"))
	assert.Len(t, events, 1)

	err = switchTo("0x1")
	assert.ErrorIs(t, err, wallet.ErrUnrecognizedChain)

	err = p.Request(ctx, wallet.RequestArguments{Method: wallet.MethodSwitchChain}, nil)
	assert.ErrorIs(t, err, wallet.ErrUnrecognizedChain)
}

func TestKeystoreProvider_BackendDialsWithoutLock(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env := newProviderEnv(t, passphrase, func(opts *wallet.KeystoreOptions) {
		dial := opts.Dialer
		opts.Dialer = func(ctx context.Context, network wallet.NetworkConfig) (transport.Backend, error) {
			blocked := false
			once.Do(func() { blocked = true })
			if blocked {
				close(entered)
				<-release
			}
			return dial(ctx, network)
		}
	})
	p := env.provider

	type result struct {
		backend transport.Backend
		err     error
	}
	done := make(chan result, 1)
	go func() {
		backend, err := p.Backend(ctx)
		done <- result{backend, err}
	}()
	<-entered

	// 拨号未完成时其它请求不被阻塞
	var chainID string
	require.NoError(t, p.Request(ctx, wallet.RequestArguments{Method: wallet.MethodChainID}, &chainID))
	assert.Equal(t, "0x7a69", chainID)
	assert.Len(t, accounts(t, p, wallet.MethodAccounts), 0)

	require.NoError(t, p.Request(ctx, wallet.RequestArguments{
		Method: wallet.MethodSwitchChain,
		Params: []interface{}{map[string]string{"chainId": "0xaa36a7"}},
	}, nil))
	close(release)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Same(t, env.chains["0xaa36a7"], res.backend, "redials the network selected during the dial")
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Backend did not return")
	}
	assert.Equal(t, 1, env.chains["0x7a69"].Closed(), "stale backend is closed")
}

func TestKeystoreProvider_Transactor(t *testing.T) {
	ctx := context.Background()
	env := newProviderEnv(t, passphrase, nil)

	_, err := env.provider.Transactor(ctx, env.account)
	assert.ErrorIs(t, err, wallet.ErrUnauthorized)

	accounts(t, env.provider, wallet.MethodRequestAccounts)
	opts, err := env.provider.Transactor(ctx, env.account)
	require.NoError(t, err)
	assert.Equal(t, env.account, opts.From)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: &env.account, Value: big.NewInt(1)})
	signed, err := opts.Signer(opts.From, tx)
	require.NoError(t, err)
	sender, err := types.Sender(types.LatestSignerForChainID(testutil.HardhatChainID), signed)
	require.NoError(t, err)
	assert.Equal(t, env.account, sender)
}

func TestKeystoreProvider_Errors(t *testing.T) {
	ctx := context.Background()
	env := newProviderEnv(t, passphrase, nil)

	err := env.provider.Request(ctx, wallet.RequestArguments{Method: "eth_sign"}, nil)
	var perr *wallet.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, wallet.CodeUnsupportedMethod, perr.Code)

	_, err = env.provider.On("accountsChanged", func(string) {})
	assert.ErrorIs(t, err, wallet.ErrUnsupportedMethod)

	delete(env.chains, "0x7a69")
	_, err = env.provider.Backend(ctx)
	assert.ErrorIs(t, err, wallet.ErrDisconnected)

	_, err = wallet.NewKeystoreProvider(wallet.KeystoreOptions{KeystoreDir: t.TempDir()})
	assert.Error(t, err)

	_, err = wallet.NewKeystoreProvider(wallet.KeystoreOptions{
		KeystoreDir: t.TempDir(),
		Networks:    []wallet.NetworkConfig{{ChainID: testutil.HardhatChainID}},
		ChainID:     big.NewInt(1),
	})
	assert.Error(t, err)
}

func TestTerminalPrompter_NonTerminal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	write := func(name, content string) *os.File {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		f, err := os.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { f.Close() })
		return f
	}

	out := &bytes.Buffer{}
	p := &wallet.TerminalPrompter{In: write("pass", "s3cret\n"), Out: out}
	got, err := p.Passphrase(ctx, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Contains(t, out.String(), "0x0000000000000000000000000000000000000001")

	p = &wallet.TerminalPrompter{In: write("noeol", "abc"), Out: out}
	got, err = p.Passphrase(ctx, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	p = &wallet.TerminalPrompter{In: write("empty", ""), Out: out}
	_, err = p.Passphrase(ctx, common.Address{})
	assert.ErrorIs(t, err, wallet.ErrUserRejected)
}
