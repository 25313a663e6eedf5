package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfileManager_CreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	pm, err := NewProfileManager(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost", "sepolia"}, pm.ListProfiles())
	assert.Equal(t, DefaultProfile, pm.CurrentName())

	current, err := pm.GetCurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "0x7a69", current.ChainID)
	require.Len(t, current.Networks, 1)
	assert.Equal(t, "http://127.0.0.1:8545", current.Networks[0].Endpoints[0].URL)
	assert.Equal(t, filepath.Join(dir, "keystores", "localhost"), current.KeystorePath)

	data, err := os.ReadFile(filepath.Join(dir, "current"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", string(data))

	_, err = os.Stat(filepath.Join(dir, "profiles", "sepolia.json"))
	assert.NoError(t, err)
}

func TestProfileManager_SaveSwitchDelete(t *testing.T) {
	dir := t.TempDir()
	pm, err := NewProfileManager(dir)
	require.NoError(t, err)

	custom := &Profile{
		Name:       "dev",
		ChainID:    "31337",
		DAOAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Networks:   DefaultProfiles()[0].Networks,
	}
	require.NoError(t, pm.SaveProfile(custom))
	require.NoError(t, pm.SwitchProfile("dev"))

	// 重新加载后保持一致
	reloaded, err := NewProfileManager(dir)
	require.NoError(t, err)
	assert.Equal(t, "dev", reloaded.CurrentName())
	p, err := reloaded.GetCurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, custom.DAOAddress, p.DAOAddress)
	assert.Equal(t, Duration(2*time.Minute), p.Timeout)

	assert.Error(t, reloaded.DeleteProfile("dev"))
	require.NoError(t, reloaded.DeleteProfile("sepolia"))
	_, err = reloaded.GetProfile("sepolia")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, reloaded.SwitchProfile("missing"), ErrProfileNotFound)

	assert.Error(t, pm.SaveProfile(&Profile{}))
}

func TestProfile_Parsing(t *testing.T) {
	p := &Profile{
		Name:               "x",
		DAOAddress:         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		NFTAddress:         "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		MarketplaceAddress: "",
		DefaultAccount:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Networks:           []NetworkProfile{{ChainID: "0xaa36a7"}},
	}

	id, err := p.InitialChainID()
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), id.Int64())

	dao, nft, market, err := p.Addresses()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(p.DAOAddress), dao)
	assert.Equal(t, common.HexToAddress(p.NFTAddress), nft)
	assert.Equal(t, common.Address{}, market)

	account, err := p.Account()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(p.DefaultAccount), account)

	p.NFTAddress = "not-an-address"
	_, _, _, err = p.Addresses()
	assert.ErrorContains(t, err, "nft_address")

	p.ChainID = "zz"
	_, err = p.InitialChainID()
	assert.Error(t, err)

	t.Setenv("DAOGATE_TEST_PASS", "hunter2")
	p.PassphraseEnv = "DAOGATE_TEST_PASS"
	assert.Equal(t, "hunter2", p.Passphrase())
}

func TestDuration_JSON(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"45s"`), &d))
	assert.Equal(t, Duration(45*time.Second), d)
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}
