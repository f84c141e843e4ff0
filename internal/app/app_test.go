package app

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/upgradekit/internal/proxy"
	"github.com/betbot/upgradekit/internal/proxy/logic"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/internal/versioned"
	"github.com/betbot/upgradekit/pkg/config"
	"github.com/betbot/upgradekit/pkg/principals"
)

func badgerConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendBadger
	cfg.Storage.Path = filepath.Join(dir, "state")
	cfg.LedgerPath = filepath.Join(dir, "receipts.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

// TestStateSurvivesRestart 测试 badger 后端重启后状态与 nonce 保留
func TestStateSurvivesRestart(t *testing.T) {
	cfg := badgerConfig(t)
	ctx := context.Background()

	a, err := New(cfg)
	require.NoError(t, err)
	admin := a.Principals[0]

	px, err := proxy.Deploy(ctx, a.Host, admin)
	require.NoError(t, err)
	impl, err := a.Host.Deploy(ctx, admin, logic.Plain{}, nil)
	require.NoError(t, err)
	require.NoError(t, px.UpgradeImplementation(ctx, admin, impl))
	require.NoError(t, px.SetValue(ctx, admin, uint256.NewInt(55)))

	ct, err := versioned.DeployV2(ctx, a.Host, admin, big.NewInt(9))
	require.NoError(t, err)
	require.NoError(t, ct.IncrementCounter(ctx, admin))
	require.NoError(t, ct.ToggleContractStopped(ctx, admin))
	require.NoError(t, a.Close())

	b, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	v, err := proxy.Attach(b.Host, px.Address()).GetValue(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(55), v.Uint64())

	again := versioned.Attach(b.Host, ct.Address())
	st, err := again.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), st.Counter.Uint64())
	assert.True(t, st.Paused)
	assert.ErrorIs(t, again.IncrementCounter(ctx, admin), revert.ErrContractPaused)

	// 重启后部署 nonce 继续递增，不会与已有合约地址冲突
	next, err := versioned.DeployV1(ctx, b.Host, admin)
	require.NoError(t, err)
	assert.NotEqual(t, ct.Address(), next.Address())
	assert.NotEqual(t, px.Address(), next.Address())
}

// TestPrincipalsFromMnemonic 测试从助记词派生调用方
func TestPrincipalsFromMnemonic(t *testing.T) {
	cfg := config.Default()
	cfg.Principals.Mnemonic = "tag volcano eight thank tide danger coast health above argue embrace heavy"
	cfg.Principals.Count = 2

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	want, err := principals.Derive(cfg.Principals.Mnemonic, principals.DefaultBase, 2)
	require.NoError(t, err)
	assert.Equal(t, want, a.Principals)
}

// TestAllowlistIncludesPrincipals 测试白名单包含派生出的调用方
func TestAllowlistIncludesPrincipals(t *testing.T) {
	cfg := config.Default()
	cfg.Access.Policy = "allowlist"
	cfg.Principals.Count = 2

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	ctx := context.Background()

	owner, second := a.Principals[0], a.Principals[1]
	ct, err := versioned.DeployV1(ctx, a.Host, owner)
	require.NoError(t, err)
	assert.NoError(t, ct.ToggleContractPaused(ctx, second))

	stranger := principals.Fallback(5)[4]
	assert.ErrorIs(t, ct.ToggleContractPaused(ctx, stranger), revert.ErrUnauthorized)
}

// TestOpenStoreRejectsBadKey 测试非法加密密钥
func TestOpenStoreRejectsBadKey(t *testing.T) {
	_, err := OpenStore(config.StorageConfig{Backend: config.BackendBadger, Path: t.TempDir(), EncryptionKey: "short"})
	require.Error(t, err)
}
