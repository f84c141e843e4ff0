package versioned

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/statestore"
)

var (
	deployer = common.HexToAddress("0xde00000000000000000000000000000000000001")
	stranger = common.HexToAddress("0x5700000000000000000000000000000000000002")
)

func newHost(t *testing.T, policy access.Policy) *host.Host {
	t.Helper()
	reg := host.NewRegistry()
	require.NoError(t, Register(reg))
	h, err := host.New(host.Options{Store: statestore.NewMemory(), Registry: reg, Policy: policy})
	require.NoError(t, err)
	return h
}

func requireCounter(t *testing.T, c *Contract, want uint64) {
	t.Helper()
	got, err := c.Counter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got.Uint64())
}

// TestV1StartsAtZeroAndIncrementsByOne 测试 v1 从 0 开始每次加 1
func TestV1StartsAtZeroAndIncrementsByOne(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, nil), deployer)
	require.NoError(t, err)

	requireCounter(t, c, 0)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 1)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 2)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// TestV1RevertsWhenStopped 测试暂停后自增回滚
func TestV1RevertsWhenStopped(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, nil), deployer)
	require.NoError(t, err)
	require.NoError(t, c.IncrementCounter(ctx, deployer))

	require.NoError(t, c.ToggleContractPaused(ctx, deployer))
	err = c.IncrementCounter(ctx, deployer)
	require.ErrorIs(t, err, revert.ErrContractPaused)
	assert.EqualError(t, err, "execution reverted: Contract is stopped.")
	requireCounter(t, c, 1)
}

// TestToggleAlternates 测试暂停开关交替
func TestToggleAlternates(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, nil), deployer)
	require.NoError(t, err)

	require.NoError(t, c.ToggleContractPaused(ctx, deployer))
	paused, err := c.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, c.ToggleContractPaused(ctx, deployer))
	paused, err = c.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 1)
}

// TestV1DoesNotKnowNewToggleName 测试 v1 不支持新名称
func TestV1DoesNotKnowNewToggleName(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, nil), deployer)
	require.NoError(t, err)
	assert.ErrorIs(t, c.ToggleContractStopped(ctx, deployer), revert.ErrUnsupportedMethod)
}

// TestV2Seeding 测试 v2 初始计数
func TestV2Seeding(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil)

	c, err := DeployV2(ctx, h, deployer, big.NewInt(10))
	require.NoError(t, err)
	requireCounter(t, c, 10)

	c, err = DeployV2(ctx, h, deployer, big.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 101)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 102)
}

// TestV2IncrementsFromZeroSeed 测试 v2 从 0 开始自增
func TestV2IncrementsFromZeroSeed(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV2(ctx, newHost(t, nil), deployer, big.NewInt(0))
	require.NoError(t, err)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 1)
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 2)
}

// TestV2RejectsInvalidSeed 测试负数与超过 256 位的初始计数
func TestV2RejectsInvalidSeed(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil)

	_, err := DeployV2(ctx, h, deployer, big.NewInt(-1))
	assert.ErrorIs(t, err, revert.ErrInvalidSeed)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = DeployV2(ctx, h, deployer, tooBig)
	assert.ErrorIs(t, err, revert.ErrInvalidSeed)
}

// TestV2ToggleNames 测试 v2 新旧名称都可用
func TestV2ToggleNames(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV2(ctx, newHost(t, nil), deployer, big.NewInt(3))
	require.NoError(t, err)

	require.NoError(t, c.ToggleContractStopped(ctx, deployer))
	assert.ErrorIs(t, c.IncrementCounter(ctx, deployer), revert.ErrContractPaused)
	requireCounter(t, c, 3)

	// the v1 name is the same operation
	require.NoError(t, c.ToggleContractPaused(ctx, deployer))
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 4)

	require.NoError(t, c.Toggle(ctx, deployer))
	paused, err := c.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)
}

// TestCounterOverflowDoesNotWrap 测试计数溢出不回绕
func TestCounterOverflowDoesNotWrap(t *testing.T) {
	ctx := context.Background()
	top := new(uint256.Int).SetAllOne()
	c, err := DeployV2(ctx, newHost(t, nil), deployer, top.ToBig())
	require.NoError(t, err)

	err = c.IncrementCounter(ctx, deployer)
	require.ErrorIs(t, err, revert.ErrCounterOverflow)
	assert.False(t, revert.KindOf(err) == revert.KindContractPaused)

	got, err := c.Counter(ctx)
	require.NoError(t, err)
	assert.True(t, got.Eq(top))
}

// TestPauseCheckedBeforeOverflow 测试先检查暂停再检查溢出
func TestPauseCheckedBeforeOverflow(t *testing.T) {
	ctx := context.Background()
	top := new(uint256.Int).SetAllOne()
	c, err := DeployV2(ctx, newHost(t, nil), deployer, top.ToBig())
	require.NoError(t, err)
	require.NoError(t, c.ToggleContractStopped(ctx, deployer))
	assert.ErrorIs(t, c.IncrementCounter(ctx, deployer), revert.ErrContractPaused)
}

// TestMonotonicCounter 测试计数单调递增
func TestMonotonicCounter(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil)
	for _, seed := range []int64{0, 1, 41} {
		for n := 0; n < 5; n++ {
			c, err := DeployV2(ctx, h, deployer, big.NewInt(seed))
			require.NoError(t, err)
			for i := 0; i < n; i++ {
				require.NoError(t, c.IncrementCounter(ctx, deployer))
			}
			requireCounter(t, c, uint64(seed)+uint64(n))
		}
	}
}

// TestToggleRequiresAuthorization 测试暂停开关需要授权
func TestToggleRequiresAuthorization(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, access.Owner{}), deployer)
	require.NoError(t, err)

	assert.ErrorIs(t, c.ToggleContractPaused(ctx, stranger), revert.ErrUnauthorized)
	paused, err := c.Paused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	// increments are not administrative
	require.NoError(t, c.IncrementCounter(ctx, stranger))
}

// TestMigrateV1ToV2KeepsState 测试原地迁移保留状态
func TestMigrateV1ToV2KeepsState(t *testing.T) {
	ctx := context.Background()
	h := newHost(t, nil)
	c, err := DeployV1(ctx, h, deployer)
	require.NoError(t, err)

	require.NoError(t, c.IncrementCounter(ctx, deployer))
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	require.NoError(t, c.ToggleContractPaused(ctx, deployer))

	require.NoError(t, c.Migrate(ctx, deployer, V2{}, MigrateOptions{}))
	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	st, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Counter.Uint64())
	assert.True(t, st.Paused, "pause flag survives the migration")

	require.NoError(t, c.ToggleContractStopped(ctx, deployer))
	require.NoError(t, c.IncrementCounter(ctx, deployer))
	requireCounter(t, c, 3)

	// same handle attached later sees the same state
	requireCounter(t, Attach(h, c.Address()), 3)
}

// TestMigrateWithReseed 测试迁移时重新设置计数
func TestMigrateWithReseed(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, nil), deployer)
	require.NoError(t, err)
	require.NoError(t, c.IncrementCounter(ctx, deployer))

	require.NoError(t, c.Migrate(ctx, deployer, V2{}, MigrateOptions{Reseed: big.NewInt(100)}))
	requireCounter(t, c, 100)

	assert.ErrorIs(t, c.Migrate(ctx, deployer, V1{}, MigrateOptions{Reseed: big.NewInt(-5)}), revert.ErrInvalidSeed)
	requireCounter(t, c, 100)
}

// TestMigrateRequiresAuthorization 测试迁移需要授权
func TestMigrateRequiresAuthorization(t *testing.T) {
	ctx := context.Background()
	c, err := DeployV1(ctx, newHost(t, access.Owner{}), deployer)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Migrate(ctx, stranger, V2{}, MigrateOptions{}), revert.ErrUnauthorized)
	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// TestLayoutSlotsAreDistinct 测试布局槽位互不重叠
func TestLayoutSlotsAreDistinct(t *testing.T) {
	assert.NotEqual(t, CounterSlot, PausedSlot)
	assert.NotEqual(t, host.CodeSlot, CounterSlot)
	assert.NotEqual(t, host.OwnerSlot, PausedSlot)
}

// TestConcurrentIncrementsAreSerialized 并发自增不丢失：counter == seed + N
func TestConcurrentIncrementsAreSerialized(t *testing.T) {
	h := newHost(t, access.Owner{})
	ctx := context.Background()
	c, err := DeployV2(ctx, h, deployer, big.NewInt(5))
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.IncrementCounter(ctx, stranger))
			_, err := c.State(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	requireCounter(t, c, 5+n)
}
