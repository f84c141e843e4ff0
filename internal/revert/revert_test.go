package revert

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsMatchesByKind 测试 errors.Is 按类别匹配
func TestIsMatchesByKind(t *testing.T) {
	err := Newf(KindContractPaused, "paused at block %d", 7)
	assert.True(t, errors.Is(err, ErrContractPaused))
	assert.False(t, errors.Is(err, ErrCounterOverflow))
	assert.Equal(t, "execution reverted: paused at block 7", err.Error())
}

// TestForwardedKeepsInnerReason 测试转发失败保留内部原因
func TestForwardedKeepsInnerReason(t *testing.T) {
	inner := New(KindUnknown, "value too large")
	fwd := Forwarded(inner)
	require.NotNil(t, fwd)

	assert.Equal(t, KindForwardedCallFailed, KindOf(fwd))
	assert.Equal(t, "value too large", fwd.Reason)
	assert.True(t, errors.Is(fwd, ErrForwardedCallFailed))
	assert.True(t, errors.Is(fwd, inner))

	plain := Forwarded(errors.New("boom"))
	assert.Equal(t, "boom", plain.Reason)
	assert.Nil(t, Forwarded(nil))
}

// TestKindOfWrapped 测试包装后仍能取得类别
func TestKindOfWrapped(t *testing.T) {
	err := errors.Wrap(ErrUnauthorized, "upgrade")
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.True(t, IsRevert(err))
	assert.False(t, IsRevert(errors.New("disk full")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("disk full")))
}

// TestParseKind 测试类别名称解析
func TestParseKind(t *testing.T) {
	for k := range kindNames {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("nope"))
}
