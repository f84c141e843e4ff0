package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/betbot/upgradekit/internal/host"
)

// TestByName 测试按名称查找实现
func TestByName(t *testing.T) {
	c, ok := ByName("plain")
	assert.True(t, ok)
	assert.Equal(t, PlainID, c.ID())

	c, ok = ByName(GuardedID)
	assert.True(t, ok)
	assert.Equal(t, Guarded{}, c)

	_, ok = ByName("doubling")
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	reg := host.NewRegistry()
	assert.NoError(t, Register(reg))
	assert.True(t, reg.Registered(Plain{}))
	assert.True(t, reg.Registered(Guarded{}))
	// registering the same codes twice is fine
	assert.NoError(t, Register(reg))
}
