// Package logic 提供可被转发代理委托执行的 value 逻辑实现。
//
// 所有实现都把 value 放在调用方存储的槽位 0，彼此之间可以随意切换。
package logic

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
)

// ValueSlot value 在代理存储中的位置
var ValueSlot = common.BigToHash(common.Big0)

const (
	PlainID   = "value-logic/plain"
	GuardedID = "value-logic/guarded"
)

// Plain 原样读写 value
type Plain struct{}

func (Plain) ID() string { return PlainID }

func (Plain) SetValue(env *host.Env, v *uint256.Int) error {
	env.StoreUint(ValueSlot, v)
	return nil
}

func (Plain) GetValue(env *host.Env) (*uint256.Int, error) {
	return env.LoadUint(ValueSlot)
}

// Guarded 拒绝写入 0，其余与 Plain 相同
type Guarded struct{}

func (Guarded) ID() string { return GuardedID }

func (Guarded) SetValue(env *host.Env, v *uint256.Int) error {
	if v == nil || v.IsZero() {
		return revert.New(revert.KindUnknown, "Value must be non-zero.")
	}
	env.StoreUint(ValueSlot, v)
	return nil
}

func (Guarded) GetValue(env *host.Env) (*uint256.Int, error) {
	return env.LoadUint(ValueSlot)
}

// ByName 按名称查找实现：plain | guarded
func ByName(name string) (host.Code, bool) {
	switch name {
	case "plain", PlainID:
		return Plain{}, true
	case "guarded", GuardedID:
		return Guarded{}, true
	}
	return nil, false
}

func Register(reg *host.Registry) error {
	return reg.Register(Plain{}, Guarded{})
}
