package versioned

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
)

// Code IDs. 已部署合约的存储里保存的是它们的哈希，不能修改。
const (
	V1ID = "versioned-counter/v1"
	V2ID = "versioned-counter/v2"
)

// Incrementer 两个版本都提供的计数操作
type Incrementer interface {
	IncrementCounter(env *host.Env) error
}

// V1 第一版逻辑：无构造参数，计数从 0 开始。
type V1 struct{}

func (V1) ID() string { return V1ID }

func (V1) IncrementCounter(env *host.Env) error { return At(env).increment() }

func (V1) ToggleContractPaused(env *host.Env) error { return At(env).togglePaused() }

// V2 第二版逻辑：构造时注入初始计数；暂停开关改名为 ToggleContractStopped。
type V2 struct{}

func (V2) ID() string { return V2ID }

func (V2) IncrementCounter(env *host.Env) error { return At(env).increment() }

func (V2) ToggleContractStopped(env *host.Env) error { return At(env).togglePaused() }

// ToggleContractPaused 旧名称，与 ToggleContractStopped 是同一操作。
func (v V2) ToggleContractPaused(env *host.Env) error { return v.ToggleContractStopped(env) }

// Seed 校验并转换 v2 的初始计数
func Seed(initial *big.Int) (*uint256.Int, error) {
	if initial == nil {
		return new(uint256.Int), nil
	}
	if initial.Sign() < 0 {
		return nil, revert.Newf(revert.KindInvalidSeed, "Initial counter %s is negative.", initial)
	}
	v, overflow := uint256.FromBig(initial)
	if overflow {
		return nil, revert.Newf(revert.KindInvalidSeed, "Initial counter %s does not fit 256 bits.", initial)
	}
	return v, nil
}

// Register 注册两个版本的逻辑
func Register(reg *host.Registry) error {
	return reg.Register(V1{}, V2{})
}
