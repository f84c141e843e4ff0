// Package versioned 实现存储布局向后兼容的可升级计数合约。
//
// V1 与 V2 共用同一个 Layout（counter 在槽位 0，paused 在槽位 1），
// 只在暴露的操作和构造函数上不同，因此可以原地把 V1 的逻辑替换为 V2
// 而不重新解释任何已持久化的字段。
package versioned

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/logger"
)

// 方法名（调用记录中使用）
const (
	MethodIncrementCounter      = "incrementCounter"
	MethodToggleContractPaused  = "toggleContractPaused"
	MethodToggleContractStopped = "toggleContractStopped"
	MethodMigrate               = "migrate"
)

// Contract 已部署计数合约的句柄
type Contract struct {
	host *host.Host
	addr common.Address
}

// DeployV1 部署第一版：counter=0, Active
func DeployV1(ctx context.Context, h *host.Host, deployer common.Address) (*Contract, error) {
	addr, err := h.Deploy(ctx, deployer, V1{}, nil)
	if err != nil {
		return nil, err
	}
	return &Contract{host: h, addr: addr}, nil
}

// DeployV2 部署第二版：counter=initialCounter, Active。负数或超过 256 位的种子被拒绝。
func DeployV2(ctx context.Context, h *host.Host, deployer common.Address, initialCounter *big.Int) (*Contract, error) {
	seed, err := Seed(initialCounter)
	if err != nil {
		return nil, err
	}
	addr, err := h.Deploy(ctx, deployer, V2{}, func(env *host.Env) error {
		At(env).SetCounter(seed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Contract{host: h, addr: addr}, nil
}

// Attach 绑定到已部署的地址
func Attach(h *host.Host, addr common.Address) *Contract {
	return &Contract{host: h, addr: addr}
}

func (c *Contract) Address() common.Address { return c.addr }

// Version 当前逻辑版本（1 或 2）
func (c *Contract) Version(ctx context.Context) (int, error) {
	code, err := c.host.CodeOf(ctx, c.addr)
	if err != nil {
		return 0, err
	}
	return versionOf(code)
}

func versionOf(code host.Code) (int, error) {
	switch code.(type) {
	case V1:
		return 1, nil
	case V2:
		return 2, nil
	default:
		return 0, revert.Newf(revert.KindUnsupportedMethod, "Code %q is not a versioned counter.", code.ID())
	}
}

func (c *Contract) IncrementCounter(ctx context.Context, caller common.Address) error {
	return c.invoke(ctx, caller, MethodIncrementCounter, func(code host.Code, env *host.Env) error {
		inc, ok := code.(Incrementer)
		if !ok {
			return unsupported(code, MethodIncrementCounter)
		}
		return inc.IncrementCounter(env)
	})
}

// ToggleContractPaused 版本 1 的名称；版本 2 作为别名保留。
func (c *Contract) ToggleContractPaused(ctx context.Context, caller common.Address) error {
	return c.invoke(ctx, caller, MethodToggleContractPaused, func(code host.Code, env *host.Env) error {
		t, ok := code.(interface{ ToggleContractPaused(*host.Env) error })
		if !ok {
			return unsupported(code, MethodToggleContractPaused)
		}
		return t.ToggleContractPaused(env)
	})
}

// ToggleContractStopped 版本 2 的名称
func (c *Contract) ToggleContractStopped(ctx context.Context, caller common.Address) error {
	return c.invoke(ctx, caller, MethodToggleContractStopped, func(code host.Code, env *host.Env) error {
		t, ok := code.(interface{ ToggleContractStopped(*host.Env) error })
		if !ok {
			return unsupported(code, MethodToggleContractStopped)
		}
		return t.ToggleContractStopped(env)
	})
}

// Toggle 按当前版本选择名称切换暂停状态
func (c *Contract) Toggle(ctx context.Context, caller common.Address) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if v == 1 {
		return c.ToggleContractPaused(ctx, caller)
	}
	return c.ToggleContractStopped(ctx, caller)
}

func (c *Contract) Counter(ctx context.Context) (*uint256.Int, error) {
	s, err := c.State(ctx)
	if err != nil {
		return nil, err
	}
	return s.Counter, nil
}

func (c *Contract) Paused(ctx context.Context) (bool, error) {
	s, err := c.State(ctx)
	if err != nil {
		return false, err
	}
	return s.Paused, nil
}

func (c *Contract) State(ctx context.Context) (State, error) {
	var s State
	err := c.host.View(ctx, common.Address{}, c.addr, func(env *host.Env) error {
		var err error
		s, err = At(env).State()
		return err
	})
	return s, err
}

// MigrateOptions 原地迁移参数
type MigrateOptions struct {
	// Reseed 非空时迁移同时重新设置计数
	Reseed *big.Int
}

// Migrate 原地替换逻辑，counter 与 paused 保持不变（除非指定 Reseed）。
func (c *Contract) Migrate(ctx context.Context, caller common.Address, to host.Code, opts MigrateOptions) error {
	if _, err := versionOf(to); err != nil {
		return err
	}
	var seed *uint256.Int
	if opts.Reseed != nil {
		s, err := Seed(opts.Reseed)
		if err != nil {
			return err
		}
		seed = s
	}
	err := c.invoke(ctx, caller, MethodMigrate, func(code host.Code, env *host.Env) error {
		if _, err := versionOf(code); err != nil {
			return err
		}
		if err := env.Authorize(access.OpMigrate); err != nil {
			return err
		}
		if err := env.ReplaceCode(to); err != nil {
			return err
		}
		if seed != nil {
			At(env).SetCounter(seed)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.WithField("contract", c.addr.Hex()).Infof("counter migrated to %s", to.ID())
	return nil
}

func (c *Contract) invoke(ctx context.Context, caller common.Address, method string, fn func(host.Code, *host.Env) error) error {
	return c.host.Call(ctx, caller, c.addr, method, func(env *host.Env) error {
		code, err := env.Code()
		if err != nil {
			return err
		}
		return fn(code, env)
	})
}

func unsupported(code host.Code, method string) error {
	return revert.Newf(revert.KindUnsupportedMethod, "Code %q has no method %s.", code.ID(), method)
}
