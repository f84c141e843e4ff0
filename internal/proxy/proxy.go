// Package proxy 实现转发代理：固定地址对外，逻辑可替换，状态留在代理自身存储中。
package proxy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/logger"
)

// ImplementationSlot = keccak256("eip1967.proxy.implementation") - 1
var ImplementationSlot = common.BigToHash(new(big.Int).Sub(
	crypto.Keccak256Hash([]byte("eip1967.proxy.implementation")).Big(),
	common.Big1,
))

const ID = "forwarding-proxy/v1"

const (
	MethodUpgradeImplementation = "upgradeImplementation"
	MethodSetValue              = "setValue"
	MethodGetValue              = "getValue"
)

// ValueLogic 被委托的实现需要提供的逻辑。
// env 的存储始终是代理的存储。
type ValueLogic interface {
	host.Code
	SetValue(env *host.Env, v *uint256.Int) error
	GetValue(env *host.Env) (*uint256.Int, error)
}

// Code 代理自身的逻辑
type Code struct{}

func (Code) ID() string { return ID }

func (Code) Implementation(env *host.Env) (common.Address, error) {
	return env.LoadAddress(ImplementationSlot)
}

func (Code) UpgradeImplementation(env *host.Env, impl common.Address) error {
	if err := env.Authorize(access.OpUpgradeImplementation); err != nil {
		return err
	}
	if impl == (common.Address{}) {
		return revert.New(revert.KindInvalidImplementation, "Implementation address is zero.")
	}
	if impl == env.Self() {
		return revert.New(revert.KindInvalidImplementation, "Proxy cannot delegate to itself.")
	}
	env.StoreAddress(ImplementationSlot, impl)
	return nil
}

// SetValue nil 按 0 处理
func (c Code) SetValue(env *host.Env, v *uint256.Int) error {
	if v == nil {
		v = new(uint256.Int)
	}
	return c.forward(env, func(l ValueLogic, d *host.Env) error {
		return l.SetValue(d, v)
	})
}

func (c Code) GetValue(env *host.Env) (*uint256.Int, error) {
	var out *uint256.Int
	err := c.forward(env, func(l ValueLogic, d *host.Env) error {
		v, err := l.GetValue(d)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forward 每次调用都重新读取实现地址，并以代理存储执行其逻辑。
func (c Code) forward(env *host.Env, fn func(ValueLogic, *host.Env) error) error {
	impl, err := c.Implementation(env)
	if err != nil {
		return err
	}
	if impl == (common.Address{}) {
		return revert.ErrUninitializedImplementation
	}
	err = env.DelegateCall(impl, func(d *host.Env) error {
		code, err := d.Code()
		if err != nil {
			return err
		}
		l, ok := code.(ValueLogic)
		if !ok {
			return revert.Newf(revert.KindUnsupportedMethod, "Code %q does not implement value logic.", code.ID())
		}
		return fn(l, d)
	})
	if err != nil {
		return revert.Forwarded(err)
	}
	return nil
}

// Register 注册代理逻辑
func Register(reg *host.Registry) error {
	return reg.Register(Code{})
}

// Proxy 已部署代理的句柄
type Proxy struct {
	host *host.Host
	addr common.Address
}

// Deploy 部署代理：实现地址为空，value 为 0。
func Deploy(ctx context.Context, h *host.Host, deployer common.Address) (*Proxy, error) {
	addr, err := h.Deploy(ctx, deployer, Code{}, nil)
	if err != nil {
		return nil, err
	}
	return &Proxy{host: h, addr: addr}, nil
}

func Attach(h *host.Host, addr common.Address) *Proxy {
	return &Proxy{host: h, addr: addr}
}

func (p *Proxy) Address() common.Address { return p.addr }

func (p *Proxy) UpgradeImplementation(ctx context.Context, caller, impl common.Address) error {
	var prev common.Address
	err := p.host.Call(ctx, caller, p.addr, MethodUpgradeImplementation, func(env *host.Env) error {
		code, err := proxyCode(env)
		if err != nil {
			return err
		}
		if prev, err = code.Implementation(env); err != nil {
			return err
		}
		return code.UpgradeImplementation(env, impl)
	})
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"proxy": p.addr.Hex(),
		"from":  prev.Hex(),
		"to":    impl.Hex(),
	}).Info("proxy implementation upgraded")
	return nil
}

func (p *Proxy) SetValue(ctx context.Context, caller common.Address, v *uint256.Int) error {
	return p.host.Call(ctx, caller, p.addr, MethodSetValue, func(env *host.Env) error {
		code, err := proxyCode(env)
		if err != nil {
			return err
		}
		return code.SetValue(env, v)
	})
}

// GetValue 只读，不产生调用记录
func (p *Proxy) GetValue(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := p.host.View(ctx, caller, p.addr, func(env *host.Env) error {
		code, err := proxyCode(env)
		if err != nil {
			return err
		}
		out, err = code.GetValue(env)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Proxy) Implementation(ctx context.Context) (common.Address, error) {
	var out common.Address
	err := p.host.View(ctx, common.Address{}, p.addr, func(env *host.Env) error {
		code, err := proxyCode(env)
		if err != nil {
			return err
		}
		out, err = code.Implementation(env)
		return err
	})
	return out, err
}

func proxyCode(env *host.Env) (Code, error) {
	code, err := env.Code()
	if err != nil {
		return Code{}, err
	}
	c, ok := code.(Code)
	if !ok {
		return Code{}, revert.Newf(revert.KindUnsupportedMethod, "Code %q is not a forwarding proxy.", code.ID())
	}
	return c, nil
}
