// Package access 管理性操作（升级实现、暂停开关、迁移）的授权策略。
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/upgradekit/internal/revert"
)

// 管理性操作名称
const (
	OpUpgradeImplementation = "upgradeImplementation"
	OpTogglePause           = "togglePause"
	OpMigrate               = "migrate"
)

// Request 一次授权请求
type Request struct {
	Op       string
	Caller   common.Address
	Contract common.Address
	Owner    common.Address // 部署者
}

// Policy 授权策略。拒绝时返回 revert.KindUnauthorized 类错误。
type Policy interface {
	Authorize(ctx context.Context, req Request) error
}

// PolicyFunc 函数适配器
type PolicyFunc func(ctx context.Context, req Request) error

func (f PolicyFunc) Authorize(ctx context.Context, req Request) error { return f(ctx, req) }

// Open 不做任何检查（原始合约即如此）。
type Open struct{}

func (Open) Authorize(context.Context, Request) error { return nil }

// Owner 只允许合约部署者执行管理性操作。
type Owner struct{}

func (Owner) Authorize(_ context.Context, req Request) error {
	if req.Owner != (common.Address{}) && req.Caller == req.Owner {
		return nil
	}
	return denied(req)
}

// Allowlist 部署者或名单内地址可执行管理性操作。
type Allowlist struct {
	allowed map[common.Address]struct{}
}

func NewAllowlist(addrs ...common.Address) *Allowlist {
	a := &Allowlist{allowed: make(map[common.Address]struct{}, len(addrs))}
	for _, addr := range addrs {
		a.allowed[addr] = struct{}{}
	}
	return a
}

func (a *Allowlist) Authorize(ctx context.Context, req Request) error {
	if err := (Owner{}).Authorize(ctx, req); err == nil {
		return nil
	}
	if a != nil {
		if _, ok := a.allowed[req.Caller]; ok {
			return nil
		}
	}
	return denied(req)
}

func denied(req Request) error {
	return revert.Newf(revert.KindUnauthorized, "Caller %s is not authorized to %s.", req.Caller.Hex(), req.Op)
}

// FromName 按配置名称构造策略：open | owner | allowlist
func FromName(name string, allowlist []common.Address) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	// 默认只允许部署者；open 不做任何限制，任何调用方都可升级或切换暂停
	case "", "owner":
		return Owner{}, nil
	case "open":
		return Open{}, nil
	case "allowlist":
		return NewAllowlist(allowlist...), nil
	default:
		return nil, fmt.Errorf("unknown access policy %q", name)
	}
}
