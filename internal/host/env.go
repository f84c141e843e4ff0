package host

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/statestore"
)

// MaxDelegateDepth 委托调用的最大嵌套深度
const MaxDelegateDepth = 1024

// Env 合约逻辑执行时看到的环境。
//
// 存储永远绑定到 self：委托调用只切换 codeAddr，self 不变，
// 因此被委托的逻辑无法读写它自己地址下的存储。
type Env struct {
	ctx      context.Context
	host     *Host
	frame    *frame
	self     common.Address
	codeAddr common.Address
	caller   common.Address
	depth    int
}

func (e *Env) Context() context.Context { return e.ctx }

// Self 存储所属地址
func (e *Env) Self() common.Address { return e.self }

// CodeAddress 当前正在执行的逻辑所在地址
func (e *Env) CodeAddress() common.Address { return e.codeAddr }

func (e *Env) Caller() common.Address { return e.caller }

// Delegated 当前是否处于委托执行中
func (e *Env) Delegated() bool { return e.self != e.codeAddr }

func (e *Env) Depth() int { return e.depth }

func (e *Env) Load(slot common.Hash) (common.Hash, error) {
	return e.frame.get(e.ctx, statestore.Key{Addr: e.self, Slot: slot})
}

func (e *Env) Store(slot common.Hash, value common.Hash) {
	e.frame.set(statestore.Key{Addr: e.self, Slot: slot}, value)
}

func (e *Env) LoadUint(slot common.Hash) (*uint256.Int, error) {
	w, err := e.Load(slot)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes32(w[:]), nil
}

func (e *Env) StoreUint(slot common.Hash, v *uint256.Int) {
	e.Store(slot, common.Hash(v.Bytes32()))
}

func (e *Env) LoadBool(slot common.Hash) (bool, error) {
	w, err := e.Load(slot)
	if err != nil {
		return false, err
	}
	return w != (common.Hash{}), nil
}

func (e *Env) StoreBool(slot common.Hash, b bool) {
	var w common.Hash
	if b {
		w[common.HashLength-1] = 1
	}
	e.Store(slot, w)
}

func (e *Env) LoadAddress(slot common.Hash) (common.Address, error) {
	w, err := e.Load(slot)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[:]), nil
}

func (e *Env) StoreAddress(slot common.Hash, addr common.Address) {
	e.Store(slot, common.BytesToHash(addr.Bytes()))
}

// Code 当前正在执行的逻辑
func (e *Env) Code() (Code, error) {
	return e.CodeAt(e.codeAddr)
}

// CodeAt 解析任意地址上部署的逻辑；没有代码时返回 revert.ErrNoCode。
func (e *Env) CodeAt(addr common.Address) (Code, error) {
	return e.host.codeAt(e.ctx, e.frame, addr)
}

// Owner self 的部署者
func (e *Env) Owner() (common.Address, error) {
	return e.LoadAddress(OwnerSlot)
}

// Authorize 使用宿主配置的策略校验管理性操作
func (e *Env) Authorize(op string) error {
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	return e.host.policy.Authorize(e.ctx, access.Request{
		Op:       op,
		Caller:   e.caller,
		Contract: e.self,
		Owner:    owner,
	})
}

// ReplaceCode 原地替换 self 的逻辑，存储保持不变。
func (e *Env) ReplaceCode(code Code) error {
	if !e.host.registry.Registered(code) {
		return revert.Newf(revert.KindNoCode, "Code %q is not registered.", code.ID())
	}
	e.Store(CodeSlot, CodeHash(code.ID()))
	return nil
}

// DelegateCall 以 self 的存储执行 target 上的逻辑。
// fn 在子写缓冲中运行：成功并入当前调用，失败时其写入全部丢弃。
// 返回 fn 的原始错误，由调用方决定如何包装。
func (e *Env) DelegateCall(target common.Address, fn func(*Env) error) error {
	if e.depth+1 > MaxDelegateDepth {
		return revert.Newf(revert.KindForwardedCallFailed, "Delegate depth %d exceeded.", MaxDelegateDepth)
	}
	if _, err := e.CodeAt(target); err != nil {
		return err
	}
	child := &Env{
		ctx:      e.ctx,
		host:     e.host,
		frame:    e.frame.child(),
		self:     e.self,
		codeAddr: target,
		caller:   e.caller,
		depth:    e.depth + 1,
	}
	if err := runGuarded(child, fn); err != nil {
		return err
	}
	child.frame.merge()
	return nil
}
