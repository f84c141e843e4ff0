// Package host 是合约的进程内执行环境。
//
// 宿主负责：
// - 串行化：同一时刻只执行一个调用
// - 原子性：调用的全部写入在成功后一次性提交，失败（错误或 panic）时丢弃
// - 代码解析：合约地址 code 槽位保存逻辑标识，调用时动态解析
// - 委托调用：执行另一地址的逻辑，但存储仍绑定在调用方
package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/revert"
	"github.com/betbot/upgradekit/pkg/logger"
	"github.com/betbot/upgradekit/pkg/statestore"
)

// 宿主保留槽位。远离 0..N 的普通布局槽位，不会与合约字段冲突。
var (
	CodeSlot  = crypto.Keccak256Hash([]byte("upgradekit.code"))
	OwnerSlot = crypto.Keccak256Hash([]byte("upgradekit.owner"))
	NonceSlot = crypto.Keccak256Hash([]byte("upgradekit.nonce"))
)

// MethodConstructor 部署调用在记录中使用的方法名
const MethodConstructor = "constructor"

type Options struct {
	Store    statestore.Store
	Registry *Registry
	Policy   access.Policy // 为空时使用 access.Owner
}

// Host 合约执行环境
type Host struct {
	mu       sync.Mutex
	store    statestore.Store
	registry *Registry
	policy   access.Policy
	obs      observers
}

func New(opts Options) (*Host, error) {
	if opts.Store == nil {
		return nil, errors.New("host: store is required")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = access.Owner{}
	}
	return &Host{
		store:    opts.Store,
		registry: opts.Registry,
		policy:   opts.Policy,
	}, nil
}

func (h *Host) Registry() *Registry { return h.registry }

// Observe 注册调用记录观察者
func (h *Host) Observe(o Observer) {
	if o != nil {
		h.obs.add(o)
	}
}

type inCallKey struct{}

// Deploy 在 deployer 名下部署 code，地址由 (deployer, nonce) 推导。
// init 为构造逻辑（可为空），在新地址的存储上执行；失败时部署整体回滚。
func (h *Host) Deploy(ctx context.Context, deployer common.Address, code Code, init func(*Env) error) (common.Address, error) {
	if code == nil || !h.registry.Registered(code) {
		return common.Address{}, errors.New("host: deploying unregistered code")
	}

	var addr common.Address
	err := h.exec(ctx, deployer, common.Address{}, MethodConstructor, func(f *frame) (*Env, error) {
		nonceKey := statestore.Key{Addr: deployer, Slot: NonceSlot}
		w, err := f.get(ctx, nonceKey)
		if err != nil {
			return nil, err
		}
		nonce := new(uint256.Int).SetBytes32(w[:])
		addr = crypto.CreateAddress(deployer, nonce.Uint64())
		f.set(nonceKey, common.Hash(new(uint256.Int).AddUint64(nonce, 1).Bytes32()))

		env := h.newEnv(ctx, f, addr, addr, deployer)
		env.Store(CodeSlot, CodeHash(code.ID()))
		env.StoreAddress(OwnerSlot, deployer)
		return env, nil
	}, init)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// Call 以 caller 身份在 contract 上执行 fn。contract 上必须已部署代码。
func (h *Host) Call(ctx context.Context, caller, contract common.Address, method string, fn func(*Env) error) error {
	return h.exec(ctx, caller, contract, method, func(f *frame) (*Env, error) {
		if _, err := h.codeAt(ctx, f, contract); err != nil {
			return nil, err
		}
		return h.newEnv(ctx, f, contract, contract, caller), nil
	}, fn)
}

// View 只读执行：与 Call 一样串行化，但不提交写入、不产生调用记录。
func (h *Host) View(ctx context.Context, caller, contract common.Address, fn func(*Env) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(inCallKey{}) != nil {
		return revert.ErrReentrantCall
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx = context.WithValue(ctx, inCallKey{}, contract)
	f := newFrame(h.store)
	if _, err := h.codeAt(ctx, f, contract); err != nil {
		return err
	}
	return runGuarded(h.newEnv(ctx, f, contract, contract, caller), fn)
}

// CodeOf 返回 addr 上部署的逻辑
func (h *Host) CodeOf(ctx context.Context, addr common.Address) (Code, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.codeAt(ctx, newFrame(h.store), addr)
}

func (h *Host) newEnv(ctx context.Context, f *frame, self, codeAddr, caller common.Address) *Env {
	return &Env{ctx: ctx, host: h, frame: f, self: self, codeAddr: codeAddr, caller: caller}
}

func (h *Host) exec(ctx context.Context, caller, contract common.Address, method string, setup func(*frame) (*Env, error), fn func(*Env) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(inCallKey{}) != nil {
		return revert.ErrReentrantCall
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	ctx = context.WithValue(ctx, inCallKey{}, contract)
	f := newFrame(h.store)

	var env *Env
	defer func() {
		if env != nil {
			contract = env.self
		}
		h.record(caller, contract, method, start, f.dirty(), err)
	}()

	env, err = setup(f)
	if err != nil {
		env = nil
		return err
	}
	if fn != nil {
		if err = runGuarded(env, fn); err != nil {
			return err
		}
	}
	if err = f.commit(ctx); err != nil {
		return errors.Wrap(err, "host: commit")
	}
	return nil
}

// runGuarded 执行合约逻辑，并把 panic 转为错误
func runGuarded(env *Env, fn func(*Env) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host: contract panic at %s: %v", env.codeAddr.Hex(), r)
		}
	}()
	return fn(env)
}

func (h *Host) codeAt(ctx context.Context, f *frame, addr common.Address) (Code, error) {
	w, err := f.get(ctx, statestore.Key{Addr: addr, Slot: CodeSlot})
	if err != nil {
		return nil, err
	}
	if w == (common.Hash{}) {
		return nil, revert.Newf(revert.KindNoCode, "No code at address %s.", addr.Hex())
	}
	code, ok := h.registry.Lookup(w)
	if !ok {
		return nil, revert.Newf(revert.KindNoCode, "Code %s at %s is not registered.", w.Hex(), addr.Hex())
	}
	return code, nil
}

func (h *Host) record(caller, contract common.Address, method string, start time.Time, writes int, err error) {
	status, kind, reason := statusOf(err)
	r := Receipt{
		ID:       uuid.NewString(),
		Contract: contract,
		Caller:   caller,
		Method:   method,
		Status:   status,
		Kind:     kind,
		Reason:   reason,
		At:       start,
		Duration: time.Since(start),
	}
	if status == StatusOK {
		r.Writes = writes
	}

	entry := logger.WithFields(logrus.Fields{
		"contract": contract.Hex(),
		"caller":   caller.Hex(),
		"method":   method,
	})
	switch status {
	case StatusOK:
		entry.Debugf("call ok (writes=%d, %s)", r.Writes, r.Duration)
	case StatusReverted:
		entry.Warnf("call reverted: kind=%s reason=%q", kind, reason)
	default:
		entry.Errorf("call failed: %v", err)
	}
	h.obs.emit(r)
}
