package versioned

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/betbot/upgradekit/internal/access"
	"github.com/betbot/upgradekit/internal/host"
	"github.com/betbot/upgradekit/internal/revert"
)

// 存储布局。两个版本共用，只允许在末尾追加新字段。
var (
	CounterSlot = common.BigToHash(common.Big0)
	PausedSlot  = common.BigToHash(common.Big1)
)

// State 持久化字段的快照
type State struct {
	Counter *uint256.Int `json:"counter"`
	Paused  bool         `json:"paused"`
}

// Layout 两个版本共享的状态访问（数据，不含逻辑）。
type Layout struct {
	env *host.Env
}

func At(env *host.Env) Layout { return Layout{env: env} }

func (l Layout) Counter() (*uint256.Int, error) { return l.env.LoadUint(CounterSlot) }

func (l Layout) SetCounter(v *uint256.Int) { l.env.StoreUint(CounterSlot, v) }

func (l Layout) Paused() (bool, error) { return l.env.LoadBool(PausedSlot) }

func (l Layout) SetPaused(p bool) { l.env.StoreBool(PausedSlot, p) }

func (l Layout) State() (State, error) {
	c, err := l.Counter()
	if err != nil {
		return State{}, err
	}
	p, err := l.Paused()
	if err != nil {
		return State{}, err
	}
	return State{Counter: c, Paused: p}, nil
}

// increment 先检查暂停，再做不回绕的 +1
func (l Layout) increment() error {
	paused, err := l.Paused()
	if err != nil {
		return err
	}
	if paused {
		return revert.ErrContractPaused
	}
	c, err := l.Counter()
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(c, uint256.NewInt(1))
	if overflow {
		return revert.ErrCounterOverflow
	}
	l.SetCounter(next)
	return nil
}

func (l Layout) togglePaused() error {
	if err := l.env.Authorize(access.OpTogglePause); err != nil {
		return err
	}
	p, err := l.Paused()
	if err != nil {
		return err
	}
	l.SetPaused(!p)
	return nil
}
