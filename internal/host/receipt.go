package host

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/betbot/upgradekit/internal/revert"
)

// Status 调用结果
type Status string

const (
	StatusOK       Status = "ok"
	StatusReverted Status = "reverted"
	StatusFailed   Status = "failed" // 基础设施错误（存储等）
)

// Receipt 一次调用的记录
type Receipt struct {
	ID       string         `json:"id"`
	Contract common.Address `json:"contract"`
	Caller   common.Address `json:"caller"`
	Method   string         `json:"method"`
	Status   Status         `json:"status"`
	Kind     string         `json:"kind,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Writes   int            `json:"writes"`
	At       time.Time      `json:"at"`
	Duration time.Duration  `json:"duration"`
}

func statusOf(err error) (Status, string, string) {
	if err == nil {
		return StatusOK, "", ""
	}
	var re *revert.Error
	if errors.As(err, &re) {
		return StatusReverted, re.Kind.String(), re.Reason
	}
	return StatusFailed, "", err.Error()
}

// Observer 接收调用记录。在宿主锁内同步调用，实现必须快速返回且不得回调宿主。
type Observer interface {
	OnReceipt(Receipt)
}

// ObserverFunc 函数适配器
type ObserverFunc func(Receipt)

func (f ObserverFunc) OnReceipt(r Receipt) { f(r) }

type observers struct {
	mu   sync.RWMutex
	list []Observer
}

func (o *observers) add(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
}

func (o *observers) emit(r Receipt) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.list {
		obs.OnReceipt(r)
	}
}
