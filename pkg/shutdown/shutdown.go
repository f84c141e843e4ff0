package shutdown

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/betbot/upgradekit/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type entry struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器。
// 回调按注册的逆序串行执行：先停 HTTP，再关账本，最后关存储。
type Manager struct {
	mu      sync.Mutex
	entries []entry
	done    bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, fn Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{name: name, fn: fn})
}

// Shutdown 执行所有关闭回调（只执行一次）。
// ctx 超时后剩余回调仍会被调用，由回调自行根据 ctx 快速返回。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	entries := m.entries
	m.mu.Unlock()

	logger.Infof("开始优雅关闭，共 %d 个回调", len(entries))

	var first error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.fn(ctx); err != nil {
			logger.Warnf("关闭 %s 失败: %v", e.name, err)
			if first == nil {
				first = errors.Wrapf(err, "shutdown %s", e.name)
			}
			continue
		}
		logger.Debugf("已关闭 %s", e.name)
	}
	if ctx.Err() != nil {
		logger.Warnf("关闭超时: %v", ctx.Err())
	}
	return first
}
