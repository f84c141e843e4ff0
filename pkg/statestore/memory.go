package statestore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory 内存实现，进程退出即丢失。
type Memory struct {
	mu     sync.RWMutex
	slots  map[Key]common.Hash
	closed bool
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[Key]common.Hash)}
}

func (m *Memory) Get(_ context.Context, key Key) (common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return common.Hash{}, ErrClosed
	}
	return m.slots[key], nil
}

func (m *Memory) Apply(_ context.Context, writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, w := range writes {
		if w.Value == (common.Hash{}) {
			delete(m.slots, w.Key)
			continue
		}
		m.slots[w.Key] = w.Value
	}
	return nil
}

// Len 非零槽位数量
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
