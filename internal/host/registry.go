package host

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Code 可部署的合约逻辑。ID 在整个进程内唯一，且跨版本稳定：
// 合约地址的 code 槽位只保存 keccak256(ID)，重启后按 ID 重新解析出逻辑。
type Code interface {
	ID() string
}

// CodeHash 逻辑标识写入存储时的形式
func CodeHash(id string) common.Hash {
	return crypto.Keccak256Hash([]byte(id))
}

// Registry 代码注册表：codeHash -> Code
type Registry struct {
	mu    sync.RWMutex
	codes map[common.Hash]Code
}

func NewRegistry() *Registry {
	return &Registry{codes: make(map[common.Hash]Code)}
}

// Register 注册逻辑。同一 ID 重复注册同一实现是允许的。
func (r *Registry) Register(codes ...Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range codes {
		if c == nil || c.ID() == "" {
			return errors.New("host: code without id")
		}
		h := CodeHash(c.ID())
		if prev, ok := r.codes[h]; ok && prev != c {
			return errors.Errorf("host: code %q already registered", c.ID())
		}
		r.codes[h] = c
	}
	return nil
}

// MustRegister 供 init 阶段使用
func (r *Registry) MustRegister(codes ...Code) {
	if err := r.Register(codes...); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(h common.Hash) (Code, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codes[h]
	return c, ok
}

func (r *Registry) Registered(c Code) bool {
	_, ok := r.Lookup(CodeHash(c.ID()))
	return ok
}
