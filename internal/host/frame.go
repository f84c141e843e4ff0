package host

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/upgradekit/pkg/statestore"
)

// frame 一次调用（或一次委托子调用）的写缓冲。
// 读取依次查找本层、父层、底层存储；成功时合并到父层，失败时整体丢弃。
type frame struct {
	parent *frame
	base   statestore.Store
	writes map[statestore.Key]common.Hash
	order  []statestore.Key
}

func newFrame(base statestore.Store) *frame {
	return &frame{base: base, writes: make(map[statestore.Key]common.Hash)}
}

func (f *frame) child() *frame {
	return &frame{parent: f, base: f.base, writes: make(map[statestore.Key]common.Hash)}
}

func (f *frame) get(ctx context.Context, k statestore.Key) (common.Hash, error) {
	for cur := f; cur != nil; cur = cur.parent {
		if v, ok := cur.writes[k]; ok {
			return v, nil
		}
	}
	return f.base.Get(ctx, k)
}

func (f *frame) set(k statestore.Key, v common.Hash) {
	if _, ok := f.writes[k]; !ok {
		f.order = append(f.order, k)
	}
	f.writes[k] = v
}

// merge 将子层写入并入父层
func (f *frame) merge() {
	if f.parent == nil {
		return
	}
	for _, k := range f.order {
		f.parent.set(k, f.writes[k])
	}
}

func (f *frame) dirty() int { return len(f.order) }

// commit 把顶层写入一次性交给底层存储
func (f *frame) commit(ctx context.Context) error {
	if f.parent != nil || len(f.order) == 0 {
		return nil
	}
	writes := make([]statestore.Write, 0, len(f.order))
	for _, k := range f.order {
		writes = append(writes, statestore.Write{Key: k, Value: f.writes[k]})
	}
	return f.base.Apply(ctx, writes)
}
