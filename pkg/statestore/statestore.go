// Package statestore 提供按 (合约地址, 槽位) 寻址的 32 字节存储。
//
// 写入只通过 Apply 批量提交：一批写入要么全部可见，要么全部不可见。
package statestore

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrClosed 表示存储已关闭
var ErrClosed = errors.New("statestore: closed")

// Key 存储键：合约地址 + 槽位
type Key struct {
	Addr common.Address
	Slot common.Hash
}

// Write 一次槽位写入。Value 为零值时等价于删除该槽位。
type Write struct {
	Key   Key
	Value common.Hash
}

// Store 槽位存储接口。未写入过的槽位读取为零值。
type Store interface {
	Get(ctx context.Context, key Key) (common.Hash, error)
	Apply(ctx context.Context, writes []Write) error
	Close() error
}

// encodeKey 地址(20字节) || 槽位(32字节)
func encodeKey(k Key) []byte {
	b := make([]byte, 0, common.AddressLength+common.HashLength)
	b = append(b, k.Addr.Bytes()...)
	return append(b, k.Slot.Bytes()...)
}

func decodeKey(b []byte) (Key, bool) {
	if len(b) != common.AddressLength+common.HashLength {
		return Key{}, false
	}
	return Key{
		Addr: common.BytesToAddress(b[:common.AddressLength]),
		Slot: common.BytesToHash(b[common.AddressLength:]),
	}, true
}
