package statestore

import (
	"context"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Badger 基于 Badger 的持久化实现。
// 每次 Apply 在一个 Badger 事务内完成，保证整批写入的原子性。
type Badger struct {
	db *badger.DB
}

type BadgerOptions struct {
	Path          string
	EncryptionKey []byte // 32 bytes; nil 表示不加密
	InMemory      bool
}

func OpenBadger(opts BadgerOptions) (*Badger, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, errors.New("statestore: badger path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)
	if len(opts.EncryptionKey) > 0 {
		// Badger 加密需要 index cache
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "statestore: open badger")
	}
	return &Badger{db: db}, nil
}

func (s *Badger) Get(_ context.Context, key Key) (common.Hash, error) {
	if s == nil || s.db == nil {
		return common.Hash{}, ErrClosed
	}
	var out common.Hash
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encodeKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			out = common.BytesToHash(val)
			return nil
		})
	})
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "statestore: get %s/%s", key.Addr.Hex(), key.Slot.Hex())
	}
	return out, nil
}

func (s *Badger) Apply(_ context.Context, writes []Write) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if len(writes) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			k := encodeKey(w.Key)
			if w.Value == (common.Hash{}) {
				if err := txn.Delete(k); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(k, w.Value.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "statestore: apply")
}

// Each 遍历所有非零槽位（调试/导出用）。
func (s *Badger) Each(fn func(Key, common.Hash) error) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, ok := decodeKey(item.KeyCopy(nil))
			if !ok {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, common.BytesToHash(val)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Badger) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
