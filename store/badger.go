package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/feedrank/core"
)

// BadgerStore 是基于 BadgerDB 的嵌入式持久化 KeyValueStore，适合单机部署。
//
// key 布局：
//   - 普通值：v:{key}
//   - Hash 字段：h:{key}\x00{field}
//   - 有序集合成员：z:{key}\x00{member}，值为 8 字节 float64
type BadgerStore struct {
	db *badger.DB
}

const badgerSep = "\x00"

// OpenBadgerStore 打开 dir 下的数据库；dir 为空时使用纯内存模式。
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

var _ core.KeyValueStore = (*BadgerStore)(nil)

func (b *BadgerStore) Name() string { return "badger" }

func valueKey(key string) []byte        { return []byte("v:" + key) }
func hashPrefix(key string) []byte      { return []byte("h:" + key + badgerSep) }
func zsetPrefix(key string) []byte      { return []byte("z:" + key + badgerSep) }
func hashKey(key, field string) []byte  { return append(hashPrefix(key), field...) }
func zsetKey(key, member string) []byte { return append(zsetPrefix(key), member...) }

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(valueKey(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return out, err
}

func (b *BadgerStore) Set(_ context.Context, key string, value []byte, ttl ...int) error {
	e := badger.NewEntry(valueKey(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	})
}

// Delete 删除 key 及同名的 Hash 与有序集合。
func (b *BadgerStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(valueKey(key)); err != nil {
			return err
		}
		for _, prefix := range [][]byte{hashPrefix(key), zsetPrefix(key)} {
			var keys [][]byte
			err := scanPrefix(txn, prefix, false, func(k, _ []byte) error {
				keys = append(keys, k)
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (b *BadgerStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get(valueKey(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get %s: %w", k, err)
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BadgerStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(zsetKey(key, member), buf[:])
	})
}

// ZRange 按 score 降序返回 [start, stop] 区间成员，score 相同时按 member 升序。
func (b *BadgerStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	type pair struct {
		member string
		score  float64
	}
	var pairs []pair
	prefix := zsetPrefix(key)
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, true, func(k, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("zset %s: corrupt score for %q", key, k[len(prefix):])
			}
			pairs = append(pairs, pair{
				member: string(k[len(prefix):]),
				score:  math.Float64frombits(binary.BigEndian.Uint64(v)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].member < pairs[j].member
	})

	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, pairs[i].member)
	}
	return out, nil
}

func (b *BadgerStore) HSet(_ context.Context, key, field string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(hashKey(key, field), value)
	})
}

func (b *BadgerStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	prefix := hashPrefix(key)
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, true, func(k, v []byte) error {
			result[string(k[len(prefix):])] = v
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BadgerStore) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// scanPrefix 遍历 prefix 下的 key；传给 fn 的 key 与 value 都是副本。
func scanPrefix(txn *badger.Txn, prefix []byte, withValues bool, fn func(k, v []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = withValues
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v []byte
		if withValues {
			var err error
			if v, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		if err := fn(item.KeyCopy(nil), v); err != nil {
			return err
		}
	}
	return nil
}
