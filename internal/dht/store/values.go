package store

import (
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/core/storage/kv"
)

// ValueStore 本地值存储
//
// 保存本节点持有的键值对：本地 Put 的数据和其他节点复制过来的副本。
type ValueStore struct {
	kv *kv.Store
}

// NewValueStore 创建本地值存储
func NewValueStore(eng engine.Engine) *ValueStore {
	return &ValueStore{kv: kv.New(eng, PrefixValues)}
}

// Put 写入值
func (s *ValueStore) Put(key string, value []byte) error {
	if key == "" {
		return engine.ErrEmptyKey
	}
	return s.kv.Put([]byte(key), value)
}

// PutBatch 把值写入加入批量
func (s *ValueStore) PutBatch(b engine.Batch, key string, value []byte) error {
	if key == "" {
		return engine.ErrEmptyKey
	}
	s.kv.PutBatch(b, []byte(key), value)
	return nil
}

// DeleteBatch 把值删除加入批量
func (s *ValueStore) DeleteBatch(b engine.Batch, key string) {
	if key == "" {
		return
	}
	s.kv.DeleteBatch(b, []byte(key))
}

// Get 读取值，不存在时返回 (nil, false, nil)
func (s *ValueStore) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	v, err := s.kv.Get([]byte(key))
	if err != nil {
		if engine.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Has 检查值是否存在
func (s *ValueStore) Has(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	return s.kv.Has([]byte(key))
}

// Delete 删除值
func (s *ValueStore) Delete(key string) error {
	if key == "" {
		return nil
	}
	return s.kv.Delete([]byte(key))
}

// Keys 返回所有键
func (s *ValueStore) Keys() ([]string, error) {
	raw, err := s.kv.Keys(nil)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(raw))
	for i, k := range raw {
		keys[i] = string(k)
	}
	return keys, nil
}

// Count 返回值数量
func (s *ValueStore) Count() (int64, error) {
	return s.kv.Count(nil)
}
