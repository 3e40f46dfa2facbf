package kv

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
)

// recordEncMode 记录编码模式（确定性编码，时间保留纳秒精度）
var recordEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Store 带前缀隔离的 KV 存储
type Store struct {
	engine engine.Engine
	prefix []byte
	mu     sync.RWMutex
}

// New 创建新的 KVStore
//
// 参数:
//   - eng: 底层存储引擎
//   - prefix: 键前缀（所有操作会自动添加此前缀）
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

// prefixKey 为键添加前缀
func (s *Store) prefixKey(key []byte) []byte {
	if len(s.prefix) == 0 {
		return key
	}
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// stripPrefix 从键中移除前缀
func (s *Store) stripPrefix(key []byte) []byte {
	if len(s.prefix) == 0 || len(key) < len(s.prefix) {
		return key
	}
	return key[len(s.prefix):]
}

// ============= 基础操作 =============

// Get 获取指定键的值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 设置键值对
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除指定键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// Has 检查键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// ============= 记录编解码 =============

// GetRecord 获取并以 CBOR 反序列化记录
func (s *Store) GetRecord(key []byte, v interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(data, v); err != nil {
		return engine.ErrCorrupted
	}
	return nil
}

// PutRecord 以 CBOR 序列化并存储记录
func (s *Store) PutRecord(key []byte, v interface{}) error {
	data, err := recordEncMode.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(key, data)
}

// ============= 批量写入 =============

// PutBatch 把写入操作加入批量
func (s *Store) PutBatch(b engine.Batch, key, value []byte) {
	b.Put(s.prefixKey(key), value)
}

// DeleteBatch 把删除操作加入批量
func (s *Store) DeleteBatch(b engine.Batch, key []byte) {
	b.Delete(s.prefixKey(key))
}

// PutRecordBatch 以 CBOR 序列化记录并加入批量
func (s *Store) PutRecordBatch(b engine.Batch, key []byte, v interface{}) error {
	data, err := recordEncMode.Marshal(v)
	if err != nil {
		return err
	}
	s.PutBatch(b, key, data)
	return nil
}

// ============= 前缀迭代 =============

// PrefixScan 扫描指定前缀的所有键值对
//
// 回调函数返回 false 时停止扫描。
// 返回的 key 已去除 Store 的前缀，但保留 subPrefix。
func (s *Store) PrefixScan(subPrefix []byte, fn func(key, value []byte) bool) error {
	iter := s.engine.NewPrefixIterator(s.prefixKey(subPrefix))
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(s.stripPrefix(iter.Key()), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// ScanRecords 按前缀遍历并解码所有记录
//
// newRecord 为每条记录返回一个新的解码目标，
// fn 返回 false 时停止遍历。无法解码的记录被跳过并计入返回值。
func (s *Store) ScanRecords(subPrefix []byte, newRecord func() interface{}, fn func(key []byte, rec interface{}) bool) (skipped int, err error) {
	err = s.PrefixScan(subPrefix, func(key, value []byte) bool {
		rec := newRecord()
		if uerr := cbor.Unmarshal(value, rec); uerr != nil {
			skipped++
			return true
		}
		return fn(key, rec)
	})
	return skipped, err
}

// Keys 返回指定前缀的所有键
func (s *Store) Keys(subPrefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.PrefixScan(subPrefix, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	return keys, err
}

// Count 统计指定前缀的键数量
func (s *Store) Count(subPrefix []byte) (int64, error) {
	var count int64
	err := s.PrefixScan(subPrefix, func(_, _ []byte) bool {
		count++
		return true
	})
	return count, err
}

// DeletePrefix 删除指定前缀的所有键
func (s *Store) DeletePrefix(subPrefix []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.Keys(subPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	batch := s.engine.NewBatch()
	for _, key := range keys {
		batch.Delete(s.prefixKey(key))
	}
	return batch.Write()
}

// ============= 辅助方法 =============

// Prefix 返回当前 Store 的前缀
func (s *Store) Prefix() []byte {
	return s.prefix
}

// SubStore 创建子存储（在当前前缀基础上添加子前缀）
func (s *Store) SubStore(subPrefix []byte) *Store {
	return New(s.engine, s.prefixKey(subPrefix))
}
