package store

import (
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/core/storage/kv"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
)

var logger = log.Logger("dht/store")

// 键前缀
var (
	PrefixNodes     = []byte("n/")
	PrefixStatuses  = []byte("r/")
	PrefixIntegrity = []byte("i/")
	PrefixValues    = []byte("v/")
	PrefixParity    = []byte("p/")
)

// Collection 一组同类型的持久化记录
type Collection[T any] struct {
	kv   *kv.Store
	name string
}

// NewCollection 在引擎上创建带前缀的记录集合
func NewCollection[T any](eng engine.Engine, prefix []byte) *Collection[T] {
	return &Collection[T]{
		kv:   kv.New(eng, prefix),
		name: string(prefix),
	}
}

// Put 写入记录
func (c *Collection[T]) Put(key []byte, v *T) error {
	return c.kv.PutRecord(key, v)
}

// PutBatch 把记录写入加入批量，随 Batch.Write 一起提交
func (c *Collection[T]) PutBatch(b engine.Batch, key []byte, v *T) error {
	return c.kv.PutRecordBatch(b, key, v)
}

// DeleteBatch 把记录删除加入批量
func (c *Collection[T]) DeleteBatch(b engine.Batch, key []byte) {
	c.kv.DeleteBatch(b, key)
}

// Get 读取记录，不存在时返回 (nil, false, nil)
func (c *Collection[T]) Get(key []byte) (*T, bool, error) {
	v := new(T)
	if err := c.kv.GetRecord(key, v); err != nil {
		if engine.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Delete 删除记录，记录不存在不视为错误
func (c *Collection[T]) Delete(key []byte) error {
	return c.kv.Delete(key)
}

// ForEach 遍历所有记录
//
// fn 返回 false 时停止。无法解码的记录被跳过。
func (c *Collection[T]) ForEach(fn func(key []byte, v *T) bool) error {
	skipped, err := c.kv.ScanRecords(nil,
		func() interface{} { return new(T) },
		func(key []byte, rec interface{}) bool {
			return fn(key, rec.(*T))
		},
	)
	if skipped > 0 {
		logger.Warn("跳过无法解码的记录", "collection", c.name, "count", skipped)
	}
	return err
}

// Count 返回记录数量
func (c *Collection[T]) Count() (int64, error) {
	return c.kv.Count(nil)
}

// Clear 删除集合内所有记录
func (c *Collection[T]) Clear() error {
	return c.kv.DeletePrefix(nil)
}
