package engine

// Engine 存储引擎接口
type Engine interface {
	// Get 获取指定键的值，键不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 设置键值对
	Put(key, value []byte) error

	// Delete 删除指定键
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建新的批量写入对象
	//
	// 批量写入将多个操作合并为一次原子写入，全部可见或全部不可见。
	NewBatch() Batch

	// NewPrefixIterator 创建前缀迭代器
	//
	// 调用者负责在使用后调用 Close()。
	NewPrefixIterator(prefix []byte) Iterator

	// Start 启动存储引擎（后台 GC 等）
	Start() error

	// Sync 同步数据到磁盘
	Sync() error

	// Stats 获取引擎统计信息
	Stats() *Stats

	// Close 关闭存储引擎
	Close() error
}

// Batch 批量写入接口
//
// Batch 不是线程安全的，不应在多个 goroutine 中并发使用。
type Batch interface {
	// Put 添加一个写入操作
	Put(key, value []byte)

	// Delete 添加一个删除操作
	Delete(key []byte)

	// Write 原子性地写入所有操作，成功后自动重置；失败时不写入任何操作
	Write() error

	// Reset 清空所有待写入的操作
	Reset()

	// Size 返回待写入的操作数量
	Size() int
}

// Iterator 迭代器接口
//
// 使用模式:
//
//	iter := eng.NewPrefixIterator(prefix)
//	defer iter.Close()
//
//	for iter.First(); iter.Valid(); iter.Next() {
//	    key := iter.Key()
//	    value := iter.Value()
//	}
//
//	if err := iter.Error(); err != nil {
//	    return err
//	}
type Iterator interface {
	// First 移动到第一个键值对
	First() bool

	// Next 移动到下一个键值对
	Next() bool

	// Valid 检查迭代器是否指向有效位置
	Valid() bool

	// Key 返回当前键的副本
	Key() []byte

	// Value 返回当前值的副本
	Value() []byte

	// Close 释放迭代器资源
	Close()

	// Error 返回迭代过程中的错误
	Error() error
}

// Stats 引擎统计信息
type Stats struct {
	KeyCount   int64 `json:"key_count"`
	DiskSize   int64 `json:"disk_size"`
	LSMSize    int64 `json:"lsm_size"`
	VlogSize   int64 `json:"vlog_size"`
	NumWrites  int64 `json:"num_writes"`
	NumReads   int64 `json:"num_reads"`
	NumDeletes int64 `json:"num_deletes"`
}
