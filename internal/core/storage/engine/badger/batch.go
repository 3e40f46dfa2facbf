package badger

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
)

// batchOp 待提交的单个操作
type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// txnBatch 在单个读写事务中提交的批量写入
//
// badger.WriteBatch 超出事务上限时会拆成多次提交，
// 值与其校验块需要同时可见，这里改为一次 Update 提交全部操作。
// 操作数超过事务上限时 Write 返回 engine.ErrTransactionTooLarge，不会部分写入。
type txnBatch struct {
	db  *Engine
	ops []batchOp
}

// Put 添加写入操作，空键被忽略
func (b *txnBatch) Put(key, value []byte) {
	if len(key) == 0 {
		return
	}
	b.ops = append(b.ops, batchOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

// Delete 添加删除操作，空键被忽略
func (b *txnBatch) Delete(key []byte) {
	if len(key) == 0 {
		return
	}
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), del: true})
}

// Write 原子提交全部操作，成功后清空批量
func (b *txnBatch) Write() error {
	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	if b.db.config.ReadOnly {
		return engine.ErrReadOnly
	}
	if len(b.ops) == 0 {
		return nil
	}

	var puts, dels int64
	err := b.db.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if op.del {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
				dels++
				continue
			}
			if err := txn.Set(op.key, op.value); err != nil {
				return err
			}
			puts++
		}
		return nil
	})
	if err != nil {
		return convertError(err)
	}

	b.db.stats.numWrites.Add(puts)
	b.db.stats.numDeletes.Add(dels)
	b.ops = b.ops[:0]
	return nil
}

// Reset 丢弃未提交的操作
func (b *txnBatch) Reset() {
	b.ops = b.ops[:0]
}

// Size 返回未提交的操作数
func (b *txnBatch) Size() int {
	return len(b.ops)
}

var _ engine.Batch = (*txnBatch)(nil)
