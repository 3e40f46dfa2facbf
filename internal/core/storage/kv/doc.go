// Package kv 提供带前缀隔离的 KV 存储抽象层
//
// Store 在底层存储引擎之上提供命名空间隔离，
// 每个组件使用不同的前缀来隔离数据。
//
// # 键空间设计
//
//   - n/ - 节点记录（DhtNode）
//   - r/ - 副本状态（ReplicationStatus）
//   - i/ - 完整性元数据（IntegrityMetadata）
//   - v/ - 本地值存储
//
// # 使用示例
//
//	eng, _ := badger.New(engine.DefaultConfig(path))
//	nodes := kv.New(eng, []byte("n/"))
//	_ = nodes.PutRecord(id.Bytes(), node) // 实际键: n/<id>
package kv
