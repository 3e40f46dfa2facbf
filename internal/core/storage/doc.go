// Package storage 提供统一的持久化存储服务
//
// Storage 模块基于 BadgerDB 实现，为 DHT 存储核心提供统一的键值存储后端。
//
// # 架构
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                      使用方模块                              │
//	│      NodeManager | Replication | Integrity | ValueStore     │
//	└─────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────┐
//	│                     storage (本包)                          │
//	│  ┌─────────────────────────────────────────────────────┐   │
//	│  │          KVStore（带前缀隔离，CBOR 记录）            │   │
//	│  └─────────────────────────────────────────────────────┘   │
//	│                              │                              │
//	│  ┌─────────────────────────────────────────────────────┐   │
//	│  │                  engine/badger                      │   │
//	│  └─────────────────────────────────────────────────────┘   │
//	└─────────────────────────────────────────────────────────────┘
//
// # 使用示例
//
// 使用 Fx 依赖注入：
//
//	app := fx.New(
//	    storage.Module(),
//	    // ... 其他模块
//	)
//
// 手动创建：
//
//	eng, err := storage.NewEngine(storage.DefaultConfig().WithInMemory(true))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	nodes := storage.NewKVStore(eng, []byte("n/"))
//
// # 线程安全
//
// 所有公开的类型和方法都是线程安全的。
package storage
