// Package engine 定义持久化存储引擎接口
//
// DHT 存储核心的节点记录、副本状态、完整性元数据和本地值
// 都通过本接口落盘，具体实现见 engine/badger。
//
// # 线程安全
//
// 所有接口实现必须保证线程安全。批量操作在提交前
// 是独立的，不影响其他并发操作。
package engine
