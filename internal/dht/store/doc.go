// Package store 提供 DHT 存储核心的持久化
//
// 所有记录存放在同一个存储引擎中，按前缀隔离：
//
//	前缀 | 内容
//	-----|---------------------------
//	n/   | 节点记录（types.DhtNode）
//	r/   | 副本状态
//	i/   | 完整性元数据
//	v/   | 本地值
//	p/   | 纠删码校验块
//
// Collection 是泛型的 CBOR 记录集合，组件只依赖各自定义的持久化接口，
// 本包不依赖任何组件包。
package store
