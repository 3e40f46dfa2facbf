// Package types 定义 DHT 存储核心的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go  - NodeID、Base58 表示、XOR 距离与 Kademlia 辅助函数
//   - node.go - DhtNode 节点记录、PeerIdentity、StorageCapabilities
//
// # 类型分类
//
// ID 类型:
//   - NodeID   - 节点唯一标识（公钥派生，Base58 编码）
//   - Distance - 两个 NodeID 之间的 XOR 距离
//
// 节点记录:
//   - DhtNode             - 身份、地址、信誉快照、最后活跃时间、存储能力
//   - StorageCapabilities - 可用空间、容量、存储层级、区域
//
// # 设计原则
//
//  1. 不可变性：NodeID 创建后不可修改，使用值类型
//  2. 可比较性：NodeID 可作为 map key，并定义字节序全序
//  3. 可序列化：节点记录带 CBOR 整数键与 JSON 标签
//
// # 使用示例
//
//	import "github.com/dep2p/go-dhtstore/pkg/types"
//
//	id, err := types.ParseNodeID("3yZe7d...")
//	closer := types.CompareDistance(a, b, target) < 0
package types
