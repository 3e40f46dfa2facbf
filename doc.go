// Package dhtstore 提供 DHT 分布式存储核心
//
// 节点维护已知存储节点的信誉与容量，按副本策略把键值复制到
// 离键最近的健康存储节点，以法定人数校验读写响应，
// 并以校验和与纠删码保证内容完整性。
//
// # 核心组件
//
//   - nodemgr: 节点记录与信誉
//   - replication: 副本策略、状态跟踪与修复
//   - quorum: 读写法定人数与签名响应校验
//   - messaging: 消息队列、重试、请求/响应关联
//   - integrity: 分块校验、损坏检测与 Reed-Solomon 自愈
//
// # 快速开始
//
//	hub := memnet.NewHub()
//	node, err := dhtstore.Start(ctx,
//	    dhtstore.WithInMemory(),
//	    dhtstore.WithHub(hub),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.AddPeer(peer)
//	status, err := node.Put(ctx, "profile/alice", data)
//
// # 组装方式
//
//	┌──────────────────────────────────────────────────────────┐
//	│  Node (dhtstore.New / dhtstore.Start)                    │
//	├──────────────────────────────────────────────────────────┤
//	│  replication ── quorum ── integrity                      │
//	│       │                                                  │
//	│  messaging ── nodemgr                                    │
//	├──────────────────────────────────────────────────────────┤
//	│  store (BadgerDB)              transport (memnet / 自定义) │
//	└──────────────────────────────────────────────────────────┘
//
// 组件通过 Uber Fx 组装，生命周期由 Node.Start / Node.Stop 驱动。
package dhtstore
