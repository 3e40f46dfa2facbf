// Package memnet 提供进程内传输
//
// Hub 连接多个节点的 Endpoint，Endpoint 实现 messaging.Transport。
// 投递是同步的：Send 返回前接收方的 Receive 已经执行完毕。
// 支持按链路或按节点注入故障，用于多节点测试和示例。
//
//	hub := memnet.NewHub()
//	ep := hub.Endpoint(id)
//	svc, _ := messaging.New(id, ep, cfg)
package memnet
