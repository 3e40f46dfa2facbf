// Package metrics 提供 DHT 存储核心的监控指标
//
// 两部分：
//   - Metrics: Prometheus 计数器，覆盖消息、副本、法定人数和完整性事件
//   - Traffic: 消息流量统计（总量/按消息类型/按节点，带 60 秒滑动速率）
//
// 所有 *Metrics 方法对 nil 接收者安全，组件在未启用指标时传入 nil 即可。
//
// # 快速开始
//
//	m := metrics.New("dhtstore")
//	m.MessageSent("store")
//	http.Handle("/metrics", m.Handler())
package metrics
