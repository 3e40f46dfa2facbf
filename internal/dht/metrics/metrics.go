package metrics

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 结果标签值
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultMet     = "met"
	ResultNotMet  = "not_met"
)

// Metrics DHT 存储核心的 Prometheus 指标
type Metrics struct {
	namespace string
	registry  *prometheus.Registry
	traffic   *Traffic

	messagesSent       *prometheus.CounterVec
	messagesReceived   *prometheus.CounterVec
	messagesRetried    prometheus.Counter
	messagesDropped    prometheus.Counter
	responsesMatched   prometheus.Counter
	responsesUnmatched prometheus.Counter
	repliesReplayed    prometheus.Counter
	pendingCleared     prometheus.Counter

	replicaDeliveries *prometheus.CounterVec
	repairKeys        *prometheus.CounterVec

	quorumChecks     *prometheus.CounterVec
	quorumRejections *prometheus.CounterVec

	corruptBlocks prometheus.Counter
	healedBlocks  prometheus.Counter
}

// New 创建指标集合，使用独立的 Registry
func New(namespace string) *Metrics {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	counterVec := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}

	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		traffic:   NewTraffic(clock.New()),

		messagesSent:       counterVec("messaging", "sent_total", "Messages handed to the transport.", "kind"),
		messagesReceived:   counterVec("messaging", "received_total", "Inbound messages decoded.", "kind"),
		messagesRetried:    counter("messaging", "retried_total", "Messages rescheduled after a send failure."),
		messagesDropped:    counter("messaging", "dropped_total", "Messages dropped after exhausting retries."),
		responsesMatched:   counter("messaging", "responses_matched_total", "Responses delivered to a waiting caller."),
		responsesUnmatched: counter("messaging", "responses_unmatched_total", "Responses without a waiting caller."),
		repliesReplayed:    counter("messaging", "replayed_total", "Responses rejected by the replay cache."),
		pendingCleared:     counter("messaging", "pending_cleared_total", "Pending response entries purged by cleanup."),

		replicaDeliveries: counterVec("replication", "deliveries_total", "Per-node replica deliveries.", "result"),
		repairKeys:        counterVec("replication", "repair_keys_total", "Keys processed by repair cycles.", "result"),

		quorumChecks:     counterVec("quorum", "checks_total", "Quorum checks.", "op", "result"),
		quorumRejections: counterVec("quorum", "rejections_total", "Signed responses excluded from quorum.", "reason"),

		corruptBlocks: counter("integrity", "corrupt_blocks_total", "Corrupted blocks detected by verification."),
		healedBlocks:  counter("integrity", "healed_blocks_total", "Blocks reconstructed from parity."),
	}

	m.registry.MustRegister(
		m.messagesSent, m.messagesReceived, m.messagesRetried, m.messagesDropped,
		m.responsesMatched, m.responsesUnmatched, m.repliesReplayed, m.pendingCleared,
		m.replicaDeliveries, m.repairKeys,
		m.quorumChecks, m.quorumRejections,
		m.corruptBlocks, m.healedBlocks,
	)
	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Traffic 返回消息流量统计
func (m *Metrics) Traffic() *Traffic {
	if m == nil {
		return nil
	}
	return m.traffic
}

// RegisterGauge 注册按需取值的 Gauge
//
// 用于在采集时读取组件状态，例如节点数、队列长度。
func (m *Metrics) RegisterGauge(subsystem, name, help string, fn func() float64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help,
	}, fn))
}

// ============================================================================
//                              消息层
// ============================================================================

// MessageSent 记录发送的消息
func (m *Metrics) MessageSent(kind string, size int) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(kind).Inc()
	m.traffic.LogSent(kind, int64(size))
}

// MessageReceived 记录接收的消息
func (m *Metrics) MessageReceived(kind string, size int) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(kind).Inc()
	m.traffic.LogRecv(kind, int64(size))
}

// MessageRetried 记录重试
func (m *Metrics) MessageRetried() {
	if m == nil {
		return
	}
	m.messagesRetried.Inc()
}

// MessageDropped 记录丢弃
func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.messagesDropped.Inc()
}

// ResponseMatched 记录响应匹配结果
func (m *Metrics) ResponseMatched(matched bool) {
	if m == nil {
		return
	}
	if matched {
		m.responsesMatched.Inc()
	} else {
		m.responsesUnmatched.Inc()
	}
}

// ReplayRejected 记录重放拒绝
func (m *Metrics) ReplayRejected() {
	if m == nil {
		return
	}
	m.repliesReplayed.Inc()
}

// PendingCleared 记录清理的等待项
func (m *Metrics) PendingCleared(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingCleared.Add(float64(n))
}

// ============================================================================
//                              副本
// ============================================================================

// ReplicaDelivered 记录单个副本投递结果
func (m *Metrics) ReplicaDelivered(ok bool) {
	if m == nil {
		return
	}
	m.replicaDeliveries.WithLabelValues(result(ok, ResultSuccess, ResultFailure)).Inc()
}

// RepairCompleted 记录修复周期结果
func (m *Metrics) RepairCompleted(successful, failed int) {
	if m == nil {
		return
	}
	m.repairKeys.WithLabelValues(ResultSuccess).Add(float64(successful))
	m.repairKeys.WithLabelValues(ResultFailure).Add(float64(failed))
}

// ============================================================================
//                              法定人数
// ============================================================================

// QuorumChecked 记录法定人数检查
func (m *Metrics) QuorumChecked(op string, met bool) {
	if m == nil {
		return
	}
	m.quorumChecks.WithLabelValues(op, result(met, ResultMet, ResultNotMet)).Inc()
}

// QuorumRejected 记录被排除的签名响应
func (m *Metrics) QuorumRejected(reason string) {
	if m == nil {
		return
	}
	m.quorumRejections.WithLabelValues(reason).Inc()
}

// ============================================================================
//                              完整性
// ============================================================================

// CorruptionDetected 记录检测到的损坏块
func (m *Metrics) CorruptionDetected(blocks int) {
	if m == nil || blocks <= 0 {
		return
	}
	m.corruptBlocks.Add(float64(blocks))
}

// BlocksHealed 记录修复的块
func (m *Metrics) BlocksHealed(blocks int) {
	if m == nil || blocks <= 0 {
		return
	}
	m.healedBlocks.Add(float64(blocks))
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
