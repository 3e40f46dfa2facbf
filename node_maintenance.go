package dhtstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dhtstore/internal/dht/integrity"
	"github.com/dep2p/go-dhtstore/internal/dht/replication"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              后台循环
// ════════════════════════════════════════════════════════════════════════════

// startLoops 启动后台修复与完整性巡检
//
// 消息层的过期清理由消息层自身的循环负责。间隔为 0 的循环不启动。
func (n *Node) startLoops(ctx context.Context) {
	if iv := n.config.Replication.RepairInterval.Duration(); iv > 0 {
		n.runEvery(ctx, iv, func(ctx context.Context) { n.Repair(ctx) })
	}
	if iv := n.config.Integrity.ScanInterval.Duration(); iv > 0 {
		n.runEvery(ctx, iv, func(ctx context.Context) { n.CheckIntegrity(ctx) })
	}
}

func (n *Node) runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	n.loopWg.Add(1)
	go func() {
		defer n.loopWg.Done()

		ticker := n.clock.Ticker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// ════════════════════════════════════════════════════════════════════════════
//                              副本修复
// ════════════════════════════════════════════════════════════════════════════

// Repair 执行一轮副本修复
//
// 每个键的候选节点与 Put、Get 使用同一顺序：健康存储节点按与 KeyTarget(key)
// 的距离排序（不含本节点），补齐的副本因此落在其他节点查找该键时询问的范围内。
// 多次调用串行执行。
func (n *Node) Repair(ctx context.Context) replication.RepairStats {
	n.repairMu.Lock()
	defer n.repairMu.Unlock()

	return n.replication.RepairReplicasBy(ctx, func(key string) []*types.DhtNode {
		return n.ReplicaTargets(key, -1)
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              完整性巡检
// ════════════════════════════════════════════════════════════════════════════

// IntegrityStats 一轮完整性巡检的统计
type IntegrityStats struct {
	// Checked 校验通过的内容数
	Checked int

	// Corrupted 检测到损坏的内容数
	Corrupted int

	// Healed 通过校验块修复的内容数
	Healed int

	// Refetched 从副本持有者重新获取的内容数
	Refetched int

	// Removed 本地值已不存在、登记被移除的内容数
	Removed int

	// Failed 无法修复的内容数
	Failed int

	// Err 各内容的错误汇总
	Err error
}

// CheckIntegrity 校验超过检查间隔未校验的本地内容
//
// 损坏的内容先尝试用本地校验块修复，失败后向副本持有者重新获取并校验。
func (n *Node) CheckIntegrity(ctx context.Context) IntegrityStats {
	var stats IntegrityStats

	for _, key := range n.integrity.ListContentNeedingCheck() {
		if ctx.Err() != nil {
			stats.Err = multierr.Append(stats.Err, ctx.Err())
			break
		}

		result, found, err := n.content.Verify(key)
		switch {
		case err != nil:
			stats.Failed++
			stats.Err = multierr.Append(stats.Err, err)
			continue
		case !found:
			n.integrity.Unregister(key)
			stats.Removed++
			continue
		case result.Valid():
			stats.Checked++
			continue
		}

		stats.Corrupted++
		logger.Warn("本地内容损坏", "key", key, "blocks", result.CorruptedIndices())

		healErr := n.healLocal(key)
		if healErr == nil {
			stats.Healed++
			continue
		}
		if n.refetch(ctx, key) {
			stats.Refetched++
			continue
		}
		stats.Failed++
		stats.Err = multierr.Append(stats.Err, healErr)
	}

	if stats.Corrupted > 0 || stats.Removed > 0 {
		logger.Info("完整性巡检完成",
			"checked", stats.Checked,
			"corrupted", stats.Corrupted,
			"healed", stats.Healed,
			"refetched", stats.Refetched,
			"failed", stats.Failed)
	}
	return stats
}

func (n *Node) healLocal(key string) error {
	res, err := n.content.Heal(key)
	if err != nil {
		if !errors.Is(err, integrity.ErrNoErasureCoding) {
			logger.Warn("校验块修复失败", "key", key, "error", err)
		}
		return err
	}
	logger.Info("已用校验块修复内容", "key", key, "blocks", res.HealedIndices)
	return nil
}

// refetch 从副本持有者获取通过校验的值并覆盖本地值
//
// 有副本状态时询问副本节点，否则询问离键最近的健康存储节点。
func (n *Node) refetch(ctx context.Context, key string) bool {
	var candidates []types.NodeID
	if status, ok := n.replication.Status(key); ok {
		candidates = status.ReplicaNodes
	} else {
		for _, peer := range n.ReplicaTargets(key, closerNodesLimit) {
			candidates = append(candidates, peer.ID())
		}
	}

	for _, id := range candidates {
		if id == n.self {
			continue
		}
		resp, err := n.messaging.FindValue(ctx, id, key)
		if err != nil || !resp.Found {
			continue
		}
		result, ok, err := n.content.verifyValue(key, resp.Value)
		if err != nil || !ok || !result.Valid() {
			logger.Debug("远端副本未通过校验", "key", key, "node", id.ShortString())
			continue
		}
		if err := n.content.values.Put(key, resp.Value); err != nil {
			logger.Warn("写入重新获取的值失败", "key", key, "error", err)
			return false
		}
		logger.Info("已从副本恢复内容", "key", key, "node", id.ShortString())
		return true
	}
	return false
}

// ════════════════════════════════════════════════════════════════════════════
//                              指标
// ════════════════════════════════════════════════════════════════════════════

// registerGauges 注册按需取值的组件状态指标
func (n *Node) registerGauges() error {
	if n.metrics == nil {
		return nil
	}

	gauges := []struct {
		subsystem, name, help string
		fn                    func() float64
	}{
		{"nodes", "known", "Known DHT nodes.", func() float64 {
			return float64(n.nodes.Len())
		}},
		{"nodes", "healthy", "Healthy DHT nodes.", func() float64 {
			return float64(len(n.nodes.HealthyNodes()))
		}},
		{"messaging", "queue_length", "Outbound messages waiting to be sent.", func() float64 {
			return float64(n.messaging.QueueLen())
		}},
		{"messaging", "pending_responses", "Requests waiting for a response.", func() float64 {
			return float64(n.messaging.PendingCount())
		}},
		{"replication", "tracked_keys", "Keys with a replication status.", func() float64 {
			return float64(n.replication.Len())
		}},
		{"replication", "keys_needing_repair", "Keys below their repair threshold.", func() float64 {
			return float64(len(n.replication.KeysNeedingRepair()))
		}},
		{"integrity", "content", "Registered content items.", func() float64 {
			return float64(n.integrity.GetStats().TotalContent)
		}},
		{"integrity", "needing_check", "Content items past their check interval.", func() float64 {
			return float64(n.integrity.GetStats().NeedingCheck)
		}},
	}

	var err error
	for _, g := range gauges {
		err = multierr.Append(err, n.metrics.RegisterGauge(g.subsystem, g.name, g.help, g.fn))
	}
	return err
}
