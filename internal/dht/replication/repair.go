package replication

import (
	"context"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// RepairStats 一轮修复的统计
type RepairStats struct {
	// Attempted 尝试修复的键数
	Attempted int

	// Successful 修复后不再需要修复的键数
	Successful int

	// Failed 修复失败的键数
	Failed int

	// NewReplicas 本轮新增的副本数
	NewReplicas int

	// Err 各键失败原因的聚合，可用 multierr.Errors 展开
	Err error
}

// CandidateFunc 返回修复某个键时按优先级排序的候选节点
type CandidateFunc func(key string) []*types.DhtNode

// RepairReplicas 修复所有副本不足的键
//
// 所有键共用同一组按优先级排序的候选节点 available。
// 需要按键选择候选节点时使用 RepairReplicasBy。
func (m *Manager) RepairReplicas(ctx context.Context, available []*types.DhtNode) RepairStats {
	return m.RepairReplicasBy(ctx, func(string) []*types.DhtNode { return available })
}

// RepairReplicasBy 修复所有副本不足的键，候选节点由 candidates 按键给出
//
// 对每个 RepairNeeded 的键，从候选中排除已持有副本的节点和本地节点，
// 按顺序向缺口数量的节点投递。只把新成功的节点加入副本集，失败不影响已有副本。
// 单个键的失败不会中断整轮修复，统计总是返回。
// 已满足修复阈值的键被跳过，因此无成员变化时重复执行不会产生新的修复。
func (m *Manager) RepairReplicasBy(ctx context.Context, candidates CandidateFunc) RepairStats {
	var stats RepairStats

	for _, key := range m.KeysNeedingRepair() {
		if ctx.Err() != nil {
			stats.Err = multierr.Append(stats.Err, ctx.Err())
			break
		}

		stats.Attempted++
		added, err := m.repairKey(ctx, key, candidates(key))
		stats.NewReplicas += added
		if err != nil {
			stats.Failed++
			stats.Err = multierr.Append(stats.Err, err)
			continue
		}
		stats.Successful++
	}

	m.metrics.RepairCompleted(stats.Successful, stats.Failed)
	if stats.Attempted > 0 {
		logger.Info("副本修复完成",
			"attempted", stats.Attempted,
			"successful", stats.Successful,
			"failed", stats.Failed,
			"new_replicas", stats.NewReplicas)
	}
	return stats
}

// repairKey 修复单个键，返回新增副本数
func (m *Manager) repairKey(ctx context.Context, key string, available []*types.DhtNode) (int, error) {
	m.mu.RLock()
	s, ok := m.statuses[key]
	if !ok || !s.RepairNeeded {
		m.mu.RUnlock()
		return 0, nil
	}
	status := s.Clone()
	m.mu.RUnlock()

	policy := m.Policy(status.Category)
	if policy.MaxRepairAttempts > 0 && status.RepairAttempts >= policy.MaxRepairAttempts {
		return 0, newError("repair", key, ErrRepairAttemptsExhausted, "%d attempts", status.RepairAttempts)
	}

	needed := status.Missing()
	candidates := make([]*types.DhtNode, 0, needed)
	for _, node := range available {
		if len(candidates) == needed {
			break
		}
		if node == nil || node.ID() == m.self || status.HasReplica(node.ID()) {
			continue
		}
		candidates = append(candidates, node)
	}
	if len(candidates) == 0 {
		return 0, newError("repair", key, ErrNoRepairCandidates, "need %d", needed)
	}

	value, err := m.sourceValue(key)
	if err != nil {
		return 0, err
	}

	results := m.deliverAll(ctx, candidates, key, value)

	m.mu.Lock()
	s, ok = m.statuses[key]
	if !ok {
		// 修复期间状态被删除
		m.mu.Unlock()
		return 0, nil
	}
	added := 0
	for i, node := range candidates {
		if results[i] == nil {
			if !s.HasReplica(node.ID()) {
				added++
			}
			s.recordSuccess(node.ID())
		} else {
			s.recordFailure(node.ID())
		}
	}
	s.RepairAttempts++
	s.evaluate(m.clock.Now())
	snapshot := s.Clone()
	m.mu.Unlock()

	m.persist(snapshot)

	if snapshot.RepairNeeded {
		return added, newError("repair", key, ErrUnderReplicated,
			"%d replicas, threshold %d", snapshot.TotalReplicas, snapshot.RepairThreshold)
	}
	logger.Debug("键修复完成", "key", key, "added", added, "replicas", snapshot.TotalReplicas)
	return added, nil
}

func (m *Manager) sourceValue(key string) ([]byte, error) {
	if m.values == nil {
		return nil, newError("repair", key, ErrNoSourceData, "no value source")
	}
	value, ok, err := m.values.Get(key)
	if err != nil {
		return nil, newError("repair", key, ErrNoSourceData, "%v", err)
	}
	if !ok {
		return nil, newError("repair", key, ErrNoSourceData, "value not found")
	}
	return value, nil
}
