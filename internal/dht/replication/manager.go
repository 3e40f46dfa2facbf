// Package replication 实现副本管理
//
// 按数据类别的策略决定副本数量，将键值对并行投递到目标节点，
// 记录每个键的副本状态，并修复副本不足的键。
//
// 同一个键上的并发修复需要调用方自行串行化。
package replication

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dht/replication")

// Deliverer 副本投递接口
//
// 由 messaging.StoreDeliverer 实现。
type Deliverer interface {
	Deliver(ctx context.Context, node *types.DhtNode, key string, value []byte) error
}

// ReputationTracker 节点信誉接口
//
// 由 nodemgr.Manager 实现。
type ReputationTracker interface {
	Reputation(id types.NodeID) (uint32, bool)
	UpdateReputation(id types.NodeID, delta int32) (uint32, bool)
}

// ValueSource 修复时的源数据
//
// 由 store.ValueStore 实现。
type ValueSource interface {
	Get(key string) ([]byte, bool, error)
}

// StatusPersister 副本状态持久化接口
//
// 由 store.Collection[Status] 实现。
type StatusPersister interface {
	Put(key []byte, s *Status) error
	Delete(key []byte) error
	ForEach(fn func(key []byte, s *Status) bool) error
}

// Manager 副本管理器
type Manager struct {
	cfg        *Config
	deliverer  Deliverer
	reputation ReputationTracker
	values     ValueSource
	persister  StatusPersister
	metrics    *metrics.Metrics
	clock      clock.Clock
	self       types.NodeID

	mu       sync.RWMutex
	statuses map[string]*Status
}

// New 创建副本管理器，reputation 可为 nil（仅使用节点记录中的信誉快照）
func New(cfg *Config, deliverer Deliverer, reputation ReputationTracker, opts ...Option) (*Manager, error) {
	if deliverer == nil {
		return nil, ErrNoDeliverer
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	m := &Manager{
		cfg:        cfg,
		deliverer:  deliverer,
		reputation: reputation,
		clock:      clock.New(),
		statuses:   make(map[string]*Status),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Load 从持久化后端恢复副本状态
func (m *Manager) Load() error {
	if m.persister == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.persister.ForEach(func(_ []byte, s *Status) bool {
		if s.Key != "" {
			m.statuses[s.Key] = s
		}
		return true
	})
	if err != nil {
		return err
	}
	logger.Info("已恢复副本状态", "count", len(m.statuses))
	return nil
}

// Policy 返回类别对应的策略，未登记时返回默认策略
//
// 类别名不区分大小写。
func (m *Manager) Policy(category string) Policy {
	category = NormalizeCategory(category)
	if p, ok := m.cfg.Policies[category]; ok && category != "" {
		return p
	}
	return m.cfg.Default
}

// ============================================================================
//                              复制
// ============================================================================

// ReplicateData 按默认策略复制键值对
func (m *Manager) ReplicateData(ctx context.Context, key string, value []byte, targets []*types.DhtNode) (*Status, error) {
	return m.ReplicateDataAs(ctx, "", key, value, targets)
}

// ReplicateDataAs 按类别策略复制键值对
//
// 要求去重后的 targets 不少于副本因子，选择前 ReplicationFactor 个节点并行投递。
// 成功数达到修复阈值时返回 nil；否则返回 ErrUnderReplicated，
// 已成功的副本仍会记录在状态中。返回的状态是快照。
func (m *Manager) ReplicateDataAs(ctx context.Context, category, key string, value []byte, targets []*types.DhtNode) (*Status, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	policy := m.Policy(category)
	targets = distinctTargets(targets)
	if len(targets) < policy.ReplicationFactor {
		return nil, newError("replicate", key, ErrInsufficientTargets,
			"have %d, need %d", len(targets), policy.ReplicationFactor)
	}

	selected := targets[:policy.ReplicationFactor]
	results := m.deliverAll(ctx, selected, key, value)

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}

	m.mu.Lock()
	s, ok := m.statuses[key]
	if !ok {
		s = &Status{Key: key}
		m.statuses[key] = s
	}
	s.Category = NormalizeCategory(category)
	s.RequiredReplicas = policy.ReplicationFactor
	s.RepairThreshold = policy.RepairThreshold
	for i, node := range selected {
		if results[i] == nil {
			s.recordSuccess(node.ID())
		} else {
			s.recordFailure(node.ID())
		}
	}
	s.evaluate(m.clock.Now())
	snapshot := s.Clone()
	m.mu.Unlock()

	m.persist(snapshot)

	if succeeded < policy.RepairThreshold {
		logger.Warn("副本数低于目标",
			"key", key,
			"succeeded", succeeded,
			"threshold", policy.RepairThreshold)
		return snapshot, newError("replicate", key, ErrUnderReplicated,
			"%d of %d replicas, threshold %d", succeeded, len(selected), policy.RepairThreshold)
	}

	logger.Debug("副本写入完成", "key", key, "replicas", succeeded, "state", snapshot.State())
	return snapshot, nil
}

// distinctTargets 去掉 nil 和重复的节点，保持原有顺序
func distinctTargets(targets []*types.DhtNode) []*types.DhtNode {
	seen := make(map[types.NodeID]struct{}, len(targets))
	out := make([]*types.DhtNode, 0, len(targets))
	for _, node := range targets {
		if node == nil {
			continue
		}
		if _, dup := seen[node.ID()]; dup {
			continue
		}
		seen[node.ID()] = struct{}{}
		out = append(out, node)
	}
	return out
}

// ReplicateToNode 向单个节点投递副本
//
// 信誉低于下限的节点直接拒绝，不发起投递。投递结果调整节点信誉。
func (m *Manager) ReplicateToNode(ctx context.Context, node *types.DhtNode, key string, value []byte) error {
	if node == nil {
		return ErrNilNode
	}
	id := node.ID()

	rep := node.Reputation
	if m.reputation != nil {
		if r, ok := m.reputation.Reputation(id); ok {
			rep = r
		}
	}
	if rep < m.cfg.ReputationFloor {
		logger.Debug("节点信誉过低，跳过投递", "node", id.ShortString(), "reputation", rep)
		return newError("replicate_to_node", key, ErrReputationTooLow,
			"node %s reputation %d < %d", id.ShortString(), rep, m.cfg.ReputationFloor)
	}

	dctx, cancel := context.WithTimeout(ctx, m.cfg.DeliveryTimeout)
	defer cancel()

	err := m.deliverer.Deliver(dctx, node, key, value)
	m.metrics.ReplicaDelivered(err == nil)
	if m.reputation != nil {
		if err == nil {
			m.reputation.UpdateReputation(id, m.cfg.ReputationReward)
		} else {
			m.reputation.UpdateReputation(id, -m.cfg.ReputationPenalty)
		}
	}
	if err != nil {
		logger.Warn("副本投递失败", "key", key, "node", id.ShortString(), "error", err)
		return err
	}
	return nil
}

// deliverAll 并行投递，返回与 nodes 一一对应的结果
func (m *Manager) deliverAll(ctx context.Context, nodes []*types.DhtNode, key string, value []byte) []error {
	results := make([]error, len(nodes))

	var g errgroup.Group
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			results[i] = m.ReplicateToNode(ctx, node, key, value)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ============================================================================
//                              状态查询
// ============================================================================

// Status 返回键的副本状态快照
func (m *Manager) Status(key string) (*Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.statuses[key]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Statuses 返回所有副本状态快照，按键排序
func (m *Manager) Statuses() []*Status {
	m.mu.RLock()
	out := make([]*Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// KeysNeedingRepair 返回需要修复的键，按键排序
func (m *Manager) KeysNeedingRepair() []string {
	m.mu.RLock()
	var keys []string
	for k, s := range m.statuses {
		if s.RepairNeeded {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// RemoveStatus 删除键的副本状态
func (m *Manager) RemoveStatus(key string) bool {
	m.mu.Lock()
	_, ok := m.statuses[key]
	delete(m.statuses, key)
	m.mu.Unlock()

	if ok && m.persister != nil {
		if err := m.persister.Delete([]byte(key)); err != nil {
			logger.Warn("删除副本状态失败", "key", key, "error", err)
		}
	}
	return ok
}

// MarkNodeFailed 将节点从所有副本集中移除并重新评估修复需求，返回受影响的键数
func (m *Manager) MarkNodeFailed(id types.NodeID) int {
	now := m.clock.Now()

	m.mu.Lock()
	var changed []*Status
	for _, s := range m.statuses {
		if !s.HasReplica(id) {
			continue
		}
		s.ReplicaNodes = removeID(s.ReplicaNodes, id)
		s.recordFailure(id)
		s.evaluate(now)
		changed = append(changed, s.Clone())
	}
	m.mu.Unlock()

	for _, s := range changed {
		m.persist(s)
	}
	if len(changed) > 0 {
		logger.Info("节点失效，副本状态已更新", "node", id.ShortString(), "keys", len(changed))
	}
	return len(changed)
}

// Len 返回跟踪的键数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

func (m *Manager) persist(s *Status) {
	if m.persister == nil {
		return
	}
	if err := m.persister.Put([]byte(s.Key), s); err != nil {
		logger.Warn("持久化副本状态失败", "key", s.Key, "error", err)
	}
}
