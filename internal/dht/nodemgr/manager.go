package nodemgr

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dht/nodemgr")

// Persister 节点记录持久化接口
//
// 由 store.Collection[types.DhtNode] 实现。
type Persister interface {
	Put(key []byte, n *types.DhtNode) error
	Delete(key []byte) error
	ForEach(fn func(key []byte, n *types.DhtNode) bool) error
}

// Manager 节点管理器
//
// 维护已知节点记录和本地信誉分。节点记录与信誉分别存放在
// 两个以 NodeID 为键的表中，所有修改都经由 Manager 的方法。
type Manager struct {
	cfg       *Config
	clock     clock.Clock
	persister Persister

	mu         sync.RWMutex
	nodes      map[types.NodeID]*types.DhtNode
	reputation map[types.NodeID]uint32
}

// New 创建节点管理器
func New(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:        cfg,
		clock:      clock.New(),
		nodes:      make(map[types.NodeID]*types.DhtNode),
		reputation: make(map[types.NodeID]uint32),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Load 从持久化后端恢复节点记录
//
// 记录中的 Reputation 快照恢复为信誉分。
func (m *Manager) Load() error {
	if m.persister == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	err := m.persister.ForEach(func(_ []byte, n *types.DhtNode) bool {
		if n.ID().IsEmpty() {
			return true
		}
		m.nodes[n.ID()] = n
		m.reputation[n.ID()] = n.Reputation
		loaded++
		return true
	})
	if err != nil {
		return err
	}

	logger.Info("已恢复节点记录", "count", loaded)
	return nil
}

// ============================================================================
//                              成员管理
// ============================================================================

// AddNode 添加或更新节点
//
// 幂等：已知节点只更新记录，信誉保持不变；未知节点以初始信誉加入。
// LastSeen 为零值时使用当前时间。
func (m *Manager) AddNode(node *types.DhtNode) error {
	if node == nil {
		return ErrNilNode
	}
	id := node.ID()
	if id.IsEmpty() {
		return ErrEmptyNodeID
	}

	rec := node.Clone()
	if rec.LastSeen.IsZero() {
		rec.LastSeen = m.clock.Now()
	}

	m.mu.Lock()
	rep, known := m.reputation[id]
	if !known {
		rep = m.cfg.InitialReputation
		m.reputation[id] = rep
	}
	rec.Reputation = rep
	m.nodes[id] = rec
	snapshot := rec.Clone()
	m.mu.Unlock()

	if !known {
		logger.Debug("添加节点", "node", id.ShortString(), "storage", rec.HasStorage())
	}
	return m.persist(snapshot)
}

// GetNode 获取节点记录
//
// 返回的是副本，Reputation 为当前信誉分。
func (m *Manager) GetNode(id types.NodeID) (*types.DhtNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return nil, false
	}
	return m.snapshotLocked(n), true
}

// RemoveNode 删除节点记录和信誉
func (m *Manager) RemoveNode(id types.NodeID) bool {
	m.mu.Lock()
	_, ok := m.nodes[id]
	delete(m.nodes, id)
	delete(m.reputation, id)
	m.mu.Unlock()

	if !ok {
		return false
	}

	logger.Debug("移除节点", "node", id.ShortString())
	if m.persister != nil {
		if err := m.persister.Delete(id.Bytes()); err != nil {
			logger.Warn("删除节点记录失败", "node", id.ShortString(), "error", err)
		}
	}
	return true
}

// Touch 刷新节点的最后活跃时间
func (m *Manager) Touch(id types.NodeID) bool {
	m.mu.Lock()
	n, ok := m.nodes[id]
	if ok {
		n.LastSeen = m.clock.Now()
	}
	var snapshot *types.DhtNode
	if ok {
		snapshot = m.snapshotLocked(n)
	}
	m.mu.Unlock()

	if ok {
		_ = m.persist(snapshot)
	}
	return ok
}

// EvictStale 移除超过 maxAge 未活跃的节点，返回被移除的 ID
func (m *Manager) EvictStale(maxAge time.Duration) []types.NodeID {
	cutoff := m.clock.Now().Add(-maxAge)

	m.mu.RLock()
	var stale []types.NodeID
	for id, n := range m.nodes {
		if n.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.RemoveNode(id)
	}
	if len(stale) > 0 {
		logger.Info("淘汰过期节点", "count", len(stale))
	}
	return stale
}

// ============================================================================
//                              信誉
// ============================================================================

// UpdateReputation 按 delta 调整信誉，饱和于 [0, MaxUint32]
//
// 未知节点被静默忽略，返回 false。
func (m *Manager) UpdateReputation(id types.NodeID, delta int32) (uint32, bool) {
	m.mu.Lock()
	rep, ok := m.reputation[id]
	if !ok {
		m.mu.Unlock()
		logger.Debug("忽略未知节点的信誉更新", "node", id.ShortString(), "delta", delta)
		return 0, false
	}

	rep = saturatingAdd(rep, delta)
	m.reputation[id] = rep
	var snapshot *types.DhtNode
	if n, exists := m.nodes[id]; exists {
		snapshot = m.snapshotLocked(n)
	}
	m.mu.Unlock()

	if snapshot != nil {
		_ = m.persist(snapshot)
	}
	return rep, true
}

// Reputation 返回节点信誉
func (m *Manager) Reputation(id types.NodeID) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reputation[id]
	return rep, ok
}

func saturatingAdd(v uint32, delta int32) uint32 {
	r := int64(v) + int64(delta)
	if r < 0 {
		return 0
	}
	if r > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}

// ============================================================================
//                              查询
// ============================================================================

// Filter 节点过滤条件
type Filter func(*types.DhtNode) bool

// WithStorage 只保留提供存储的节点
func WithStorage() Filter {
	return func(n *types.DhtNode) bool { return n.HasStorage() }
}

// MinReputation 只保留信誉不低于 min 的节点
func MinReputation(min uint32) Filter {
	return func(n *types.DhtNode) bool { return n.Reputation >= min }
}

// Exclude 排除指定节点
func Exclude(ids ...types.NodeID) Filter {
	set := make(map[types.NodeID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(n *types.DhtNode) bool {
		_, skip := set[n.ID()]
		return !skip
	}
}

// AllNodes 返回所有节点（按 ID 排序）
func (m *Manager) AllNodes() []*types.DhtNode {
	return m.collect()
}

// StorageNodes 返回提供存储的节点
func (m *Manager) StorageNodes() []*types.DhtNode {
	return m.collect(WithStorage())
}

// HighReputationNodes 返回信誉不低于 min 的节点
func (m *Manager) HighReputationNodes(min uint32) []*types.DhtNode {
	return m.collect(MinReputation(min))
}

// HealthyNodes 返回在线且信誉不低于下限的节点
func (m *Manager) HealthyNodes() []*types.DhtNode {
	return m.collect(m.Healthy())
}

// Healthy 返回健康过滤器：活跃窗口内可见且信誉不低于下限
//
// 截止时间在调用时确定，可与 ClosestNodes 组合使用。
func (m *Manager) Healthy() Filter {
	cutoff := m.clock.Now().Add(-m.cfg.LivenessWindow)
	floor := m.cfg.ReputationFloor
	return func(n *types.DhtNode) bool {
		return n.Reputation >= floor && !n.LastSeen.Before(cutoff)
	}
}

// ClosestNodes 返回按 XOR 距离离 target 最近的 count 个节点
func (m *Manager) ClosestNodes(target types.NodeID, count int, filters ...Filter) []*types.DhtNode {
	nodes := m.collect(filters...)
	sort.Slice(nodes, func(i, j int) bool {
		return types.CompareDistance(nodes[i].ID(), nodes[j].ID(), target) < 0
	})
	if count >= 0 && len(nodes) > count {
		nodes = nodes[:count]
	}
	return nodes
}

// Len 返回已知节点数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

func (m *Manager) collect(filters ...Filter) []*types.DhtNode {
	m.mu.RLock()
	out := make([]*types.DhtNode, 0, len(m.nodes))
next:
	for _, n := range m.nodes {
		s := m.snapshotLocked(n)
		for _, f := range filters {
			if !f(s) {
				continue next
			}
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID().Less(out[j].ID()) })
	return out
}

// snapshotLocked 返回带当前信誉的副本，调用方持有锁
func (m *Manager) snapshotLocked(n *types.DhtNode) *types.DhtNode {
	s := n.Clone()
	s.Reputation = m.reputation[n.ID()]
	return s
}

func (m *Manager) persist(n *types.DhtNode) error {
	if m.persister == nil || n == nil {
		return nil
	}
	if err := m.persister.Put(n.ID().Bytes(), n); err != nil {
		logger.Warn("写入节点记录失败", "node", n.ID().ShortString(), "error", err)
		return err
	}
	return nil
}
