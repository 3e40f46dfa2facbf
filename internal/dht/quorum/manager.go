// Package quorum 实现法定人数管理
//
// 维护固定成员集合及其公钥，检查读写请求的响应节点（或签名投票）
// 是否达到法定人数。非成员的响应永远不计入。
// 成员变化时同步更新 N，违反 r + w > n 的变更会被拒绝且成员保持不变。
package quorum

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/lib/crypto"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dht/quorum")

// 操作名称
const (
	OpRead  = "read"
	OpWrite = "write"
)

// Member 法定人数成员
type Member struct {
	ID        types.NodeID
	PublicKey crypto.PublicKey
}

// MemberFromNode 从节点记录构造成员
//
// 节点记录携带原始 Ed25519 公钥，解码后要求由公钥派生的 NodeID 与记录一致。
func MemberFromNode(node *types.DhtNode) (Member, error) {
	if node == nil || len(node.Identity.PublicKey) == 0 {
		return Member{}, ErrNilPublicKey
	}
	pub, err := crypto.UnmarshalPublicKey(crypto.KeyTypeEd25519, node.Identity.PublicKey)
	if err != nil {
		return Member{}, err
	}
	id, err := crypto.NodeIDFromPublicKey(pub)
	if err != nil {
		return Member{}, err
	}
	if id != node.ID() {
		return Member{}, ErrIdentityMismatch
	}
	return Member{ID: id, PublicKey: pub}, nil
}

// Manager 法定人数管理器
type Manager struct {
	shape   Shape
	skew    time.Duration
	clock   clock.Clock
	metrics *metrics.Metrics

	mu         sync.RWMutex
	thresholds Thresholds
	members    map[types.NodeID]crypto.PublicKey
}

// New 创建法定人数管理器
//
// N 取成员数，R/W 由形状计算（ShapeCustom 使用 cfg.R/cfg.W）。
func New(cfg *Config, members []Member, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set, err := memberSet(members)
	if err != nil {
		return nil, err
	}
	t, err := cfg.Shape.thresholdsFor(len(set), Thresholds{R: cfg.R, W: cfg.W})
	if err != nil {
		return nil, err
	}

	m := &Manager{
		shape:      cfg.Shape,
		skew:       cfg.MaxClockSkew,
		clock:      clock.New(),
		thresholds: t,
		members:    set,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func memberSet(members []Member) (map[types.NodeID]crypto.PublicKey, error) {
	set := make(map[types.NodeID]crypto.PublicKey, len(members))
	for _, mb := range members {
		if mb.PublicKey == nil {
			return nil, ErrNilPublicKey
		}
		if _, dup := set[mb.ID]; dup {
			return nil, ErrDuplicateMember
		}
		set[mb.ID] = mb.PublicKey
	}
	return set, nil
}

// Thresholds 返回当前 N/R/W
func (m *Manager) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// Shape 返回形状
func (m *Manager) Shape() Shape {
	return m.shape
}

// IsMember 是否为当前成员
func (m *Manager) IsMember(id types.NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.members[id]
	return ok
}

// PublicKey 返回成员登记的公钥
func (m *Manager) PublicKey(id types.NodeID) (crypto.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pk, ok := m.members[id]
	return pk, ok
}

// Members 返回成员 ID，按 ID 排序
func (m *Manager) Members() []types.NodeID {
	m.mu.RLock()
	ids := make([]types.NodeID, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// ============================================================================
//                              法定人数检查
// ============================================================================

// CheckRead 检查响应节点是否达到读法定人数
func (m *Manager) CheckRead(responding []types.NodeID) Result {
	return m.check(OpRead, responding)
}

// CheckWrite 检查响应节点是否达到写法定人数
func (m *Manager) CheckWrite(responding []types.NodeID) Result {
	return m.check(OpWrite, responding)
}

// check 只统计当前成员，重复的节点计一次
func (m *Manager) check(op string, responding []types.NodeID) Result {
	m.mu.RLock()
	seen := make(map[types.NodeID]struct{}, len(responding))
	for _, id := range responding {
		if _, ok := m.members[id]; ok {
			seen[id] = struct{}{}
		}
	}
	res := newResult(m.required(op), len(seen))
	m.mu.RUnlock()

	m.metrics.QuorumChecked(op, res.Met)
	return res
}

// CheckSignedRead 检查签名投票是否达到读法定人数
func (m *Manager) CheckSignedRead(responses []*SignedResponse) SignedResult {
	return m.checkSigned(OpRead, responses)
}

// CheckSignedWrite 检查签名投票是否达到写法定人数
func (m *Manager) CheckSignedWrite(responses []*SignedResponse) SignedResult {
	return m.checkSigned(OpWrite, responses)
}

// checkSigned 验证每个投票后计数
//
// 投票需满足：签名者是成员；签名时间不超过 now + MaxClockSkew；
// 内嵌公钥与登记公钥一致；签名对 Payload 有效。
// 任何一项不满足的投票被排除，不计入法定人数。
func (m *Manager) checkSigned(op string, responses []*SignedResponse) SignedResult {
	now := m.clock.Now()

	m.mu.RLock()
	var result SignedResult
	counted := make(map[types.NodeID]struct{}, len(responses))
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		reason := m.verifyLocked(resp, now)
		if reason == 0 {
			if _, dup := counted[resp.NodeID]; dup {
				reason = RejectDuplicate
			}
		}
		if reason != 0 {
			result.Rejections = append(result.Rejections, Rejection{NodeID: resp.NodeID, Reason: reason})
			continue
		}
		counted[resp.NodeID] = struct{}{}
	}
	result.Result = newResult(m.required(op), len(counted))
	m.mu.RUnlock()

	for _, rj := range result.Rejections {
		m.metrics.QuorumRejected(rj.Reason.String())
		logger.Warn("投票被拒绝", "op", op, "node", rj.NodeID.ShortString(), "reason", rj.Reason)
	}
	m.metrics.QuorumChecked(op, result.Met)
	return result
}

func (m *Manager) verifyLocked(resp *SignedResponse, now time.Time) RejectReason {
	pk, ok := m.members[resp.NodeID]
	if !ok {
		return RejectNotMember
	}
	sig := resp.Signature
	if sig == nil {
		return RejectMissingSignature
	}
	if sig.Time().After(now.Add(m.skew)) {
		return RejectFutureTimestamp
	}
	if !crypto.EmbeddedKeyMatches(pk, sig) {
		return RejectKeyMismatch
	}
	valid, err := crypto.Verify(pk, resp.Payload, sig)
	if err != nil || !valid {
		return RejectBadSignature
	}
	return 0
}

func (m *Manager) required(op string) int {
	if op == OpWrite {
		return m.thresholds.W
	}
	return m.thresholds.R
}

// ============================================================================
//                              成员变更
// ============================================================================

// AddNode 添加成员
func (m *Manager) AddNode(id types.NodeID, pub crypto.PublicKey) error {
	if pub == nil {
		return ErrNilPublicKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[id]; ok {
		return ErrDuplicateMember
	}
	m.members[id] = pub
	if err := m.resizeLocked(); err != nil {
		delete(m.members, id)
		return err
	}
	logger.Info("法定人数成员已添加", "node", id.ShortString(), "quorum", m.thresholds)
	return nil
}

// RemoveNode 移除成员
func (m *Manager) RemoveNode(id types.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, ok := m.members[id]
	if !ok {
		return ErrNotMember
	}
	delete(m.members, id)
	if err := m.resizeLocked(); err != nil {
		m.members[id] = pub
		return err
	}
	logger.Info("法定人数成员已移除", "node", id.ShortString(), "quorum", m.thresholds)
	return nil
}

// Reconfigure 整体替换成员集合
func (m *Manager) Reconfigure(members []Member) error {
	set, err := memberSet(members)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.members
	m.members = set
	if err := m.resizeLocked(); err != nil {
		m.members = prev
		return err
	}
	logger.Info("法定人数成员已重新配置", "quorum", m.thresholds)
	return nil
}

// resizeLocked 按当前成员数重新计算 N/R/W，失败时不修改阈值
func (m *Manager) resizeLocked() error {
	t, err := m.shape.thresholdsFor(len(m.members), m.thresholds)
	if err != nil {
		return err
	}
	m.thresholds = t
	return nil
}
