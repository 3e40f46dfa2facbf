package replication

import (
	"sort"
	"time"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// State 键的副本状态
//
// 由 Status 推导，不单独存储。
type State uint8

const (
	// NoReplicas 尚无成功副本
	NoReplicas State = iota
	// PartiallyReplicated 有副本但未达到副本因子
	PartiallyReplicated
	// FullyReplicated 副本数达到副本因子
	FullyReplicated
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case PartiallyReplicated:
		return "partially_replicated"
	case FullyReplicated:
		return "fully_replicated"
	default:
		return "no_replicas"
	}
}

// Status 单个键的副本状态
//
// 首次尝试复制时创建，每次复制或修复后更新，只能通过 RemoveStatus 显式删除。
// ReplicaNodes 与 FailedNodes 按 NodeID 排序且无重复。
type Status struct {
	// Key 数据键
	Key string `cbor:"1,keyasint" json:"key"`

	// Category 数据类别（空串表示默认策略）
	Category string `cbor:"2,keyasint,omitempty" json:"category,omitempty"`

	// TotalReplicas 当前成功副本数
	TotalReplicas int `cbor:"3,keyasint" json:"total_replicas"`

	// RequiredReplicas 目标副本数（副本因子）
	RequiredReplicas int `cbor:"4,keyasint" json:"required_replicas"`

	// RepairThreshold 修复阈值
	RepairThreshold int `cbor:"5,keyasint" json:"repair_threshold"`

	// ReplicaNodes 持有副本的节点
	ReplicaNodes []types.NodeID `cbor:"6,keyasint" json:"replica_nodes"`

	// FailedNodes 投递失败的节点
	FailedNodes []types.NodeID `cbor:"7,keyasint" json:"failed_nodes"`

	// LastUpdate 最后更新时间
	LastUpdate time.Time `cbor:"8,keyasint" json:"last_update"`

	// RepairNeeded 副本数是否低于修复阈值
	RepairNeeded bool `cbor:"9,keyasint" json:"repair_needed"`

	// RepairAttempts 已执行的修复次数
	RepairAttempts int `cbor:"10,keyasint" json:"repair_attempts"`
}

// State 推导副本状态
func (s *Status) State() State {
	switch {
	case s.TotalReplicas == 0:
		return NoReplicas
	case s.TotalReplicas < s.RequiredReplicas:
		return PartiallyReplicated
	default:
		return FullyReplicated
	}
}

// HasReplica 节点是否持有副本
func (s *Status) HasReplica(id types.NodeID) bool {
	return containsID(s.ReplicaNodes, id)
}

// Missing 距离副本因子还差的副本数
func (s *Status) Missing() int {
	if n := s.RequiredReplicas - s.TotalReplicas; n > 0 {
		return n
	}
	return 0
}

// Clone 深拷贝
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}
	c := *s
	c.ReplicaNodes = append([]types.NodeID(nil), s.ReplicaNodes...)
	c.FailedNodes = append([]types.NodeID(nil), s.FailedNodes...)
	return &c
}

// recordSuccess 记录成功副本：加入副本集并从失败集中移除
func (s *Status) recordSuccess(id types.NodeID) {
	s.ReplicaNodes = insertID(s.ReplicaNodes, id)
	s.FailedNodes = removeID(s.FailedNodes, id)
}

// recordFailure 记录投递失败，不影响已有副本
func (s *Status) recordFailure(id types.NodeID) {
	if containsID(s.ReplicaNodes, id) {
		return
	}
	s.FailedNodes = insertID(s.FailedNodes, id)
}

// evaluate 重新计算派生字段
func (s *Status) evaluate(now time.Time) {
	s.TotalReplicas = len(s.ReplicaNodes)
	s.RepairNeeded = s.TotalReplicas < s.RepairThreshold
	s.LastUpdate = now
}

// ============================================================================
//                              有序 NodeID 集合
// ============================================================================

func searchID(ids []types.NodeID, id types.NodeID) int {
	return sort.Search(len(ids), func(i int) bool { return !ids[i].Less(id) })
}

func containsID(ids []types.NodeID, id types.NodeID) bool {
	i := searchID(ids, id)
	return i < len(ids) && ids[i] == id
}

func insertID(ids []types.NodeID, id types.NodeID) []types.NodeID {
	i := searchID(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, types.NodeID{})
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeID(ids []types.NodeID, id types.NodeID) []types.NodeID {
	i := searchID(ids, id)
	if i >= len(ids) || ids[i] != id {
		return ids
	}
	return append(ids[:i], ids[i+1:]...)
}
