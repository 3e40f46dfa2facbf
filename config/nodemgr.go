package config

import (
	"errors"
	"time"
)

// NodeManagerConfig 节点管理配置
type NodeManagerConfig struct {
	// InitialReputation 新节点的初始信誉
	InitialReputation uint32 `json:"initial_reputation"`

	// ReputationFloor 副本投递与健康统计的最低信誉
	ReputationFloor uint32 `json:"reputation_floor"`

	// LivenessWindow 在此窗口内活跃的节点视为在线
	LivenessWindow Duration `json:"liveness_window"`

	// StaleAfter 超过此时间未活跃的节点被淘汰，0 表示不淘汰
	StaleAfter Duration `json:"stale_after"`

	// Persist 是否持久化节点记录
	Persist bool `json:"persist"`
}

// DefaultNodeManagerConfig 返回默认节点管理配置
func DefaultNodeManagerConfig() NodeManagerConfig {
	return NodeManagerConfig{
		InitialReputation: 1000,
		ReputationFloor:   500,
		LivenessWindow:    Duration(10 * time.Minute),
		StaleAfter:        Duration(24 * time.Hour),
		Persist:           true,
	}
}

// Validate 验证节点管理配置
func (c *NodeManagerConfig) Validate() error {
	if c.LivenessWindow <= 0 {
		return errors.New("node_manager: liveness_window must be positive")
	}
	if c.StaleAfter < 0 {
		return errors.New("node_manager: stale_after must be non-negative")
	}
	return nil
}
