package config

import (
	"fmt"
	"strings"
	"time"
)

// 一致性级别
const (
	ConsistencyEventual = "eventual"
	ConsistencyStrong   = "strong"
)

// PolicyConfig 单个副本策略
type PolicyConfig struct {
	// ReplicationFactor 目标副本数
	ReplicationFactor int `json:"replication_factor"`

	// Consistency 一致性级别（eventual/strong）
	Consistency string `json:"consistency"`

	// RepairThreshold 低于此副本数需要修复
	RepairThreshold int `json:"repair_threshold"`

	// MaxRepairAttempts 单个键的最大修复次数
	MaxRepairAttempts int `json:"max_repair_attempts"`
}

// Validate 验证策略
func (p *PolicyConfig) Validate() error {
	if p.ReplicationFactor < 1 {
		return fmt.Errorf("replication: replication_factor must be at least 1")
	}
	if p.RepairThreshold < 1 || p.RepairThreshold > p.ReplicationFactor {
		return fmt.Errorf("replication: repair_threshold must be in [1, %d]", p.ReplicationFactor)
	}
	if p.MaxRepairAttempts < 0 {
		return fmt.Errorf("replication: max_repair_attempts must be non-negative")
	}
	switch strings.ToLower(p.Consistency) {
	case ConsistencyEventual, ConsistencyStrong:
	default:
		return fmt.Errorf("replication: unknown consistency %q", p.Consistency)
	}
	return nil
}

// ReplicationConfig 副本配置
type ReplicationConfig struct {
	// Default 默认策略
	Default PolicyConfig `json:"default"`

	// Policies 按数据类别的策略
	Policies map[string]PolicyConfig `json:"policies,omitempty"`

	// ReputationReward 投递成功的信誉奖励
	ReputationReward int32 `json:"reputation_reward"`

	// ReputationPenalty 投递失败的信誉惩罚
	ReputationPenalty int32 `json:"reputation_penalty"`

	// DeliveryTimeout 单个副本投递超时
	DeliveryTimeout Duration `json:"delivery_timeout"`

	// RepairInterval 后台修复间隔，0 表示禁用
	RepairInterval Duration `json:"repair_interval"`

	// Persist 是否持久化副本状态
	Persist bool `json:"persist"`
}

// DefaultReplicationConfig 返回默认副本配置
func DefaultReplicationConfig() ReplicationConfig {
	return ReplicationConfig{
		Default: PolicyConfig{
			ReplicationFactor: 3,
			Consistency:       ConsistencyEventual,
			RepairThreshold:   2,
			MaxRepairAttempts: 5,
		},
		ReputationReward:  10,
		ReputationPenalty: 50,
		DeliveryTimeout:   Duration(10 * time.Second),
		RepairInterval:    Duration(5 * time.Minute),
		Persist:           true,
	}
}

// Validate 验证副本配置
func (c *ReplicationConfig) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return err
	}
	seen := make(map[string]string, len(c.Policies))
	for name, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w (policy %q)", err, name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("replication: policies %q and %q differ only in case", prev, name)
		}
		seen[key] = name
	}
	if c.ReputationReward < 0 || c.ReputationPenalty < 0 {
		return fmt.Errorf("replication: reputation adjustments must be non-negative")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("replication: delivery_timeout must be positive")
	}
	if c.RepairInterval < 0 {
		return fmt.Errorf("replication: repair_interval must be non-negative")
	}
	return nil
}
