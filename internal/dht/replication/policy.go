package replication

import (
	"strings"

	"github.com/dep2p/go-dhtstore/config"
)

// Consistency 一致性级别
type Consistency uint8

const (
	// Eventual 最终一致
	Eventual Consistency = iota
	// Strong 强一致（写入需经过法定人数认证）
	Strong
)

// String 返回一致性级别名称
func (c Consistency) String() string {
	switch c {
	case Strong:
		return config.ConsistencyStrong
	default:
		return config.ConsistencyEventual
	}
}

// ParseConsistency 解析一致性级别，无法识别时返回 Eventual
func ParseConsistency(s string) Consistency {
	if strings.EqualFold(s, config.ConsistencyStrong) {
		return Strong
	}
	return Eventual
}

// NormalizeCategory 规范化类别名
//
// 配置文件经 viper 加载后类别键为小写，查找与登记统一使用小写形式。
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Policy 副本策略
//
// 按数据类别查找，未登记的类别使用默认策略。策略一经登记不再修改。
type Policy struct {
	// ReplicationFactor 目标副本数
	ReplicationFactor int

	// Consistency 一致性级别
	Consistency Consistency

	// RepairThreshold 副本数低于此值时需要修复，也是写入成功所需的最少副本数
	RepairThreshold int

	// MaxRepairAttempts 单个键的最大修复次数，0 表示不限
	MaxRepairAttempts int
}

// DefaultPolicy 返回默认策略：3 副本，低于 2 时修复
func DefaultPolicy() Policy {
	return Policy{
		ReplicationFactor: 3,
		Consistency:       Eventual,
		RepairThreshold:   2,
		MaxRepairAttempts: 5,
	}
}

// Validate 验证策略
func (p Policy) Validate() error {
	if p.ReplicationFactor < 1 {
		return ErrInvalidConfig
	}
	if p.RepairThreshold < 1 || p.RepairThreshold > p.ReplicationFactor {
		return ErrInvalidConfig
	}
	if p.MaxRepairAttempts < 0 {
		return ErrInvalidConfig
	}
	return nil
}

func policyFromConfig(pc config.PolicyConfig) Policy {
	return Policy{
		ReplicationFactor: pc.ReplicationFactor,
		Consistency:       ParseConsistency(pc.Consistency),
		RepairThreshold:   pc.RepairThreshold,
		MaxRepairAttempts: pc.MaxRepairAttempts,
	}
}
