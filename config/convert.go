package config

import (
	"errors"
	"fmt"
	"time"
)

// 预设名称
const (
	PresetDefault   = ""
	PresetMinimal   = "minimal"
	PresetDurable   = "durable"
	PresetEphemeral = "ephemeral"
)

// ApplyPreset 应用预设配置
//
// Preset 提供了针对不同场景优化的配置组合。
// 该函数将预设应用到配置上。
//
// 支持的预设：
//   - "minimal": 单机最小配置，副本因子 1，关闭指标
//   - "durable": 强一致写入，更高副本因子与更频繁的修复和巡检
//   - "ephemeral": 纯内存、关闭后台循环，用于测试和临时节点
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	switch presetName {
	case PresetDefault:
		return nil
	case PresetMinimal:
		applyMinimalPreset(cfg)
	case PresetDurable:
		applyDurablePreset(cfg)
	case PresetEphemeral:
		applyEphemeralPreset(cfg)
	default:
		return fmt.Errorf("config: unknown preset %q", presetName)
	}
	return nil
}

// applyMinimalPreset 应用单机预设
func applyMinimalPreset(cfg *Config) {
	cfg.Replication.Default.ReplicationFactor = 1
	cfg.Replication.Default.RepairThreshold = 1
	cfg.Integrity.DataShards = 0
	cfg.Integrity.ParityShards = 0
	cfg.Metrics.Enabled = false
}

// applyDurablePreset 应用高持久性预设
func applyDurablePreset(cfg *Config) {
	cfg.Replication.Default = PolicyConfig{
		ReplicationFactor: 5,
		Consistency:       ConsistencyStrong,
		RepairThreshold:   4,
		MaxRepairAttempts: 10,
	}
	cfg.Replication.RepairInterval = Duration(time.Minute)
	cfg.Replication.Persist = true
	cfg.Integrity.ScanInterval = Duration(2 * time.Minute)
	cfg.Integrity.CheckInterval = Duration(15 * time.Minute)
	cfg.Integrity.DataShards = 4
	cfg.Integrity.ParityShards = 4
}

// applyEphemeralPreset 应用临时节点预设
func applyEphemeralPreset(cfg *Config) {
	cfg.Storage.InMemory = true
	cfg.NodeManager.Persist = false
	cfg.Replication.Persist = false
	cfg.Integrity.Persist = false
	cfg.Replication.RepairInterval = 0
	cfg.Integrity.ScanInterval = 0
	cfg.Metrics.Enabled = false
}

// Clone 深拷贝配置
//
// 用于安全地修改配置而不影响原始配置。
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Replication.Policies != nil {
		cp.Replication.Policies = make(map[string]PolicyConfig, len(c.Replication.Policies))
		for k, v := range c.Replication.Policies {
			cp.Replication.Policies[k] = v
		}
	}
	return &cp
}
