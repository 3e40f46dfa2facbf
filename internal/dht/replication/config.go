package replication

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// DefaultReputationFloor 低于此信誉的节点不接受副本投递
const DefaultReputationFloor uint32 = 500

// Config 副本管理配置
type Config struct {
	// Default 默认策略
	Default Policy

	// Policies 按数据类别登记的策略
	Policies map[string]Policy

	// ReputationFloor 投递前要求的最低信誉
	ReputationFloor uint32

	// ReputationReward 投递成功的信誉奖励
	ReputationReward int32

	// ReputationPenalty 投递失败的信誉惩罚
	ReputationPenalty int32

	// DeliveryTimeout 单个副本投递超时
	DeliveryTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Default:           DefaultPolicy(),
		Policies:          make(map[string]Policy),
		ReputationFloor:   DefaultReputationFloor,
		ReputationReward:  10,
		ReputationPenalty: 50,
		DeliveryTimeout:   10 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建副本管理配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	r := cfg.Replication
	c.Default = policyFromConfig(r.Default)
	for name, pc := range r.Policies {
		c.Policies[NormalizeCategory(name)] = policyFromConfig(pc)
	}
	c.ReputationFloor = cfg.NodeManager.ReputationFloor
	c.ReputationReward = r.ReputationReward
	c.ReputationPenalty = r.ReputationPenalty
	c.DeliveryTimeout = r.DeliveryTimeout.Duration()
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Policies))
	for name, p := range c.Policies {
		if err := p.Validate(); err != nil {
			return err
		}
		// 仅大小写不同的类别会互相覆盖
		key := NormalizeCategory(name)
		if seen[key] {
			return ErrInvalidConfig
		}
		seen[key] = true
	}
	if c.ReputationReward < 0 || c.ReputationPenalty < 0 || c.DeliveryTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// normalized 返回类别键统一为小写的副本，不修改调用方的配置
func (c *Config) normalized() *Config {
	cp := *c
	cp.Policies = make(map[string]Policy, len(c.Policies))
	for name, p := range c.Policies {
		cp.Policies[NormalizeCategory(name)] = p
	}
	return &cp
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithSelf 设置本地节点 ID，修复时不会选择本地节点
func WithSelf(id types.NodeID) Option {
	return func(m *Manager) {
		m.self = id
	}
}

// WithValueSource 设置修复时读取源数据的位置
func WithValueSource(src ValueSource) Option {
	return func(m *Manager) {
		m.values = src
	}
}

// WithPersister 设置副本状态持久化后端
func WithPersister(p StatusPersister) Option {
	return func(m *Manager) {
		m.persister = p
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}
