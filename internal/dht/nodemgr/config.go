package nodemgr

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/config"
)

// Config 节点管理配置
type Config struct {
	// InitialReputation 首次观察到的节点的信誉
	InitialReputation uint32

	// ReputationFloor 健康节点的最低信誉
	ReputationFloor uint32

	// LivenessWindow 在此窗口内活跃的节点视为在线
	LivenessWindow time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		InitialReputation: 1000,
		ReputationFloor:   500,
		LivenessWindow:    10 * time.Minute,
	}
}

// ConfigFromUnified 从统一配置创建节点管理配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.InitialReputation = cfg.NodeManager.InitialReputation
	c.ReputationFloor = cfg.NodeManager.ReputationFloor
	c.LivenessWindow = cfg.NodeManager.LivenessWindow.Duration()
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.LivenessWindow <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 设置时钟（测试中使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithPersister 设置持久化后端
func WithPersister(p Persister) Option {
	return func(m *Manager) {
		m.persister = p
	}
}
