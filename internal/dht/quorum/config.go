package quorum

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
)

// Config 法定人数管理配置
type Config struct {
	// Shape 形状
	Shape Shape

	// R 读法定人数（仅 ShapeCustom）
	R int

	// W 写法定人数（仅 ShapeCustom）
	W int

	// MaxClockSkew 签名时间戳允许超前本地时钟的最大值
	MaxClockSkew time.Duration
}

// DefaultConfig 返回默认配置：多数派，30 秒时钟偏差
func DefaultConfig() *Config {
	return &Config{
		Shape:        ShapeMajority,
		MaxClockSkew: 30 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建法定人数配置
func ConfigFromUnified(cfg *config.Config) (*Config, error) {
	c := DefaultConfig()
	if cfg == nil {
		return c, nil
	}
	shape, err := ParseShape(cfg.Quorum.Shape)
	if err != nil {
		return nil, err
	}
	c.Shape = shape
	c.R = cfg.Quorum.R
	c.W = cfg.Quorum.W
	c.MaxClockSkew = cfg.Quorum.MaxClockSkew.Duration()
	return c, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Shape > ShapeCustom || c.MaxClockSkew < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}
