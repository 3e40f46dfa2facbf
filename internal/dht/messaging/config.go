package messaging

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
)

// Config 消息层配置
type Config struct {
	// MaxRetries 最大发送次数，连续失败达到该次数后丢弃消息
	MaxRetries int

	// BaseDelay 重试基础延迟，第 n 次失败后等待 BaseDelay×2^(n-1)
	BaseDelay time.Duration

	// RequestTimeout SendAndWait 未指定超时时的默认值
	RequestTimeout time.Duration

	// RetentionWindow 排队消息与等待项的保留窗口
	RetentionWindow time.Duration

	// MaxPendingResponses 等待响应表上限，超过后整体清空
	MaxPendingResponses int

	// CleanupInterval 后台清理间隔
	CleanupInterval time.Duration

	// SendRate 每秒最多发送的消息数，0 表示不限速
	SendRate float64

	// SendBurst 突发发送数量
	SendBurst int

	// ReplayWindow 入站 nonce 去重窗口
	ReplayWindow time.Duration

	// ReplayCacheSize nonce 缓存容量
	ReplayCacheSize int

	// PollInterval 无就绪消息时 Worker 的轮询间隔
	PollInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:          3,
		BaseDelay:           time.Second,
		RequestTimeout:      5 * time.Second,
		RetentionWindow:     5 * time.Minute,
		MaxPendingResponses: 1000,
		CleanupInterval:     time.Minute,
		SendRate:            200,
		SendBurst:           50,
		ReplayWindow:        5 * time.Minute,
		ReplayCacheSize:     4096,
		PollInterval:        50 * time.Millisecond,
	}
}

// ConfigFromUnified 从统一配置创建消息层配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	m := cfg.Messaging
	c.MaxRetries = m.MaxRetries
	c.BaseDelay = m.BaseDelay.Duration()
	c.RequestTimeout = m.RequestTimeout.Duration()
	c.RetentionWindow = m.RetentionWindow.Duration()
	c.MaxPendingResponses = m.MaxPendingResponses
	c.CleanupInterval = m.CleanupInterval.Duration()
	c.SendRate = m.SendRate
	c.SendBurst = m.SendBurst
	c.ReplayWindow = m.ReplayWindow.Duration()
	c.ReplayCacheSize = m.ReplayCacheSize
	c.PollInterval = m.PollInterval.Duration()
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxRetries < 1 || c.BaseDelay <= 0 || c.RequestTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetentionWindow <= 0 || c.MaxPendingResponses < 1 || c.CleanupInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.SendRate < 0 || c.SendBurst < 0 {
		return ErrInvalidConfig
	}
	if c.ReplayWindow <= 0 || c.ReplayCacheSize < 1 || c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option 服务选项
type Option func(*Service)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithHandler 设置请求处理器（默认 CannedHandler）
func WithHandler(h RequestHandler) Option {
	return func(s *Service) {
		s.handler = h
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}
