package config

import (
	"errors"
	"time"
)

// MessagingConfig 消息层配置
type MessagingConfig struct {
	// MaxRetries 最大发送次数，超过后丢弃
	MaxRetries int `json:"max_retries"`

	// BaseDelay 重试基础延迟，第 n 次失败后延迟 BaseDelay×2^(n-1)
	BaseDelay Duration `json:"base_delay"`

	// RequestTimeout SendAndWait 默认超时
	RequestTimeout Duration `json:"request_timeout"`

	// RetentionWindow 排队消息与等待项的保留窗口
	RetentionWindow Duration `json:"retention_window"`

	// MaxPendingResponses 等待响应表上限，超过后整体清空
	MaxPendingResponses int `json:"max_pending_responses"`

	// CleanupInterval 清理间隔
	CleanupInterval Duration `json:"cleanup_interval"`

	// SendRate 每秒最多发送的消息数，0 表示不限速
	SendRate float64 `json:"send_rate"`

	// SendBurst 突发发送数量
	SendBurst int `json:"send_burst"`

	// ReplayWindow 入站 nonce 去重窗口
	ReplayWindow Duration `json:"replay_window"`

	// ReplayCacheSize nonce 缓存容量
	ReplayCacheSize int `json:"replay_cache_size"`

	// PollInterval 队列为空或无就绪消息时的轮询间隔
	PollInterval Duration `json:"poll_interval"`
}

// DefaultMessagingConfig 返回默认消息层配置
func DefaultMessagingConfig() MessagingConfig {
	return MessagingConfig{
		MaxRetries:          3,
		BaseDelay:           Duration(time.Second),
		RequestTimeout:      Duration(5 * time.Second),
		RetentionWindow:     Duration(5 * time.Minute),
		MaxPendingResponses: 1000,
		CleanupInterval:     Duration(time.Minute),
		SendRate:            200,
		SendBurst:           50,
		ReplayWindow:        Duration(5 * time.Minute),
		ReplayCacheSize:     4096,
		PollInterval:        Duration(50 * time.Millisecond),
	}
}

// Validate 验证消息层配置
func (c *MessagingConfig) Validate() error {
	if c.MaxRetries < 1 {
		return errors.New("messaging: max_retries must be at least 1")
	}
	if c.BaseDelay <= 0 || c.RequestTimeout <= 0 || c.RetentionWindow <= 0 {
		return errors.New("messaging: delays and timeouts must be positive")
	}
	if c.MaxPendingResponses < 1 {
		return errors.New("messaging: max_pending_responses must be at least 1")
	}
	if c.SendRate < 0 || c.SendBurst < 0 {
		return errors.New("messaging: send rate must be non-negative")
	}
	if c.ReplayCacheSize < 1 || c.ReplayWindow <= 0 {
		return errors.New("messaging: replay cache must be enabled")
	}
	if c.PollInterval <= 0 || c.CleanupInterval <= 0 {
		return errors.New("messaging: intervals must be positive")
	}
	return nil
}
