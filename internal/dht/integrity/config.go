package integrity

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
)

// DefaultCheckInterval 内容超过此时间未校验即需要检查
const DefaultCheckInterval = 3600 * time.Second

// Config 完整性引擎配置
type Config struct {
	// Algorithm 默认校验算法
	Algorithm Algorithm

	// BlockSize 默认分块大小
	BlockSize int

	// CheckInterval 校验过期时间
	CheckInterval time.Duration

	// Erasure 默认纠删码参数，nil 表示不启用
	Erasure *ErasureParams
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Algorithm:     SHA256,
		BlockSize:     64 << 10,
		CheckInterval: DefaultCheckInterval,
	}
}

// ConfigFromUnified 从统一配置创建完整性配置
func ConfigFromUnified(cfg *config.Config) (*Config, error) {
	c := DefaultConfig()
	if cfg == nil {
		return c, nil
	}
	algo, err := ParseAlgorithm(cfg.Integrity.Algorithm)
	if err != nil {
		return nil, err
	}
	c.Algorithm = algo
	c.BlockSize = cfg.Integrity.BlockSize
	c.CheckInterval = cfg.Integrity.CheckInterval.Duration()
	if cfg.Integrity.ErasureEnabled() {
		p, err := NewErasureParams(cfg.Integrity.DataShards, cfg.Integrity.ParityShards)
		if err != nil {
			return nil, err
		}
		c.Erasure = &p
	}
	return c, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Algorithm > XXHash64 || c.BlockSize <= 0 || c.CheckInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.Erasure != nil {
		return c.Erasure.Validate()
	}
	return nil
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clock = clk
	}
}

// WithCodec 设置纠删码实现，默认 Reed-Solomon
func WithCodec(codec ErasureCodec) Option {
	return func(e *Engine) {
		e.codec = codec
	}
}

// WithPersister 设置元数据持久化后端
func WithPersister(p Persister) Option {
	return func(e *Engine) {
		e.persister = p
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(mt *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = mt
	}
}
