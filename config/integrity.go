package config

import (
	"fmt"
	"strings"
	"time"
)

// IntegrityConfig 完整性配置
type IntegrityConfig struct {
	// Algorithm 默认校验算法（sha256/blake3/xxhash64）
	Algorithm string `json:"algorithm"`

	// BlockSize 内容分块大小（字节）
	BlockSize int `json:"block_size"`

	// CheckInterval 内容超过此时间未校验即视为需要检查
	CheckInterval Duration `json:"check_interval"`

	// ScanInterval 后台过期扫描间隔，0 表示禁用
	ScanInterval Duration `json:"scan_interval"`

	// DataShards 纠删码数据分片数（0 表示不启用纠删码）
	DataShards int `json:"data_shards"`

	// ParityShards 纠删码校验分片数
	ParityShards int `json:"parity_shards"`

	// Persist 是否持久化完整性元数据
	Persist bool `json:"persist"`
}

// DefaultIntegrityConfig 返回默认完整性配置
func DefaultIntegrityConfig() IntegrityConfig {
	return IntegrityConfig{
		Algorithm:     "sha256",
		BlockSize:     64 << 10,
		CheckInterval: Duration(3600 * time.Second),
		ScanInterval:  Duration(10 * time.Minute),
		DataShards:    4,
		ParityShards:  2,
		Persist:       true,
	}
}

// Validate 验证完整性配置
func (c *IntegrityConfig) Validate() error {
	switch strings.ToLower(c.Algorithm) {
	case "sha256", "blake3", "xxhash64":
	default:
		return fmt.Errorf("integrity: unknown algorithm %q", c.Algorithm)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("integrity: block_size must be positive")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("integrity: check_interval must be positive")
	}
	if c.ScanInterval < 0 {
		return fmt.Errorf("integrity: scan_interval must be non-negative")
	}
	if c.DataShards < 0 || c.ParityShards < 0 {
		return fmt.Errorf("integrity: shard counts must be non-negative")
	}
	if c.DataShards > 0 && c.ParityShards == 0 {
		return fmt.Errorf("integrity: parity_shards required when data_shards is set")
	}
	if c.DataShards+c.ParityShards > 256 {
		return fmt.Errorf("integrity: at most 256 shards are supported")
	}
	return nil
}

// ErasureEnabled 是否启用纠删码
func (c *IntegrityConfig) ErasureEnabled() bool {
	return c.DataShards > 0 && c.ParityShards > 0
}
