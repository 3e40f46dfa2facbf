package engine

import (
	"os"
	"path/filepath"
	"time"
)

// Config 存储引擎配置
//
// 测试代码应使用 t.TempDir() 创建临时目录，或设置 InMemory。
type Config struct {
	// Path 数据目录路径（InMemory 为 false 时必需）
	Path string

	// InMemory 纯内存模式，不落盘
	InMemory bool

	// SyncWrites 是否同步写入
	SyncWrites bool

	// ReadOnly 是否只读模式
	ReadOnly bool

	// Badger 特定选项
	Badger BadgerOptions
}

// BadgerOptions BadgerDB 特定选项
type BadgerOptions struct {
	// MemTableSize 内存表大小（字节），默认 64MB
	MemTableSize int64

	// ValueLogFileSize 值日志文件大小（字节），默认 256MB
	ValueLogFileSize int64

	// ValueThreshold 大于此值的值存储在值日志中，默认 1KB
	ValueThreshold int64

	// BlockCacheSize 块缓存大小（字节），默认 64MB
	BlockCacheSize int64

	// NumCompactors 压缩器数量，默认 2
	NumCompactors int

	// GCInterval 值日志 GC 间隔，0 表示禁用
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例，默认 0.5
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:   path,
		Badger: DefaultBadgerOptions(),
	}
}

// InMemoryConfig 返回纯内存配置
func InMemoryConfig() *Config {
	return &Config{
		InMemory: true,
		Badger:   DefaultBadgerOptions(),
	}
}

// DefaultBadgerOptions 返回默认 BadgerDB 选项
func DefaultBadgerOptions() BadgerOptions {
	return BadgerOptions{
		MemTableSize:     64 << 20,
		ValueLogFileSize: 256 << 20,
		ValueThreshold:   1 << 10,
		BlockCacheSize:   64 << 20,
		NumCompactors:    2,
		GCInterval:       10 * time.Minute,
		GCDiscardRatio:   0.5,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}
	if c.InMemory && c.ReadOnly {
		return ErrInvalidConfig
	}
	if c.Badger.MemTableSize < 1<<20 { // 最小 1MB
		return ErrInvalidConfig
	}
	if c.Badger.ValueLogFileSize < 1<<20 {
		return ErrInvalidConfig
	}
	if c.Badger.GCDiscardRatio <= 0 || c.Badger.GCDiscardRatio >= 1 {
		return ErrInvalidConfig
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	absPath, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = absPath
	return os.MkdirAll(c.Path, 0755)
}
