package storage

import (
	"time"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
)

// Config Storage 模块配置
//
// 测试代码应使用 t.TempDir() 创建临时目录，或启用 InMemory。
type Config struct {
	// Path 存储路径（BadgerDB 数据库目录，InMemory 为 false 时必需）
	Path string

	// InMemory 纯内存模式
	InMemory bool

	// SyncWrites 是否同步写入
	SyncWrites bool

	// GCInterval 值日志 GC 间隔，0 表示禁用
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Path:           "./data/dhtstore.db",
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// ConfigFromUnified 从统一配置创建 Storage 配置
func ConfigFromUnified(cfg *config.Config) Config {
	storageCfg := DefaultConfig()
	if cfg == nil {
		return storageCfg
	}

	if cfg.Storage.DataDir != "" {
		storageCfg.Path = cfg.Storage.DBPath()
	}
	storageCfg.InMemory = cfg.Storage.InMemory
	storageCfg.SyncWrites = cfg.Storage.SyncWrites
	storageCfg.GCInterval = cfg.Storage.GCInterval.Duration()

	return storageCfg
}

// ToEngineConfig 转换为引擎配置
func (c *Config) ToEngineConfig() *engine.Config {
	var engineCfg *engine.Config
	if c.InMemory {
		engineCfg = engine.InMemoryConfig()
	} else {
		engineCfg = engine.DefaultConfig(c.Path)
	}

	engineCfg.SyncWrites = c.SyncWrites
	engineCfg.Badger.GCInterval = c.GCInterval
	engineCfg.Badger.GCDiscardRatio = c.GCDiscardRatio

	return engineCfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return ErrInvalidConfig
	}
	if c.GCInterval > 0 && c.GCInterval < time.Minute {
		c.GCInterval = time.Minute
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		c.GCDiscardRatio = 0.5
	}
	return nil
}

// WithPath 设置存储路径
func (c Config) WithPath(path string) Config {
	c.Path = path
	return c
}

// WithInMemory 设置纯内存模式
func (c Config) WithInMemory(inMemory bool) Config {
	c.InMemory = inMemory
	return c
}

// WithSyncWrites 设置同步写入
func (c Config) WithSyncWrites(sync bool) Config {
	c.SyncWrites = sync
	return c
}

// WithGC 设置垃圾回收间隔
func (c Config) WithGC(interval time.Duration) Config {
	c.GCInterval = interval
	return c
}
