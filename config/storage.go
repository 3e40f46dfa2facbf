package config

import (
	"fmt"
	"path/filepath"
	"time"
)

const defaultGCInterval = 10 * time.Minute

// StorageConfig 存储配置
//
// 节点记录、副本状态、完整性元数据和本地值统一存放在一个 BadgerDB 中，
// 通过 Key 前缀隔离。
//
// 数据目录结构：
//
//	${DataDir}/
//	└── dhtstore.db/        # BadgerDB 主数据库
type StorageConfig struct {
	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// InMemory 纯内存模式（重启后数据丢失，用于测试和临时节点）
	InMemory bool `json:"in_memory"`

	// SyncWrites 每次写入同步到磁盘
	SyncWrites bool `json:"sync_writes"`

	// GCInterval 值日志 GC 间隔
	GCInterval Duration `json:"gc_interval"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:    "./data",
		GCInterval: Duration(defaultGCInterval),
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("storage: gc_interval must be non-negative")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "dhtstore.db")
}
