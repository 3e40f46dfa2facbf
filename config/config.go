// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON/YAML 文件加载（viper）和 JSON 往返
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Replication.Default.ReplicationFactor = 5
//
//	// 从文件加载
//	cfg, err := config.Load("dhtstore.yaml")
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

// Config 是 DHT 存储核心的完整配置结构
//
// 配置按照功能模块组织：
//   - Storage: 持久化存储
//   - NodeManager: 节点管理与信誉
//   - Replication: 副本策略与修复
//   - Quorum: 读写法定人数
//   - Messaging: 消息队列、重试与关联
//   - Integrity: 完整性校验与自愈
//   - Metrics: Prometheus 指标
type Config struct {
	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// NodeManager 节点管理配置
	NodeManager NodeManagerConfig `json:"node_manager"`

	// Replication 副本配置
	Replication ReplicationConfig `json:"replication"`

	// Quorum 法定人数配置
	Quorum QuorumConfig `json:"quorum"`

	// Messaging 消息层配置
	Messaging MessagingConfig `json:"messaging"`

	// Integrity 完整性配置
	Integrity IntegrityConfig `json:"integrity"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，适用于大多数场景。
func NewConfig() *Config {
	return &Config{
		Storage:     DefaultStorageConfig(),
		NodeManager: DefaultNodeManagerConfig(),
		Replication: DefaultReplicationConfig(),
		Quorum:      DefaultQuorumConfig(),
		Messaging:   DefaultMessagingConfig(),
		Integrity:   DefaultIntegrityConfig(),
		Metrics:     DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
// 建议在使用配置前调用此方法。
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.NodeManager.Validate(); err != nil {
		return err
	}
	if err := c.Replication.Validate(); err != nil {
		return err
	}
	if err := c.Quorum.Validate(); err != nil {
		return err
	}
	if err := c.Messaging.Validate(); err != nil {
		return err
	}
	if err := c.Integrity.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
