package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 DHTSTORE_MESSAGING_MAX_RETRIES
const EnvPrefix = "DHTSTORE"

// Load 从配置文件加载配置
//
// 文件格式由扩展名决定（.json/.yaml/.yml/.toml）。
// 文件中未出现的字段保持默认值，加载后执行 Validate。
// 文件中已出现的键可被 DHTSTORE_<SECTION>_<KEY> 环境变量覆盖。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// 经由 JSON 中转，使 Duration 等自定义类型沿用 JSON 解码规则
	data, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("config: encode settings: %w", err)
	}

	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromJSON 从 JSON 数据创建配置
//
// 在默认配置之上覆盖 JSON 中出现的字段。
//
// 示例 JSON:
//
//	{
//	  "replication": {"default": {"replication_factor": 5, "repair_threshold": 3}},
//	  "messaging": {"base_delay": "500ms"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
