package config

import (
	"fmt"
	"strings"
	"time"
)

// 法定人数形状
const (
	QuorumShapeMajority   = "majority"
	QuorumShapeReadHeavy  = "read_heavy"
	QuorumShapeWriteHeavy = "write_heavy"
	QuorumShapeCustom     = "custom"
)

// QuorumConfig 法定人数配置
//
// N 始终等于当前成员数，因此这里只配置形状；
// 形状为 custom 时使用 R/W。
type QuorumConfig struct {
	// Shape 形状（majority/read_heavy/write_heavy/custom）
	Shape string `json:"shape"`

	// R 读法定人数（仅 custom）
	R int `json:"r,omitempty"`

	// W 写法定人数（仅 custom）
	W int `json:"w,omitempty"`

	// MaxClockSkew 签名时间戳允许超前本地时钟的最大值
	MaxClockSkew Duration `json:"max_clock_skew"`
}

// DefaultQuorumConfig 返回默认法定人数配置
func DefaultQuorumConfig() QuorumConfig {
	return QuorumConfig{
		Shape:        QuorumShapeMajority,
		MaxClockSkew: Duration(30 * time.Second),
	}
}

// Validate 验证法定人数配置
func (c *QuorumConfig) Validate() error {
	switch strings.ToLower(c.Shape) {
	case QuorumShapeMajority, QuorumShapeReadHeavy, QuorumShapeWriteHeavy:
	case QuorumShapeCustom:
		if c.R < 1 || c.W < 1 {
			return fmt.Errorf("quorum: custom shape requires r >= 1 and w >= 1")
		}
	default:
		return fmt.Errorf("quorum: unknown shape %q", c.Shape)
	}
	if c.MaxClockSkew < 0 {
		return fmt.Errorf("quorum: max_clock_skew must be non-negative")
	}
	return nil
}
