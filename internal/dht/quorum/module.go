package quorum

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
)

// Params 法定人数模块依赖参数
type Params struct {
	fx.In

	Members    []Member         `name:"quorum_members"`
	UnifiedCfg *config.Config   `optional:"true"`
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// Module 返回法定人数 Fx 模块
//
// 提供:
//   - *Manager: 法定人数管理器
//
// 需要以名称 quorum_members 提供初始成员列表。
func Module() fx.Option {
	return fx.Module("quorum",
		fx.Provide(ProvideManager),
	)
}

// ProvideManager 提供法定人数管理器
func ProvideManager(p Params) (*Manager, error) {
	cfg, err := ConfigFromUnified(p.UnifiedCfg)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	if p.Metrics != nil {
		opts = append(opts, WithMetrics(p.Metrics))
	}
	return New(cfg, p.Members, opts...)
}
