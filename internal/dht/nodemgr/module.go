package nodemgr

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
)

// Params 节点管理模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
	Persister  Persister      `optional:"true"`
}

// Module 返回节点管理 Fx 模块
//
// 提供:
//   - *Manager: 节点管理器
//
// 生命周期:
//   - OnStart: 从持久化后端恢复节点记录
func Module() fx.Option {
	return fx.Module("nodemgr",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供节点管理器
func ProvideManager(p Params) (*Manager, error) {
	var opts []Option
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	if p.Persister != nil && (p.UnifiedCfg == nil || p.UnifiedCfg.NodeManager.Persist) {
		opts = append(opts, WithPersister(p.Persister))
	}
	return New(ConfigFromUnified(p.UnifiedCfg), opts...)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return m.Load()
		},
	})
}
