package replication

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// Params 副本管理模块依赖参数
type Params struct {
	fx.In

	Self       types.NodeID
	Deliverer  Deliverer
	Reputation ReputationTracker
	UnifiedCfg *config.Config   `optional:"true"`
	Values     ValueSource      `optional:"true"`
	Persister  StatusPersister  `optional:"true"`
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// Module 返回副本管理 Fx 模块
//
// 提供:
//   - *Manager: 副本管理器
//
// 生命周期:
//   - OnStart: 从持久化后端恢复副本状态
func Module() fx.Option {
	return fx.Module("replication",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供副本管理器
func ProvideManager(p Params) (*Manager, error) {
	opts := []Option{WithSelf(p.Self)}
	if p.Values != nil {
		opts = append(opts, WithValueSource(p.Values))
	}
	if p.Persister != nil && (p.UnifiedCfg == nil || p.UnifiedCfg.Replication.Persist) {
		opts = append(opts, WithPersister(p.Persister))
	}
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	if p.Metrics != nil {
		opts = append(opts, WithMetrics(p.Metrics))
	}
	return New(ConfigFromUnified(p.UnifiedCfg), p.Deliverer, p.Reputation, opts...)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return m.Load()
		},
	})
}
