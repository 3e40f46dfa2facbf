package integrity

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
)

// Params 完整性模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Persister  Persister        `optional:"true"`
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// Module 返回完整性 Fx 模块
//
// 提供:
//   - *Engine: 完整性引擎
//
// 生命周期:
//   - OnStart: 从持久化后端恢复元数据
func Module() fx.Option {
	return fx.Module("integrity",
		fx.Provide(ProvideEngine),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEngine 提供完整性引擎
func ProvideEngine(p Params) (*Engine, error) {
	cfg, err := ConfigFromUnified(p.UnifiedCfg)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if p.Persister != nil && (p.UnifiedCfg == nil || p.UnifiedCfg.Integrity.Persist) {
		opts = append(opts, WithPersister(p.Persister))
	}
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	if p.Metrics != nil {
		opts = append(opts, WithMetrics(p.Metrics))
	}
	return New(cfg, opts...)
}

func registerLifecycle(lc fx.Lifecycle, e *Engine) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return e.Load()
		},
	})
}
