package messaging

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// Params 消息层模块依赖参数
type Params struct {
	fx.In

	Self       types.NodeID
	Transport  Transport
	UnifiedCfg *config.Config   `optional:"true"`
	Handler    RequestHandler   `optional:"true"`
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// Module 返回消息层 Fx 模块
//
// 提供:
//   - *Service: 消息层服务
//
// 生命周期:
//   - OnStart: 启动发送与清理循环
//   - OnStop: 停止循环，关闭所有等待方
func Module() fx.Option {
	return fx.Module("messaging",
		fx.Provide(ProvideService),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideService 提供消息层服务
func ProvideService(p Params) (*Service, error) {
	opts := []Option{WithMetrics(p.Metrics)}
	if p.Handler != nil {
		opts = append(opts, WithHandler(p.Handler))
	}
	if p.Clock != nil {
		opts = append(opts, WithClock(p.Clock))
	}
	return New(p.Self, p.Transport, ConfigFromUnified(p.UnifiedCfg), opts...)
}

func registerLifecycle(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
