package dhtstore

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/core/storage"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/dht/integrity"
	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/internal/dht/nodemgr"
	"github.com/dep2p/go-dhtstore/internal/dht/quorum"
	"github.com/dep2p/go-dhtstore/internal/dht/replication"
	"github.com/dep2p/go-dhtstore/internal/dht/store"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var fxLogger = log.Logger("dhtstore/fx")

// identity 节点身份（构建 Fx 应用前确定）
type identity struct {
	id      types.NodeID
	members []quorum.Member
}

// buildFxApp 构建 Fx 应用
func buildFxApp(cfg *config.Config, o *options, ident identity, transport messaging.Transport, node *Node) *fx.App {
	fxLogger.Debug("构建 Fx 应用", "node", ident.id.ShortString(), "metrics", cfg.Metrics.Enabled)
	return fx.New(fxOptions(cfg, o, ident, transport, node))
}

// fxOptions 返回节点的全部 Fx 选项
//
// 组装顺序：
//  1. 配置与身份
//  2. 存储引擎与类型化持久化
//  3. 指标（条件加载）
//  4. 节点管理、消息层、副本、法定人数、完整性
//  5. 用户扩展
//  6. Node 组件注入
func fxOptions(cfg *config.Config, o *options, ident identity, transport messaging.Transport, node *Node) fx.Option {
	modules := []fx.Option{}

	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置与身份
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Supply(cfg),
		fx.Supply(ident.id),
		fx.Provide(func() messaging.Transport { return transport }),
		fx.Provide(fx.Annotate(
			func() []quorum.Member { return ident.members },
			fx.ResultTags(`name:"quorum_members"`),
		)),
	)
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 存储
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		storage.Module(),
		fx.Provide(
			store.NewValueStore,
			newContentKeeper,
			provideNodePersister,
			provideStatusPersister,
			provideIntegrityPersister,
			func(v *store.ValueStore) replication.ValueSource { return v },
		),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 指标（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Metrics.Enabled {
		ns := cfg.Metrics.Namespace
		modules = append(modules, fx.Provide(func() *metrics.Metrics {
			return metrics.New(ns)
		}))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. DHT 存储组件
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		nodemgr.Module(),
		fx.Provide(
			func(m *nodemgr.Manager) replication.ReputationTracker { return m },
			provideRequestHandler,
			provideDeliverer,
		),
		messaging.Module(),
		replication.Module(),
		quorum.Module(),
		integrity.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展（Fx Options）
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.Options(modules...)
}

// ════════════════════════════════════════════════════════════════════════════
// 提供函数
// ════════════════════════════════════════════════════════════════════════════

func provideNodePersister(eng engine.Engine) nodemgr.Persister {
	return store.NewCollection[types.DhtNode](eng, store.PrefixNodes)
}

func provideStatusPersister(eng engine.Engine) replication.StatusPersister {
	return store.NewCollection[replication.Status](eng, store.PrefixStatuses)
}

func provideIntegrityPersister(eng engine.Engine) integrity.Persister {
	return store.NewCollection[integrity.Metadata](eng, store.PrefixIntegrity)
}

// handlerParams 请求处理器依赖
type handlerParams struct {
	fx.In

	Self    types.NodeID
	Nodes   *nodemgr.Manager
	Content *contentKeeper
}

func provideRequestHandler(p handlerParams) messaging.RequestHandler {
	return newStoreHandler(p.Self, p.Nodes, p.Content)
}

func provideDeliverer(svc *messaging.Service, cfg *config.Config) replication.Deliverer {
	return messaging.NewStoreDeliverer(svc, cfg.Replication.DeliveryTimeout.Duration())
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入
// ════════════════════════════════════════════════════════════════════════════

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Engine      engine.Engine
	Values      *store.ValueStore
	Content     *contentKeeper
	Nodes       *nodemgr.Manager
	Messaging   *messaging.Service
	Replication *replication.Manager
	Quorum      *quorum.Manager
	Integrity   *integrity.Engine
	Metrics     *metrics.Metrics `optional:"true"`
}

// injectNodeComponents 把 Fx 构建的组件注入 Node
func injectNodeComponents(node *Node) func(nodeInjectParams) error {
	return func(p nodeInjectParams) error {
		node.engine = p.Engine
		node.values = p.Values
		node.content = p.Content
		node.nodes = p.Nodes
		node.messaging = p.Messaging
		node.replication = p.Replication
		node.quorum = p.Quorum
		node.integrity = p.Integrity
		node.metrics = p.Metrics
		return node.registerGauges()
	}
}
