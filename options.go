package dhtstore

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/dht/memnet"
	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/internal/dht/quorum"
	"github.com/dep2p/go-dhtstore/pkg/lib/crypto"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 统一配置（nil 时使用默认配置）
	config *config.Config

	// 预设，在统一配置之上应用
	preset string

	// 存储覆盖项，在统一配置确定后应用
	inMemory bool
	dataDir  string

	// 身份
	privateKey crypto.PrivateKey

	// 传输层：transport 优先，其次 hub
	transport messaging.Transport
	hub       *memnet.Hub

	// 法定人数初始成员（为空时仅包含本节点）
	quorumMembers []quorum.Member

	clock clock.Clock

	// 用户扩展
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

// resolveConfig 返回应用存储覆盖项后的统一配置
func (o *options) resolveConfig() (*config.Config, error) {
	cfg := o.config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := config.ApplyPreset(cfg, o.preset); err != nil {
		return nil, err
	}
	if o.inMemory {
		cfg.Storage.InMemory = true
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整的统一配置
//
// 传入的配置会被复制，后续修改不影响节点。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrNilOption
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithPreset 在统一配置之上应用预设（minimal/durable/ephemeral）
//
// 存储覆盖项在预设之后应用。
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// WithConfigFile 从 JSON/YAML 文件加载统一配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithInMemory 使用纯内存存储，不落盘
func WithInMemory() Option {
	return func(o *options) error {
		o.inMemory = true
		return nil
	}
}

// WithDataDir 设置数据目录
func WithDataDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return fmt.Errorf("dhtstore: empty data dir")
		}
		o.dataDir = dir
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份与传输
// ════════════════════════════════════════════════════════════════════════════

// WithIdentity 设置节点私钥
//
// 未设置时启动前生成新的 Ed25519 密钥。节点 ID 由公钥派生。
func WithIdentity(priv crypto.PrivateKey) Option {
	return func(o *options) error {
		if priv == nil {
			return ErrNilOption
		}
		o.privateKey = priv
		return nil
	}
}

// WithTransport 设置消息传输层
//
// 传输层需要已绑定本节点 ID；与 WithIdentity 配合使用。
func WithTransport(t messaging.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return ErrNilOption
		}
		o.transport = t
		return nil
	}
}

// WithHub 接入进程内传输集线器
//
// 节点 ID 确定后在集线器上创建端点。未设置传输层时，
// 节点使用私有集线器（只能与自己通信）。
func WithHub(hub *memnet.Hub) Option {
	return func(o *options) error {
		if hub == nil {
			return ErrNilOption
		}
		o.hub = hub
		return nil
	}
}

// WithQuorumMembers 设置法定人数初始成员
func WithQuorumMembers(members ...quorum.Member) Option {
	return func(o *options) error {
		o.quorumMembers = append(o.quorumMembers[:0:0], members...)
		return nil
	}
}

// WithClock 设置时钟（测试中使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return ErrNilOption
		}
		o.clock = clk
		return nil
	}
}

// WithFxOption 追加 Fx 选项，用于替换或扩展内部组件
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
