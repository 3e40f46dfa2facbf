package dhtstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/dht/integrity"
	"github.com/dep2p/go-dhtstore/internal/dht/memnet"
	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/internal/dht/nodemgr"
	"github.com/dep2p/go-dhtstore/internal/dht/quorum"
	"github.com/dep2p/go-dhtstore/internal/dht/replication"
	"github.com/dep2p/go-dhtstore/internal/dht/store"
	"github.com/dep2p/go-dhtstore/pkg/lib/crypto"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dhtstore")

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 空闲状态（已创建，未启动）
	StateIdle NodeState = iota

	// StateStarting 启动中（Fx App 启动中）
	StateStarting

	// StateRunning 运行中
	StateRunning

	// StateStopping 停止中
	StateStopping

	// StateStopped 已停止（不可重新启动）
	StateStopped
)

// String 返回状态的字符串表示
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node DHT 存储节点
//
// Node 是门面，聚合节点管理、消息层、副本、法定人数和完整性组件。
// 组件由 Fx 构建，Start 之后才可使用数据接口。
type Node struct {
	mu      sync.Mutex
	state   NodeState
	started bool
	closed  bool

	config     *config.Config
	self       types.NodeID
	privateKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	clock      clock.Clock

	app      *fx.App
	endpoint *memnet.Endpoint // 由节点创建的 memnet 端点，关闭时注销

	// Fx 注入的组件
	engine      engine.Engine
	values      *store.ValueStore
	content     *contentKeeper
	nodes       *nodemgr.Manager
	messaging   *messaging.Service
	replication *replication.Manager
	quorum      *quorum.Manager
	integrity   *integrity.Engine
	metrics     *metrics.Metrics

	// 修复轮次串行执行
	repairMu sync.Mutex

	// 后台循环
	loopCancel context.CancelFunc
	loopWg     sync.WaitGroup
}

// New 创建节点
//
// 解析选项、确定身份和传输层，并构建 Fx 应用。不启动任何组件。
//
// 示例：
//
//	node, err := dhtstore.New(ctx,
//	    dhtstore.WithInMemory(),
//	    dhtstore.WithHub(hub),
//	)
func New(_ context.Context, opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, err
	}

	priv := o.privateKey
	if priv == nil {
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate identity: %w", err)
		}
	}
	pub := priv.GetPublic()
	self, err := crypto.NodeIDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive node id: %w", err)
	}

	node := &Node{
		state:      StateIdle,
		config:     cfg,
		self:       self,
		privateKey: priv,
		publicKey:  pub,
		clock:      o.clock,
	}
	if node.clock == nil {
		node.clock = clock.New()
	}

	transport := o.transport
	if transport == nil {
		hub := o.hub
		if hub == nil {
			hub = memnet.NewHub()
		}
		node.endpoint = hub.Endpoint(self)
		transport = node.endpoint
	}

	members := o.quorumMembers
	if len(members) == 0 {
		members = []quorum.Member{{ID: self, PublicKey: pub}}
	}

	node.app = buildFxApp(cfg, o, identity{id: self, members: members}, transport, node)
	if err := node.app.Err(); err != nil {
		node.releaseResources()
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	logger.Debug("节点已创建", "node", self.ShortString())
	return node, nil
}

// Start 快捷启动函数
//
// 创建节点并立即启动，等价于 New() + Start()。
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	if err := node.Start(ctx); err != nil {
		return nil, fmt.Errorf("start node: %w", err)
	}
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// ID 返回节点 ID
func (n *Node) ID() types.NodeID {
	return n.self
}

// PublicKey 返回节点公钥
func (n *Node) PublicKey() crypto.PublicKey {
	return n.publicKey
}

// PrivateKey 返回节点私钥，用于签名法定人数响应
func (n *Node) PrivateKey() crypto.PrivateKey {
	return n.privateKey
}

// State 返回节点当前状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Config 返回节点使用的统一配置
func (n *Node) Config() *config.Config {
	return n.config
}

// Descriptor 返回本节点的节点记录
//
// 供其它节点 AddPeer 使用。storage 为 nil 表示本节点不提供存储。
func (n *Node) Descriptor(storage *types.StorageCapabilities, addrs ...types.Address) *types.DhtNode {
	raw, err := n.publicKey.Raw()
	if err != nil {
		logger.Warn("读取公钥失败", "error", err)
	}
	d := &types.DhtNode{
		Identity:  types.PeerIdentity{ID: n.self, PublicKey: raw},
		Addresses: append([]types.Address(nil), addrs...),
		LastSeen:  n.clock.Now(),
	}
	if storage != nil {
		s := *storage
		d.Storage = &s
	}
	return d
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// NodeManager 返回节点管理器
func (n *Node) NodeManager() *nodemgr.Manager { return n.nodes }

// Messaging 返回消息层服务
func (n *Node) Messaging() *messaging.Service { return n.messaging }

// Replication 返回副本管理器
func (n *Node) Replication() *replication.Manager { return n.replication }

// Quorum 返回法定人数管理器
func (n *Node) Quorum() *quorum.Manager { return n.quorum }

// Integrity 返回完整性引擎
func (n *Node) Integrity() *integrity.Engine { return n.integrity }

// Metrics 返回指标集合，未启用时为 nil
func (n *Node) Metrics() *metrics.Metrics { return n.metrics }

// ════════════════════════════════════════════════════════════════════════════
//                              节点记录
// ════════════════════════════════════════════════════════════════════════════

// AddPeer 记录一个已知节点
func (n *Node) AddPeer(peer *types.DhtNode) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	return n.nodes.AddNode(peer)
}

// AddQuorumMember 把节点记录中的身份加入法定人数成员
//
// 记录的公钥须能派生出其 NodeID。N 变化后 R/W 按形状重新计算。
func (n *Node) AddQuorumMember(peer *types.DhtNode) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	member, err := quorum.MemberFromNode(peer)
	if err != nil {
		return err
	}
	return n.quorum.AddNode(member.ID, member.PublicKey)
}

// RemovePeer 移除节点，并把它从所有副本集合中剔除
//
// 返回受影响的副本键数量。
func (n *Node) RemovePeer(id types.NodeID) (int, error) {
	if err := n.checkRunning(); err != nil {
		return 0, err
	}
	n.nodes.RemoveNode(id)
	return n.replication.MarkNodeFailed(id), nil
}

func (n *Node) checkRunning() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	if !n.started {
		return ErrNotStarted
	}
	return nil
}

func (n *Node) releaseEndpoint() {
	if n.endpoint != nil {
		_ = n.endpoint.Close()
	}
}
