package memnet

import (
	"context"
	"errors"
	"sync"

	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

var logger = log.Logger("dht/memnet")

var (
	// ErrUnreachable 目标节点不可达（未注册、已断开或链路故障）
	ErrUnreachable = errors.New("memnet: peer unreachable")

	// ErrClosed 端点已关闭
	ErrClosed = errors.New("memnet: endpoint closed")
)

type link struct {
	from, to types.NodeID
}

// Hub 进程内消息交换中心
type Hub struct {
	mu        sync.RWMutex
	endpoints map[types.NodeID]*Endpoint
	down      map[link]struct{}
	isolated  map[types.NodeID]struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		endpoints: make(map[types.NodeID]*Endpoint),
		down:      make(map[link]struct{}),
		isolated:  make(map[types.NodeID]struct{}),
	}
}

// Endpoint 返回节点的端点，不存在时创建
func (h *Hub) Endpoint(id types.NodeID) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ep, ok := h.endpoints[id]; ok {
		return ep
	}
	ep := &Endpoint{hub: h, id: id}
	h.endpoints[id] = ep
	return ep
}

// Peers 返回已注册的节点
func (h *Hub) Peers() []types.NodeID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]types.NodeID, 0, len(h.endpoints))
	for id := range h.endpoints {
		ids = append(ids, id)
	}
	return ids
}

// SetLinkDown 设置 from → to 单向链路故障
func (h *Hub) SetLinkDown(from, to types.NodeID, down bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	l := link{from: from, to: to}
	if down {
		h.down[l] = struct{}{}
	} else {
		delete(h.down, l)
	}
}

// Isolate 设置节点隔离：所有进出该节点的消息都失败
func (h *Hub) Isolate(id types.NodeID, isolated bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if isolated {
		h.isolated[id] = struct{}{}
	} else {
		delete(h.isolated, id)
	}
}

func (h *Hub) route(from, to types.NodeID) (*Endpoint, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.isolated[from]; ok {
		return nil, ErrUnreachable
	}
	if _, ok := h.isolated[to]; ok {
		return nil, ErrUnreachable
	}
	if _, ok := h.down[link{from: from, to: to}]; ok {
		return nil, ErrUnreachable
	}
	ep, ok := h.endpoints[to]
	if !ok {
		return nil, ErrUnreachable
	}
	return ep, nil
}

func (h *Hub) remove(id types.NodeID) {
	h.mu.Lock()
	delete(h.endpoints, id)
	h.mu.Unlock()
}

// ============================================================================
//                              Endpoint
// ============================================================================

// Endpoint 节点在 Hub 上的端点
type Endpoint struct {
	hub *Hub
	id  types.NodeID

	mu       sync.RWMutex
	receiver messaging.Receiver
	closed   bool
	sent     int
	received int
}

// ID 返回端点所属节点
func (e *Endpoint) ID() types.NodeID {
	return e.id
}

// SetReceiver 实现 messaging.Transport
func (e *Endpoint) SetReceiver(r messaging.Receiver) {
	e.mu.Lock()
	e.receiver = r
	e.mu.Unlock()
}

// Send 实现 messaging.Transport
func (e *Endpoint) Send(ctx context.Context, target types.NodeID, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.sent++
	e.mu.Unlock()

	dst, err := e.hub.route(e.id, target)
	if err != nil {
		logger.Debug("投递失败", "from", e.id.ShortString(), "to", target.ShortString(), "error", err)
		return err
	}
	return dst.deliver(ctx, e.id, append([]byte(nil), payload...))
}

func (e *Endpoint) deliver(ctx context.Context, from types.NodeID, payload []byte) error {
	e.mu.Lock()
	if e.closed || e.receiver == nil {
		e.mu.Unlock()
		return ErrUnreachable
	}
	r := e.receiver
	e.received++
	e.mu.Unlock()

	r.Receive(ctx, from, payload)
	return nil
}

// Stats 返回已发送和已接收的消息数
func (e *Endpoint) Stats() (sent, received int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sent, e.received
}

// Close 关闭端点并从 Hub 注销
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.receiver = nil
	e.mu.Unlock()

	e.hub.remove(e.id)
	return nil
}

var _ messaging.Transport = (*Endpoint)(nil)
