package dhtstore

import (
	"context"

	"github.com/dep2p/go-dhtstore/internal/dht/messaging"
	"github.com/dep2p/go-dhtstore/internal/dht/nodemgr"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// closerNodesLimit FindNode / FindValue 响应中最多返回的节点数
const closerNodesLimit = 20

// storeHandler 由节点管理器和本地内容支撑的请求处理器
//
// 每个入站请求都会刷新发送方的 LastSeen（仅对已知节点生效）。
type storeHandler struct {
	self    types.NodeID
	nodes   *nodemgr.Manager
	content *contentKeeper
}

func newStoreHandler(self types.NodeID, nodes *nodemgr.Manager, content *contentKeeper) *storeHandler {
	return &storeHandler{self: self, nodes: nodes, content: content}
}

// HandleFindNode 实现 messaging.RequestHandler
func (h *storeHandler) HandleFindNode(_ context.Context, from, target types.NodeID) []types.DhtNode {
	h.nodes.Touch(from)
	return h.closest(target, from)
}

// HandleFindValue 实现 messaging.RequestHandler
func (h *storeHandler) HandleFindValue(_ context.Context, from types.NodeID, key string) ([]byte, bool, []types.DhtNode) {
	h.nodes.Touch(from)

	value, ok, err := h.content.values.Get(key)
	if err != nil {
		logger.Warn("读取本地值失败", "key", key, "error", err)
	}
	if ok {
		return value, true, nil
	}
	return nil, false, h.closest(KeyTarget(key), from)
}

// HandleStore 实现 messaging.RequestHandler
func (h *storeHandler) HandleStore(_ context.Context, from types.NodeID, key string, value []byte) error {
	h.nodes.Touch(from)

	if err := h.content.Store(key, value); err != nil {
		logger.Warn("存储副本失败", "key", key, "from", from.ShortString(), "error", err)
		return err
	}
	logger.Debug("已存储副本", "key", key, "from", from.ShortString(), "size", len(value))
	return nil
}

func (h *storeHandler) closest(target, requester types.NodeID) []types.DhtNode {
	nodes := h.nodes.ClosestNodes(target, closerNodesLimit, nodemgr.Exclude(requester, h.self))
	out := make([]types.DhtNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, *n)
	}
	return out
}

var _ messaging.RequestHandler = (*storeHandler)(nil)
