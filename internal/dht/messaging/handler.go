package messaging

import (
	"context"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// RequestHandler 请求处理器
//
// 消息层为每个入站请求调用对应方法，用返回值构造响应。
// 这是接入实际存储后端的扩展点。
type RequestHandler interface {
	// HandleFindNode 返回离 target 最近的已知节点
	HandleFindNode(ctx context.Context, from types.NodeID, target types.NodeID) []types.DhtNode

	// HandleFindValue 返回本地值；未找到时可返回更近的节点
	HandleFindValue(ctx context.Context, from types.NodeID, key string) (value []byte, found bool, closer []types.DhtNode)

	// HandleStore 存储键值对，返回 nil 表示确认
	HandleStore(ctx context.Context, from types.NodeID, key string, value []byte) error
}

// CannedHandler 固定应答处理器
//
// 查找节点返回空列表，查找值返回本地未找到，存储直接确认。
type CannedHandler struct{}

var _ RequestHandler = CannedHandler{}

// HandleFindNode 返回空节点列表
func (CannedHandler) HandleFindNode(context.Context, types.NodeID, types.NodeID) []types.DhtNode {
	return nil
}

// HandleFindValue 返回本地未找到
func (CannedHandler) HandleFindValue(context.Context, types.NodeID, string) ([]byte, bool, []types.DhtNode) {
	return nil, false, nil
}

// HandleStore 直接确认
func (CannedHandler) HandleStore(context.Context, types.NodeID, string, []byte) error {
	return nil
}
