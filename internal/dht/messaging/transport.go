package messaging

import (
	"context"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// Transport 传输层接口
//
// 负责将编码后的消息投递到目标节点，帧格式与传输协议由实现决定。
// Send 返回错误表示本次投递失败，消息层会按退避策略重试。
type Transport interface {
	// Send 发送消息到目标节点
	Send(ctx context.Context, target types.NodeID, payload []byte) error

	// SetReceiver 注册入站消息接收方
	SetReceiver(r Receiver)
}

// Receiver 入站消息接收方
type Receiver interface {
	// Receive 处理来自 from 的入站消息
	Receive(ctx context.Context, from types.NodeID, payload []byte)
}
