package messaging

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrTimeout 等待响应超时
	ErrTimeout = errors.New("messaging: response timeout")

	// ErrChannelClosed 响应通道被关闭（消息被丢弃或等待项被清理）
	ErrChannelClosed = errors.New("messaging: response channel closed")

	// ErrNoPendingRequest 响应没有对应的等待方
	ErrNoPendingRequest = errors.New("messaging: no pending request for response")

	// ErrReplay 响应的 nonce 已出现过
	ErrReplay = errors.New("messaging: replayed response")

	// ErrMissingNonce 响应缺少 nonce
	ErrMissingNonce = errors.New("messaging: response without nonce")

	// ErrUnexpectedResponder 响应不是来自请求的目标节点
	ErrUnexpectedResponder = errors.New("messaging: response from unexpected node")

	// ErrUnknownKind 未知消息类型
	ErrUnknownKind = errors.New("messaging: unknown message kind")

	// ErrNilMessage 消息为空
	ErrNilMessage = errors.New("messaging: nil message")

	// ErrUnexpectedResponse 响应类型与请求不匹配
	ErrUnexpectedResponse = errors.New("messaging: unexpected response type")

	// ErrStoreRejected 对端拒绝存储
	ErrStoreRejected = errors.New("messaging: store rejected by peer")

	// ErrNoTransport 未配置传输层
	ErrNoTransport = errors.New("messaging: no transport")

	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("messaging: already started")

	// ErrNotStarted 未启动
	ErrNotStarted = errors.New("messaging: not started")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("messaging: invalid config")
)

// MessagingError 消息层错误
type MessagingError struct {
	Op      string // 操作名称
	Err     error  // 底层错误
	Message string // 错误消息
}

// Error 实现 error 接口
func (e *MessagingError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("messaging %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("messaging %s: %v", e.Op, e.Err)
}

// Unwrap 实现错误解包
func (e *MessagingError) Unwrap() error {
	return e.Err
}

// NewMessagingError 创建消息层错误
func NewMessagingError(op string, err error, message string) *MessagingError {
	return &MessagingError{Op: op, Err: err, Message: message}
}
