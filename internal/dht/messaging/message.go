package messaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ============================================================================
//                              消息类型
// ============================================================================

// Kind 消息类型
type Kind uint8

const (
	// KindPing 存活探测
	KindPing Kind = iota + 1
	// KindPong 存活探测响应
	KindPong
	// KindFindNode 查找节点
	KindFindNode
	// KindFindNodeResponse 查找节点响应
	KindFindNodeResponse
	// KindFindValue 查找值
	KindFindValue
	// KindFindValueResponse 查找值响应
	KindFindValueResponse
	// KindStore 存储
	KindStore
	// KindStoreResponse 存储响应
	KindStoreResponse
)

// String 返回类型名称
func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindFindNode:
		return "find_node"
	case KindFindNodeResponse:
		return "find_node_response"
	case KindFindValue:
		return "find_value"
	case KindFindValueResponse:
		return "find_value_response"
	case KindStore:
		return "store"
	case KindStoreResponse:
		return "store_response"
	default:
		return "unknown"
	}
}

// IsResponse 是否为响应类型
func (k Kind) IsResponse() bool {
	switch k {
	case KindPong, KindFindNodeResponse, KindFindValueResponse, KindStoreResponse:
		return true
	default:
		return false
	}
}

// Header 所有消息共有的头部
type Header struct {
	// ID 消息 ID
	ID uuid.UUID `cbor:"1,keyasint"`

	// Sender 发送方节点 ID
	Sender types.NodeID `cbor:"2,keyasint"`

	// Timestamp 发送时间（Unix 纳秒）
	Timestamp int64 `cbor:"3,keyasint"`
}

// Reply 响应的关联与防重放字段
type Reply struct {
	// RequestID 对应请求的消息 ID
	RequestID uuid.UUID `cbor:"1,keyasint"`

	// Nonce 新鲜度随机数
	Nonce uuid.UUID `cbor:"2,keyasint"`

	// Seq 发送方单调递增序号
	Seq uint64 `cbor:"3,keyasint"`
}

// Message 协议消息
//
// 消息类型是封闭集合，只有本包定义的类型实现此接口。
type Message interface {
	Kind() Kind
	header() *Header
}

// Response 响应消息
type Response interface {
	Message
	reply() *Reply
}

// MessageID 返回消息 ID
func MessageID(m Message) uuid.UUID {
	return m.header().ID
}

// SenderOf 返回消息的发送方
func SenderOf(m Message) types.NodeID {
	return m.header().Sender
}

// SentAt 返回消息的发送时间
func SentAt(m Message) time.Time {
	return time.Unix(0, m.header().Timestamp)
}

// ReplyOf 返回响应的关联字段，请求类型返回 nil
func ReplyOf(m Message) *Reply {
	if r, ok := m.(Response); ok {
		return r.reply()
	}
	return nil
}

// ============================================================================
//                              请求
// ============================================================================

// Ping 存活探测
type Ping struct {
	Header Header `cbor:"1,keyasint"`
}

// FindNode 查找离 Target 最近的节点
type FindNode struct {
	Header Header       `cbor:"1,keyasint"`
	Target types.NodeID `cbor:"2,keyasint"`
}

// FindValue 查找键对应的值
type FindValue struct {
	Header Header `cbor:"1,keyasint"`
	Key    string `cbor:"2,keyasint"`
}

// Store 请求对端存储键值对
type Store struct {
	Header Header `cbor:"1,keyasint"`
	Key    string `cbor:"2,keyasint"`
	Value  []byte `cbor:"3,keyasint"`
}

// ============================================================================
//                              响应
// ============================================================================

// Pong 存活探测响应
type Pong struct {
	Header Header `cbor:"1,keyasint"`
	Reply  Reply  `cbor:"2,keyasint"`
}

// FindNodeResponse 查找节点响应
type FindNodeResponse struct {
	Header Header          `cbor:"1,keyasint"`
	Reply  Reply           `cbor:"2,keyasint"`
	Nodes  []types.DhtNode `cbor:"3,keyasint"`
}

// FindValueResponse 查找值响应
//
// Found 为 false 时 Nodes 可能包含更近的节点。
type FindValueResponse struct {
	Header Header          `cbor:"1,keyasint"`
	Reply  Reply           `cbor:"2,keyasint"`
	Key    string          `cbor:"3,keyasint"`
	Found  bool            `cbor:"4,keyasint"`
	Value  []byte          `cbor:"5,keyasint,omitempty"`
	Nodes  []types.DhtNode `cbor:"6,keyasint,omitempty"`
}

// StoreResponse 存储响应
type StoreResponse struct {
	Header Header `cbor:"1,keyasint"`
	Reply  Reply  `cbor:"2,keyasint"`
	Key    string `cbor:"3,keyasint"`
	Stored bool   `cbor:"4,keyasint"`
	Error  string `cbor:"5,keyasint,omitempty"`
}

func (*Ping) Kind() Kind              { return KindPing }
func (*Pong) Kind() Kind              { return KindPong }
func (*FindNode) Kind() Kind          { return KindFindNode }
func (*FindNodeResponse) Kind() Kind  { return KindFindNodeResponse }
func (*FindValue) Kind() Kind         { return KindFindValue }
func (*FindValueResponse) Kind() Kind { return KindFindValueResponse }
func (*Store) Kind() Kind             { return KindStore }
func (*StoreResponse) Kind() Kind     { return KindStoreResponse }

func (m *Ping) header() *Header              { return &m.Header }
func (m *Pong) header() *Header              { return &m.Header }
func (m *FindNode) header() *Header          { return &m.Header }
func (m *FindNodeResponse) header() *Header  { return &m.Header }
func (m *FindValue) header() *Header         { return &m.Header }
func (m *FindValueResponse) header() *Header { return &m.Header }
func (m *Store) header() *Header             { return &m.Header }
func (m *StoreResponse) header() *Header     { return &m.Header }

func (m *Pong) reply() *Reply              { return &m.Reply }
func (m *FindNodeResponse) reply() *Reply  { return &m.Reply }
func (m *FindValueResponse) reply() *Reply { return &m.Reply }
func (m *StoreResponse) reply() *Reply     { return &m.Reply }
