package types

import (
	"bytes"
	"errors"
	"math/bits"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              NodeID - 节点标识
// ============================================================================

// NodeIDLen NodeID 字节长度
const NodeIDLen = 32

// NodeIDBits NodeID 位数
const NodeIDBits = NodeIDLen * 8

// NodeID 节点唯一标识符
// 由公钥派生（公钥的 SHA256 哈希），创建后不可变
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前缀（日志简短标识）
type NodeID [NodeIDLen]byte

// EmptyNodeID 空节点ID
var EmptyNodeID NodeID

// ErrInvalidNodeID 无效的节点ID错误
var ErrInvalidNodeID = errors.New("invalid node ID: must be 32 bytes Base58")

// String 返回 NodeID 的 Base58 字符串表示
func (id NodeID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回 NodeID 的短字符串表示
//
// 格式：Base58 前 8 个字符，用于日志中的简短标识。
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 NodeID 的字节切片
func (id NodeID) Bytes() []byte {
	return id[:]
}

// Equal 比较两个 NodeID 是否相等
func (id NodeID) Equal(other NodeID) bool {
	return id == other
}

// IsEmpty 检查 NodeID 是否为空
func (id NodeID) IsEmpty() bool {
	return id == EmptyNodeID
}

// Compare 按字节序比较两个 NodeID
//
// 返回 -1、0、1，定义 NodeID 上的全序。
func (id NodeID) Compare(other NodeID) int {
	return bytes.Compare(id[:], other[:])
}

// Less 报告 id 是否排在 other 之前
func (id NodeID) Less(other NodeID) bool {
	return id.Compare(other) < 0
}

// NodeIDFromBytes 从字节切片创建 NodeID
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != NodeIDLen {
		return EmptyNodeID, ErrInvalidNodeID
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// ParseNodeID 从 Base58 字符串解析 NodeID
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return EmptyNodeID, ErrInvalidNodeID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyNodeID, ErrInvalidNodeID
	}
	return NodeIDFromBytes(b)
}

// ============================================================================
//                              Kademlia 距离
// ============================================================================

// Distance 两个 NodeID 之间的 XOR 距离（大端序）
type Distance [NodeIDLen]byte

// XOR 计算两个 NodeID 的 XOR 距离
func (id NodeID) XOR(other NodeID) Distance {
	var d Distance
	for i := 0; i < NodeIDLen; i++ {
		d[i] = id[i] ^ other[i]
	}
	return d
}

// Compare 比较两个距离
func (d Distance) Compare(other Distance) int {
	return bytes.Compare(d[:], other[:])
}

// IsZero 距离是否为零（两个 ID 相同）
func (d Distance) IsZero() bool {
	return d == Distance{}
}

// CommonPrefixLen 计算两个 NodeID 的共同前缀长度（按位计数）
func CommonPrefixLen(a, b NodeID) int {
	d := a.XOR(b)
	for i, v := range d {
		if v != 0 {
			return i*8 + bits.LeadingZeros8(v)
		}
	}
	return NodeIDBits
}

// Closeness 返回最高不同位的索引（0-255，255 为最高位）
//
// 即 Kademlia 桶序号：值越小越接近。两个 ID 相同时返回 -1。
func Closeness(a, b NodeID) int {
	cpl := CommonPrefixLen(a, b)
	if cpl == NodeIDBits {
		return -1
	}
	return NodeIDBits - 1 - cpl
}

// CompareDistance 比较 a 和 b 到 target 的距离
// 返回：
//
//	-1 如果 dist(a, target) < dist(b, target)
//	 0 如果 dist(a, target) == dist(b, target)
//	 1 如果 dist(a, target) > dist(b, target)
func CompareDistance(a, b, target NodeID) int {
	return a.XOR(target).Compare(b.XOR(target))
}
