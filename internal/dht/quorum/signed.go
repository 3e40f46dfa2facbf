package quorum

import (
	"time"

	"github.com/dep2p/go-dhtstore/pkg/lib/crypto"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// SignedResponse 带签名的投票
//
// Payload 是法定人数所认证的值或确认，签名覆盖 Payload 与签名时间戳。
type SignedResponse struct {
	// NodeID 投票节点
	NodeID types.NodeID `cbor:"1,keyasint" json:"node_id"`

	// Payload 被认证的内容
	Payload []byte `cbor:"2,keyasint" json:"payload"`

	// Signature 签名
	Signature *crypto.Signature `cbor:"3,keyasint" json:"signature"`
}

// NewSignedResponse 使用私钥为 payload 生成投票
func NewSignedResponse(priv crypto.PrivateKey, nodeID types.NodeID, payload []byte, now time.Time) (*SignedResponse, error) {
	sig, err := crypto.Sign(priv, payload, now)
	if err != nil {
		return nil, err
	}
	return &SignedResponse{
		NodeID:    nodeID,
		Payload:   append([]byte(nil), payload...),
		Signature: sig,
	}, nil
}

// RejectReason 投票被排除的原因
type RejectReason uint8

const (
	// RejectNotMember 签名者不是当前成员
	RejectNotMember RejectReason = iota + 1
	// RejectFutureTimestamp 签名时间超出允许的时钟偏差
	RejectFutureTimestamp
	// RejectKeyMismatch 签名内嵌公钥与登记公钥不一致
	RejectKeyMismatch
	// RejectBadSignature 签名验证失败
	RejectBadSignature
	// RejectMissingSignature 缺少签名
	RejectMissingSignature
	// RejectDuplicate 同一签名者重复投票
	RejectDuplicate
)

// String 返回原因名称
func (r RejectReason) String() string {
	switch r {
	case RejectNotMember:
		return "not_member"
	case RejectFutureTimestamp:
		return "future_timestamp"
	case RejectKeyMismatch:
		return "key_mismatch"
	case RejectBadSignature:
		return "bad_signature"
	case RejectMissingSignature:
		return "missing_signature"
	case RejectDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Rejection 被排除的投票
type Rejection struct {
	NodeID types.NodeID
	Reason RejectReason
}

// SignedResult 签名法定人数检查结果
type SignedResult struct {
	Result

	// Rejections 未计入的投票及原因
	Rejections []Rejection
}
