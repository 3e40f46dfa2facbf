package crypto

import (
	"crypto/subtle"
)

// ============================================================================
//                              密钥类型定义
// ============================================================================

// KeyType 密钥类型
type KeyType int

const (
	// KeyTypeUnspecified 未指定密钥类型
	KeyTypeUnspecified KeyType = 0
	// KeyTypeEd25519 Ed25519 密钥
	KeyTypeEd25519 KeyType = 2
)

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeUnspecified:
		return "Unspecified"
	case KeyTypeEd25519:
		return "Ed25519"
	default:
		return "Unknown"
	}
}

// ============================================================================
//                              密钥接口定义
// ============================================================================

// Key 基础密钥接口
type Key interface {
	// Raw 返回原始密钥字节
	Raw() ([]byte, error)

	// Type 返回密钥类型
	Type() KeyType

	// Equals 比较两个密钥是否相等
	Equals(Key) bool
}

// PublicKey 公钥接口
type PublicKey interface {
	Key

	// Verify 验证 sig 是否为 data 的有效签名
	Verify(data, sig []byte) (bool, error)
}

// PrivateKey 私钥接口
type PrivateKey interface {
	Key

	// Sign 签名数据
	Sign(data []byte) ([]byte, error)

	// GetPublic 返回对应的公钥
	GetPublic() PublicKey
}

// KeyEqual 通过原始字节比较两个密钥
func KeyEqual(a, b Key) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	ra, err := a.Raw()
	if err != nil {
		return false
	}
	rb, err := b.Raw()
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(ra, rb) == 1
}

// UnmarshalPublicKey 按类型反序列化公钥
func UnmarshalPublicKey(kt KeyType, data []byte) (PublicKey, error) {
	switch kt {
	case KeyTypeEd25519:
		return UnmarshalEd25519PublicKey(data)
	default:
		return nil, ErrBadKeyType
	}
}
