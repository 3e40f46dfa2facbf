package crypto

import (
	"bytes"
	"encoding/binary"
	"time"

	sha256 "github.com/minio/sha256-simd"
)

// signingDomain 签名域分隔前缀
var signingDomain = []byte("dhtstore/signature/v1")

// Signature 带时间戳的签名
//
// 签名覆盖 (Timestamp, Payload)，时间戳被篡改时验证失败。
// PublicKey 为签名者声明的公钥，验证方需与自己登记的公钥比对。
type Signature struct {
	// Type 签名使用的密钥类型
	Type KeyType `cbor:"1,keyasint" json:"type"`

	// PublicKey 签名者公钥（原始字节）
	PublicKey []byte `cbor:"2,keyasint" json:"public_key"`

	// Data 签名数据
	Data []byte `cbor:"3,keyasint" json:"data"`

	// Timestamp 签名时间（Unix 纳秒）
	Timestamp int64 `cbor:"4,keyasint" json:"timestamp"`
}

// Time 返回签名时间
func (s *Signature) Time() time.Time {
	return time.Unix(0, s.Timestamp)
}

// Sign 使用私钥对 payload 签名，签名时间为 at
func Sign(key PrivateKey, payload []byte, at time.Time) (*Signature, error) {
	if key == nil {
		return nil, ErrNilPrivateKey
	}

	pub, err := key.GetPublic().Raw()
	if err != nil {
		return nil, err
	}

	ts := at.UnixNano()
	sig, err := key.Sign(signingDigest(ts, payload))
	if err != nil {
		return nil, err
	}

	return &Signature{
		Type:      key.Type(),
		PublicKey: pub,
		Data:      sig,
		Timestamp: ts,
	}, nil
}

// Verify 使用公钥验证 payload 上的签名
//
// 只检查密码学有效性；公钥归属与时间窗口由调用方判断。
func Verify(key PublicKey, payload []byte, sig *Signature) (bool, error) {
	if key == nil {
		return false, ErrNilPublicKey
	}
	if sig == nil {
		return false, ErrNilSignature
	}
	if key.Type() != sig.Type {
		return false, ErrSignatureTypeMismatch
	}
	return key.Verify(signingDigest(sig.Timestamp, payload), sig.Data)
}

// EmbeddedKeyMatches 报告签名内嵌的公钥是否与 key 一致
func EmbeddedKeyMatches(key PublicKey, sig *Signature) bool {
	if key == nil || sig == nil {
		return false
	}
	raw, err := key.Raw()
	if err != nil {
		return false
	}
	return key.Type() == sig.Type && bytes.Equal(raw, sig.PublicKey)
}

// signingDigest 计算签名摘要：SHA256(domain || ts || payload)
func signingDigest(ts int64, payload []byte) []byte {
	h := sha256.New()
	h.Write(signingDomain)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	h.Write(buf[:])
	h.Write(payload)
	return h.Sum(nil)
}
