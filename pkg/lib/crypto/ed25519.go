package crypto

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"
	"io"
)

// Ed25519PublicKeySize 节点记录中原始公钥的长度
const Ed25519PublicKeySize = ed25519.PublicKeySize

// Ed25519PublicKey 节点身份公钥
//
// 节点记录与签名中只携带原始 32 字节公钥，NodeID 由其派生。
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

// Ed25519PrivateKey 节点身份私钥，只在本节点内存中存在
type Ed25519PrivateKey struct {
	k ed25519.PrivateKey
}

// GenerateEd25519Key 生成节点身份密钥对
func GenerateEd25519Key(src io.Reader) (PrivateKey, PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(src)
	if err != nil {
		return nil, nil, err
	}
	return &Ed25519PrivateKey{k: priv}, &Ed25519PublicKey{k: pub}, nil
}

// UnmarshalEd25519PublicKey 解码节点记录携带的原始公钥
func UnmarshalEd25519PublicKey(data []byte) (PublicKey, error) {
	if len(data) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeySize, Ed25519PublicKeySize, len(data))
	}
	return &Ed25519PublicKey{k: append(ed25519.PublicKey(nil), data...)}, nil
}

func (k *Ed25519PublicKey) Raw() ([]byte, error) {
	return append([]byte(nil), k.k...), nil
}

func (k *Ed25519PublicKey) Type() KeyType {
	return KeyTypeEd25519
}

// Equals 常量时间比较
func (k *Ed25519PublicKey) Equals(other Key) bool {
	if ek, ok := other.(*Ed25519PublicKey); ok {
		return subtle.ConstantTimeCompare(k.k, ek.k) == 1
	}
	return KeyEqual(k, other)
}

// Verify 签名长度不对时返回 false 而不是错误
func (k *Ed25519PublicKey) Verify(data, sig []byte) (bool, error) {
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(k.k, data, sig), nil
}

func (k *Ed25519PrivateKey) Raw() ([]byte, error) {
	return append([]byte(nil), k.k...), nil
}

func (k *Ed25519PrivateKey) Type() KeyType {
	return KeyTypeEd25519
}

func (k *Ed25519PrivateKey) Equals(other Key) bool {
	if ek, ok := other.(*Ed25519PrivateKey); ok {
		return subtle.ConstantTimeCompare(k.k, ek.k) == 1
	}
	return KeyEqual(k, other)
}

func (k *Ed25519PrivateKey) GetPublic() PublicKey {
	return &Ed25519PublicKey{k: k.k.Public().(ed25519.PublicKey)}
}

func (k *Ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.k, data), nil
}
