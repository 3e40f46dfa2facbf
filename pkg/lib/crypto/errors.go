package crypto

import "errors"

// ============================================================================
//                              错误定义
// ============================================================================

// 密钥相关错误
var (
	// ErrBadKeyType 不支持的密钥类型
	ErrBadKeyType = errors.New("crypto: invalid or unsupported key type")

	// ErrNilPrivateKey 私钥为空
	ErrNilPrivateKey = errors.New("crypto: nil private key")

	// ErrNilPublicKey 公钥为空
	ErrNilPublicKey = errors.New("crypto: nil public key")

	// ErrInvalidKeySize 密钥大小无效
	ErrInvalidKeySize = errors.New("crypto: invalid key size")
)

// 签名相关错误
var (
	// ErrNilSignature 签名为空
	ErrNilSignature = errors.New("crypto: nil signature")

	// ErrInvalidSignature 签名无效
	ErrInvalidSignature = errors.New("crypto: invalid signature")

	// ErrSignatureTypeMismatch 签名类型不匹配
	ErrSignatureTypeMismatch = errors.New("crypto: signature type mismatch")
)
