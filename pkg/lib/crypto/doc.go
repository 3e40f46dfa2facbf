// Package crypto 提供身份相关的密码学原语
//
// 本包是存储核心对外部身份提供者的最小依赖面：
//
//   - Ed25519 密钥对
//   - 带时间戳的签名（签名覆盖时间戳与 payload）
//   - 从公钥派生 NodeID
//
// # 快速开始
//
//	priv, pub, err := crypto.GenerateEd25519Key(rand.Reader)
//	sig, err := crypto.Sign(priv, payload, time.Now())
//	ok, err := crypto.Verify(pub, payload, sig)
//	id, err := crypto.NodeIDFromPublicKey(pub)
package crypto
