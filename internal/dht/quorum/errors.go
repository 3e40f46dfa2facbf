package quorum

import "errors"

// 预定义错误
var (
	// ErrInvalidQuorum 法定人数不满足 1 ≤ r,w ≤ n 且 r + w > n
	ErrInvalidQuorum = errors.New("quorum: invalid quorum config")

	// ErrUnknownShape 未知的法定人数形状
	ErrUnknownShape = errors.New("quorum: unknown shape")

	// ErrDuplicateMember 成员已存在
	ErrDuplicateMember = errors.New("quorum: duplicate member")

	// ErrNotMember 不是成员
	ErrNotMember = errors.New("quorum: not a member")

	// ErrNilPublicKey 成员缺少公钥
	ErrNilPublicKey = errors.New("quorum: member public key is nil")

	// ErrIdentityMismatch 节点记录的公钥与 NodeID 不符
	ErrIdentityMismatch = errors.New("quorum: public key does not match node id")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("quorum: invalid config")
)
