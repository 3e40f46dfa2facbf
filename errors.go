package dhtstore

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("dhtstore: node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("dhtstore: node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("dhtstore: node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 选项与数据错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNilOption 选项参数为空
	ErrNilOption = errors.New("dhtstore: nil option value")

	// ErrEmptyKey 键为空
	ErrEmptyKey = errors.New("dhtstore: empty key")

	// ErrQuorumNotMet 强一致写入未达到写法定人数
	ErrQuorumNotMet = errors.New("dhtstore: write quorum not met")
)
