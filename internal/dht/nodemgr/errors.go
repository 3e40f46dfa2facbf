package nodemgr

import "errors"

// 预定义错误
var (
	// ErrNilNode 节点记录为空
	ErrNilNode = errors.New("nodemgr: nil node")

	// ErrEmptyNodeID 节点 ID 为空
	ErrEmptyNodeID = errors.New("nodemgr: empty node ID")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("nodemgr: invalid config")
)
