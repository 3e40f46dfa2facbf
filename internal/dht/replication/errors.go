package replication

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrInsufficientTargets 候选节点少于副本因子
	ErrInsufficientTargets = errors.New("replication: insufficient target nodes")

	// ErrUnderReplicated 成功副本数低于修复阈值
	ErrUnderReplicated = errors.New("replication: replication under target")

	// ErrNoRepairCandidates 没有可用于修复的节点
	ErrNoRepairCandidates = errors.New("replication: no repair candidates")

	// ErrNoSourceData 无法获取修复所需的源数据
	ErrNoSourceData = errors.New("replication: source data unavailable")

	// ErrReputationTooLow 节点信誉低于下限
	ErrReputationTooLow = errors.New("replication: node reputation below floor")

	// ErrRepairAttemptsExhausted 修复次数已达上限
	ErrRepairAttemptsExhausted = errors.New("replication: repair attempts exhausted")

	// ErrEmptyKey 键为空
	ErrEmptyKey = errors.New("replication: empty key")

	// ErrNilNode 节点为空
	ErrNilNode = errors.New("replication: nil node")

	// ErrNoDeliverer 未配置投递器
	ErrNoDeliverer = errors.New("replication: no deliverer")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("replication: invalid config")
)

// ReplicationError 副本操作错误
type ReplicationError struct {
	Op      string // 操作名称
	Key     string // 相关键
	Err     error  // 底层错误
	Message string // 错误消息
}

// Error 实现 error 接口
func (e *ReplicationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("replication %s %q: %s: %v", e.Op, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("replication %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap 实现错误解包
func (e *ReplicationError) Unwrap() error {
	return e.Err
}

func newError(op, key string, err error, format string, args ...interface{}) *ReplicationError {
	return &ReplicationError{Op: op, Key: key, Err: err, Message: fmt.Sprintf(format, args...)}
}
