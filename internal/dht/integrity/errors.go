package integrity

import "errors"

// 预定义错误
var (
	// ErrNoErasureCoding 内容未登记纠删码参数，无法修复
	ErrNoErasureCoding = errors.New("integrity: content has no erasure coding")

	// ErrContentNotFound 内容未登记
	ErrContentNotFound = errors.New("integrity: content not registered")

	// ErrEmptyContentID 内容 ID 为空
	ErrEmptyContentID = errors.New("integrity: empty content id")

	// ErrNoBlocks 没有数据块
	ErrNoBlocks = errors.New("integrity: no blocks")

	// ErrShardMismatch 数据块数量或大小与纠删码参数不符
	ErrShardMismatch = errors.New("integrity: blocks do not match erasure params")

	// ErrErasureParamsFixed 纠删码参数登记后不可更改
	ErrErasureParamsFixed = errors.New("integrity: erasure params are fixed once set")

	// ErrHealFailed 无法重建损坏的数据块
	ErrHealFailed = errors.New("integrity: healing failed")

	// ErrUnknownAlgorithm 未知校验算法
	ErrUnknownAlgorithm = errors.New("integrity: unknown algorithm")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("integrity: invalid config")
)

// healError 修复失败，可用 errors.Is(err, ErrHealFailed) 判断
type healError struct {
	id  string
	err error
}

func (e *healError) Error() string {
	return "integrity: heal " + e.id + ": " + e.err.Error()
}

func (e *healError) Is(target error) bool {
	return target == ErrHealFailed
}

func (e *healError) Unwrap() error {
	return e.err
}
