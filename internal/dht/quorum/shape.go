package quorum

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-dhtstore/config"
)

// Thresholds 法定人数 N/R/W
//
// 不变式：1 ≤ R ≤ N，1 ≤ W ≤ N，R + W > N。N 始终等于当前成员数。
type Thresholds struct {
	// N 成员总数
	N int

	// R 读法定人数
	R int

	// W 写法定人数
	W int
}

// NewThresholds 创建并验证法定人数
func NewThresholds(n, r, w int) (Thresholds, error) {
	t := Thresholds{N: n, R: r, W: w}
	return t, t.Validate()
}

// Validate 验证不变式
func (t Thresholds) Validate() error {
	if t.N < 1 {
		return fmt.Errorf("%w: n=%d", ErrInvalidQuorum, t.N)
	}
	if t.R < 1 || t.R > t.N || t.W < 1 || t.W > t.N {
		return fmt.Errorf("%w: r=%d w=%d out of [1, %d]", ErrInvalidQuorum, t.R, t.W, t.N)
	}
	if t.R+t.W <= t.N {
		return fmt.Errorf("%w: r+w=%d must exceed n=%d", ErrInvalidQuorum, t.R+t.W, t.N)
	}
	return nil
}

// String 返回 n/r/w 表示
func (t Thresholds) String() string {
	return fmt.Sprintf("n=%d r=%d w=%d", t.N, t.R, t.W)
}

// Majority 多数派：r = w = ⌊n/2⌋ + 1
func Majority(n int) (Thresholds, error) {
	q := n/2 + 1
	return NewThresholds(n, q, q)
}

// ReadHeavy 读优化：r = max(1, ⌊n/3⌋)，w = n − r + 1
func ReadHeavy(n int) (Thresholds, error) {
	r := max(1, n/3)
	return NewThresholds(n, r, n-r+1)
}

// WriteHeavy 写优化：w = max(1, ⌊n/3⌋)，r = n − w + 1
func WriteHeavy(n int) (Thresholds, error) {
	w := max(1, n/3)
	return NewThresholds(n, n-w+1, w)
}

// Shape 法定人数形状
//
// 成员变化时，命名形状按新的 n 重新计算 r/w；Custom 保持 r/w 不变并重新验证。
type Shape uint8

const (
	// ShapeMajority 多数派
	ShapeMajority Shape = iota
	// ShapeReadHeavy 读优化
	ShapeReadHeavy
	// ShapeWriteHeavy 写优化
	ShapeWriteHeavy
	// ShapeCustom 固定 r/w
	ShapeCustom
)

// String 返回形状名称
func (s Shape) String() string {
	switch s {
	case ShapeMajority:
		return config.QuorumShapeMajority
	case ShapeReadHeavy:
		return config.QuorumShapeReadHeavy
	case ShapeWriteHeavy:
		return config.QuorumShapeWriteHeavy
	case ShapeCustom:
		return config.QuorumShapeCustom
	default:
		return "unknown"
	}
}

// ParseShape 解析形状名称
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(s) {
	case config.QuorumShapeMajority, "":
		return ShapeMajority, nil
	case config.QuorumShapeReadHeavy:
		return ShapeReadHeavy, nil
	case config.QuorumShapeWriteHeavy:
		return ShapeWriteHeavy, nil
	case config.QuorumShapeCustom:
		return ShapeCustom, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownShape, s)
	}
}

// thresholdsFor 计算形状在 n 个成员下的法定人数
func (s Shape) thresholdsFor(n int, current Thresholds) (Thresholds, error) {
	switch s {
	case ShapeMajority:
		return Majority(n)
	case ShapeReadHeavy:
		return ReadHeavy(n)
	case ShapeWriteHeavy:
		return WriteHeavy(n)
	case ShapeCustom:
		return NewThresholds(n, current.R, current.W)
	default:
		return Thresholds{}, ErrUnknownShape
	}
}

// ============================================================================
//                              检查结果
// ============================================================================

// Result 法定人数检查结果，总是带有要求数和实际数
type Result struct {
	// Met 是否达到法定人数
	Met bool

	// Required 要求的票数
	Required int

	// Actual 有效票数
	Actual int
}

func newResult(required, actual int) Result {
	return Result{Met: actual >= required, Required: required, Actual: actual}
}

// String 返回 Met{required, actual} 或 NotMet{required, actual}
func (r Result) String() string {
	name := "NotMet"
	if r.Met {
		name = "Met"
	}
	return fmt.Sprintf("%s{required: %d, actual: %d}", name, r.Required, r.Actual)
}
