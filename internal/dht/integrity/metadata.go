package integrity

import (
	"bytes"
	"fmt"
	"time"
)

// ErasureParams 纠删码参数
type ErasureParams struct {
	DataShards   int `cbor:"1,keyasint" json:"data_shards"`
	ParityShards int `cbor:"2,keyasint" json:"parity_shards"`
	TotalShards  int `cbor:"3,keyasint" json:"total_shards"`
}

// NewErasureParams 创建纠删码参数
func NewErasureParams(data, parity int) (ErasureParams, error) {
	p := ErasureParams{DataShards: data, ParityShards: parity, TotalShards: data + parity}
	return p, p.Validate()
}

// Validate 验证参数
func (p ErasureParams) Validate() error {
	if p.DataShards < 1 || p.ParityShards < 1 || p.TotalShards != p.DataShards+p.ParityShards {
		return fmt.Errorf("%w: erasure params %d+%d", ErrInvalidConfig, p.DataShards, p.ParityShards)
	}
	if p.TotalShards > 256 {
		return fmt.Errorf("%w: at most 256 shards", ErrInvalidConfig)
	}
	return nil
}

// Metadata 内容完整性元数据
//
// 登记时创建，每次校验刷新 LastCheck。纠删码参数登记后固定。
type Metadata struct {
	// ContentID 内容 ID
	ContentID string `cbor:"1,keyasint" json:"content_id"`

	// ContentChecksum 块校验和拼接后的校验和
	ContentChecksum []byte `cbor:"2,keyasint" json:"content_checksum"`

	// BlockChecksums 按顺序的块校验和
	BlockChecksums [][]byte `cbor:"3,keyasint" json:"block_checksums"`

	// BlockSize 块大小（首块长度）
	BlockSize int `cbor:"4,keyasint" json:"block_size"`

	// TotalBlocks 块数量
	TotalBlocks int `cbor:"5,keyasint" json:"total_blocks"`

	// ContentLength 所有块的总字节数
	ContentLength int64 `cbor:"6,keyasint" json:"content_length"`

	// LastCheck 最后校验时间
	LastCheck time.Time `cbor:"7,keyasint" json:"last_check"`

	// Algorithm 校验算法
	Algorithm Algorithm `cbor:"8,keyasint" json:"algorithm"`

	// Erasure 纠删码参数，nil 表示未启用
	Erasure *ErasureParams `cbor:"9,keyasint,omitempty" json:"erasure,omitempty"`
}

// HasErasure 是否登记了纠删码
func (m *Metadata) HasErasure() bool {
	return m.Erasure != nil
}

// Clone 深拷贝
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.ContentChecksum = append([]byte(nil), m.ContentChecksum...)
	c.BlockChecksums = make([][]byte, len(m.BlockChecksums))
	for i, s := range m.BlockChecksums {
		c.BlockChecksums[i] = append([]byte(nil), s...)
	}
	if m.Erasure != nil {
		e := *m.Erasure
		c.Erasure = &e
	}
	return &c
}

// ============================================================================
//                              损坏报告
// ============================================================================

// CorruptionKind 损坏类型
type CorruptionKind uint8

const (
	// ChecksumMismatch 块校验和不一致
	ChecksumMismatch CorruptionKind = iota + 1
	// MissingBlock 块数量不符
	MissingBlock
)

// String 返回类型名称
func (k CorruptionKind) String() string {
	switch k {
	case ChecksumMismatch:
		return "checksum_mismatch"
	case MissingBlock:
		return "missing_block"
	default:
		return "unknown"
	}
}

// CorruptionIssue 单个损坏问题
type CorruptionIssue struct {
	Kind       CorruptionKind
	BlockIndex int
	Expected   []byte
	Actual     []byte
}

// VerifyResult 校验结果
type VerifyResult struct {
	ContentID string
	Issues    []CorruptionIssue
}

// Valid 是否没有任何损坏
func (r VerifyResult) Valid() bool {
	return len(r.Issues) == 0
}

// CorruptedIndices 返回校验和不一致的块索引
func (r VerifyResult) CorruptedIndices() []int {
	var out []int
	for _, is := range r.Issues {
		if is.Kind == ChecksumMismatch {
			out = append(out, is.BlockIndex)
		}
	}
	return out
}

// verifyBlocks 比对块校验和，返回所有问题
//
// 块数量不符时只报告一个 MissingBlock（索引 0），不再逐块比较。
func verifyBlocks(meta *Metadata, blocks [][]byte) []CorruptionIssue {
	if len(blocks) != meta.TotalBlocks {
		return []CorruptionIssue{{
			Kind:       MissingBlock,
			BlockIndex: 0,
			Expected:   countBytes(meta.TotalBlocks),
			Actual:     countBytes(len(blocks)),
		}}
	}

	var issues []CorruptionIssue
	for i, b := range blocks {
		actual := meta.Algorithm.Sum(b)
		if !bytes.Equal(actual, meta.BlockChecksums[i]) {
			issues = append(issues, CorruptionIssue{
				Kind:       ChecksumMismatch,
				BlockIndex: i,
				Expected:   append([]byte(nil), meta.BlockChecksums[i]...),
				Actual:     actual,
			})
		}
	}
	return issues
}

func countBytes(n int) []byte {
	return []byte(fmt.Sprintf("%d blocks", n))
}
