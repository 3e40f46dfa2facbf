package integrity

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
)

// ErasureCodec 纠删码编解码接口
type ErasureCodec interface {
	// Encode 由数据块生成校验块
	Encode(params ErasureParams, data [][]byte) ([][]byte, error)

	// Reconstruct 利用校验块重建 corrupted 位置的数据块，返回完整数据块
	Reconstruct(params ErasureParams, data, parity [][]byte, corrupted []int) ([][]byte, error)
}

// ReedSolomonCodec 基于 Reed-Solomon 的纠删码实现
//
// 按参数缓存编码器，可并发使用。
type ReedSolomonCodec struct {
	encoders sync.Map // ErasureParams -> reedsolomon.Encoder
}

// NewReedSolomonCodec 创建 Reed-Solomon 编解码器
func NewReedSolomonCodec() *ReedSolomonCodec {
	return &ReedSolomonCodec{}
}

func (c *ReedSolomonCodec) encoder(params ErasureParams) (reedsolomon.Encoder, error) {
	if enc, ok := c.encoders.Load(params); ok {
		return enc.(reedsolomon.Encoder), nil
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	enc, err := reedsolomon.New(params.DataShards, params.ParityShards)
	if err != nil {
		return nil, err
	}
	actual, _ := c.encoders.LoadOrStore(params, enc)
	return actual.(reedsolomon.Encoder), nil
}

// Split 将数据切成 DataShards 个等长数据块（末尾补零）
func (c *ReedSolomonCodec) Split(params ErasureParams, data []byte) ([][]byte, error) {
	enc, err := c.encoder(params)
	if err != nil {
		return nil, err
	}
	shards, err := enc.Split(data)
	if err != nil {
		return nil, err
	}
	return shards[:params.DataShards], nil
}

// Encode 实现 ErasureCodec
func (c *ReedSolomonCodec) Encode(params ErasureParams, data [][]byte) ([][]byte, error) {
	enc, err := c.encoder(params)
	if err != nil {
		return nil, err
	}
	if len(data) != params.DataShards {
		return nil, fmt.Errorf("%w: %d data blocks, want %d", ErrShardMismatch, len(data), params.DataShards)
	}

	size := len(data[0])
	shards := make([][]byte, params.TotalShards)
	copy(shards, data)
	for i := params.DataShards; i < params.TotalShards; i++ {
		shards[i] = make([]byte, size)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards[params.DataShards:], nil
}

// Reconstruct 实现 ErasureCodec
func (c *ReedSolomonCodec) Reconstruct(params ErasureParams, data, parity [][]byte, corrupted []int) ([][]byte, error) {
	enc, err := c.encoder(params)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, params.TotalShards)
	for i := 0; i < params.DataShards && i < len(data); i++ {
		shards[i] = data[i]
	}
	for _, idx := range corrupted {
		if idx >= 0 && idx < params.DataShards {
			shards[idx] = nil
		}
	}
	for i := 0; i < params.ParityShards && i < len(parity); i++ {
		shards[params.DataShards+i] = parity[i]
	}

	if err := enc.ReconstructData(shards); err != nil {
		return nil, err
	}
	return shards[:params.DataShards], nil
}
