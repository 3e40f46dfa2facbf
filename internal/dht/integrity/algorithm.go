package integrity

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	sha256 "github.com/minio/sha256-simd"
	"lukechampine.com/blake3"
)

// Algorithm 校验算法
type Algorithm uint8

const (
	// SHA256 SHA-256（默认）
	SHA256 Algorithm = iota
	// Blake3 BLAKE3-256
	Blake3
	// XXHash64 XXH64，非密码学，适合快速块校验
	XXHash64
)

// String 返回算法名称
func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case Blake3:
		return "blake3"
	case XXHash64:
		return "xxhash64"
	default:
		return "unknown"
	}
}

// ParseAlgorithm 解析算法名称，空串返回 SHA256
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "sha256", "":
		return SHA256, nil
	case "blake3":
		return Blake3, nil
	case "xxhash64", "xxhash":
		return XXHash64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// Sum 计算校验和
func (a Algorithm) Sum(data []byte) []byte {
	switch a {
	case Blake3:
		s := blake3.Sum256(data)
		return s[:]
	case XXHash64:
		return binary.BigEndian.AppendUint64(nil, xxhash.Sum64(data))
	default:
		s := sha256.Sum256(data)
		return s[:]
	}
}

// blockChecksums 逐块计算校验和
func (a Algorithm) blockChecksums(blocks [][]byte) [][]byte {
	sums := make([][]byte, len(blocks))
	for i, b := range blocks {
		sums[i] = a.Sum(b)
	}
	return sums
}

// contentChecksum 对块校验和的拼接再求校验和
func (a Algorithm) contentChecksum(blockSums [][]byte) []byte {
	size := 0
	for _, s := range blockSums {
		size += len(s)
	}
	buf := make([]byte, 0, size)
	for _, s := range blockSums {
		buf = append(buf, s...)
	}
	return a.Sum(buf)
}

// SplitBlocks 按 blockSize 切分数据，最后一块可能较短
func SplitBlocks(data []byte, blockSize int) [][]byte {
	if blockSize <= 0 || len(data) == 0 {
		return [][]byte{data}
	}
	blocks := make([][]byte, 0, (len(data)+blockSize-1)/blockSize)
	for off := 0; off < len(data); off += blockSize {
		end := min(off+blockSize, len(data))
		blocks = append(blocks, data[off:end])
	}
	return blocks
}
