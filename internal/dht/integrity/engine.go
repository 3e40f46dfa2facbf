// Package integrity 实现内容完整性校验与自愈
//
// 登记内容时逐块计算校验和，并对块校验和的拼接计算内容校验和。
// 校验时报告所有损坏的块；登记了纠删码参数的内容可以用校验块重建损坏位置。
package integrity

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dhtstore/internal/dht/metrics"
	"github.com/dep2p/go-dhtstore/pkg/lib/log"
)

var logger = log.Logger("dht/integrity")

// Persister 元数据持久化接口
//
// 由 store.Collection[Metadata] 实现。
type Persister interface {
	Put(key []byte, m *Metadata) error
	Delete(key []byte) error
	ForEach(fn func(key []byte, m *Metadata) bool) error
}

// HealStatus 修复结果类型
type HealStatus uint8

const (
	// NoHealingNeeded 内容完好
	NoHealingNeeded HealStatus = iota
	// Healed 已重建损坏的块
	Healed
)

// String 返回状态名称
func (s HealStatus) String() string {
	if s == Healed {
		return "healed"
	}
	return "no_healing_needed"
}

// HealResult 修复结果
type HealResult struct {
	Status HealStatus

	// HealedIndices 被重建的块索引
	HealedIndices []int

	// Blocks 修复后的完整数据块（NoHealingNeeded 时为输入块）
	Blocks [][]byte
}

// Stats 完整性统计
type Stats struct {
	TotalContent  int
	ErasureCoded  int
	TotalBlocks   int
	NeedingCheck  int
	CheckInterval time.Duration
}

// Engine 完整性引擎
type Engine struct {
	cfg       *Config
	codec     ErasureCodec
	clock     clock.Clock
	persister Persister
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	contents map[string]*Metadata
}

// New 创建完整性引擎
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		codec:    NewReedSolomonCodec(),
		clock:    clock.New(),
		contents: make(map[string]*Metadata),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Load 从持久化后端恢复元数据
func (e *Engine) Load() error {
	if e.persister == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.persister.ForEach(func(_ []byte, m *Metadata) bool {
		if m.ContentID != "" && len(m.BlockChecksums) == m.TotalBlocks {
			e.contents[m.ContentID] = m
		}
		return true
	})
	if err != nil {
		return err
	}
	logger.Info("已恢复完整性元数据", "count", len(e.contents))
	return nil
}

// Config 返回引擎配置
func (e *Engine) Config() *Config {
	return e.cfg
}

// ============================================================================
//                              登记
// ============================================================================

// RegisterContent 登记内容
//
// 已登记纠删码参数的内容不能改为普通登记。
func (e *Engine) RegisterContent(id string, blocks [][]byte, algo Algorithm) (*Metadata, error) {
	return e.register(id, blocks, algo, nil)
}

// RegisterContentWithErasure 登记内容并记录纠删码参数
//
// 数据块数量必须等于 DataShards 且各块等长。
func (e *Engine) RegisterContentWithErasure(id string, blocks [][]byte, algo Algorithm, params ErasureParams) (*Metadata, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(blocks) != params.DataShards {
		return nil, ErrShardMismatch
	}
	for _, b := range blocks {
		if len(b) != len(blocks[0]) {
			return nil, ErrShardMismatch
		}
	}
	return e.register(id, blocks, algo, &params)
}

func (e *Engine) register(id string, blocks [][]byte, algo Algorithm, params *ErasureParams) (*Metadata, error) {
	if id == "" {
		return nil, ErrEmptyContentID
	}
	if len(blocks) == 0 {
		return nil, ErrNoBlocks
	}
	if algo > XXHash64 {
		return nil, ErrUnknownAlgorithm
	}

	sums := algo.blockChecksums(blocks)
	var length int64
	for _, b := range blocks {
		length += int64(len(b))
	}
	meta := &Metadata{
		ContentID:       id,
		ContentChecksum: algo.contentChecksum(sums),
		BlockChecksums:  sums,
		BlockSize:       len(blocks[0]),
		TotalBlocks:     len(blocks),
		ContentLength:   length,
		LastCheck:       e.clock.Now(),
		Algorithm:       algo,
		Erasure:         params,
	}

	e.mu.Lock()
	if prev, ok := e.contents[id]; ok && prev.Erasure != nil {
		if params == nil || *params != *prev.Erasure {
			e.mu.Unlock()
			return nil, ErrErasureParamsFixed
		}
	}
	e.contents[id] = meta
	snapshot := meta.Clone()
	e.mu.Unlock()

	e.persist(snapshot)
	logger.Debug("内容已登记", "id", id, "blocks", meta.TotalBlocks, "algorithm", algo, "erasure", params != nil)
	return snapshot, nil
}

// Unregister 删除内容登记
func (e *Engine) Unregister(id string) bool {
	e.mu.Lock()
	_, ok := e.contents[id]
	delete(e.contents, id)
	e.mu.Unlock()

	if ok && e.persister != nil {
		if err := e.persister.Delete([]byte(id)); err != nil {
			logger.Warn("删除完整性元数据失败", "id", id, "error", err)
		}
	}
	return ok
}

// Metadata 返回内容元数据快照
func (e *Engine) Metadata(id string) (*Metadata, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.contents[id]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// ============================================================================
//                              校验与修复
// ============================================================================

// VerifyContent 校验内容，未登记时返回 false
//
// 块数量不符报告为索引 0 的 MissingBlock；否则每个校验和不一致的块各报告一次。
// 每次校验刷新 LastCheck。
func (e *Engine) VerifyContent(id string, blocks [][]byte) (VerifyResult, bool) {
	e.mu.Lock()
	meta, ok := e.contents[id]
	if !ok {
		e.mu.Unlock()
		return VerifyResult{ContentID: id}, false
	}
	issues := verifyBlocks(meta, blocks)
	meta.LastCheck = e.clock.Now()
	snapshot := meta.Clone()
	e.mu.Unlock()

	e.persist(snapshot)

	result := VerifyResult{ContentID: id, Issues: issues}
	if !result.Valid() {
		e.metrics.CorruptionDetected(len(issues))
		logger.Warn("检测到内容损坏", "id", id, "issues", len(issues))
	}
	return result, true
}

// EncodeParity 为已登记纠删码的内容生成校验块
func (e *Engine) EncodeParity(id string, blocks [][]byte) ([][]byte, error) {
	meta, ok := e.Metadata(id)
	if !ok {
		return nil, ErrContentNotFound
	}
	if !meta.HasErasure() {
		return nil, ErrNoErasureCoding
	}
	return e.codec.Encode(*meta.Erasure, blocks)
}

// HealContent 用校验块重建损坏的数据块
//
// 内容未登记纠删码参数时返回 ErrNoErasureCoding。先重新校验，内容完好时
// 返回 NoHealingNeeded；否则只重建损坏（或缺失）的位置，重建结果需通过校验。
func (e *Engine) HealContent(id string, blocks, parity [][]byte) (*HealResult, error) {
	meta, ok := e.Metadata(id)
	if !ok {
		return nil, ErrContentNotFound
	}
	if !meta.HasErasure() {
		return nil, ErrNoErasureCoding
	}

	result, _ := e.VerifyContent(id, blocks)
	if result.Valid() {
		return &HealResult{Status: NoHealingNeeded, Blocks: blocks}, nil
	}

	corrupted := corruptedPositions(meta, blocks)
	healed, err := e.codec.Reconstruct(*meta.Erasure, blocks, parity, corrupted)
	if err != nil {
		logger.Warn("内容修复失败", "id", id, "corrupted", len(corrupted), "error", err)
		return nil, &healError{id: id, err: err}
	}
	if issues := verifyBlocks(meta, healed); len(issues) > 0 {
		logger.Warn("重建的块未通过校验", "id", id, "issues", len(issues))
		return nil, &healError{id: id, err: ErrHealFailed}
	}

	e.metrics.BlocksHealed(len(corrupted))
	logger.Info("内容已修复", "id", id, "blocks", corrupted)
	return &HealResult{Status: Healed, HealedIndices: corrupted, Blocks: healed}, nil
}

// corruptedPositions 返回需要重建的数据块位置：校验和不一致或缺失的块
func corruptedPositions(meta *Metadata, blocks [][]byte) []int {
	var out []int
	for i := 0; i < meta.TotalBlocks; i++ {
		if i >= len(blocks) || blocks[i] == nil {
			out = append(out, i)
			continue
		}
		if !bytes.Equal(meta.Algorithm.Sum(blocks[i]), meta.BlockChecksums[i]) {
			out = append(out, i)
		}
	}
	return out
}

// ============================================================================
//                              过期扫描
// ============================================================================

// ListContentNeedingCheck 返回超过 CheckInterval 未校验的内容，按 ID 排序
func (e *Engine) ListContentNeedingCheck() []string {
	cutoff := e.clock.Now().Add(-e.cfg.CheckInterval)

	e.mu.RLock()
	var ids []string
	for id, m := range e.contents {
		if m.LastCheck.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// GetStats 返回统计信息
func (e *Engine) GetStats() Stats {
	cutoff := e.clock.Now().Add(-e.cfg.CheckInterval)

	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{TotalContent: len(e.contents), CheckInterval: e.cfg.CheckInterval}
	for _, m := range e.contents {
		s.TotalBlocks += m.TotalBlocks
		if m.Erasure != nil {
			s.ErasureCoded++
		}
		if m.LastCheck.Before(cutoff) {
			s.NeedingCheck++
		}
	}
	return s
}

func (e *Engine) persist(m *Metadata) {
	if e.persister == nil {
		return
	}
	if err := e.persister.Put([]byte(m.ContentID), m); err != nil {
		logger.Warn("持久化完整性元数据失败", "id", m.ContentID, "error", err)
	}
}
