package dhtstore

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/dht/integrity"
	"github.com/dep2p/go-dhtstore/internal/dht/store"
)

// parityRecord 纠删码校验块记录
type parityRecord struct {
	// Shards 校验块
	Shards [][]byte `cbor:"1,keyasint"`

	// Length 原始值长度（数据块末尾补零前）
	Length int `cbor:"2,keyasint"`
}

// contentKeeper 本地内容保管
//
// 写入本地值时登记完整性元数据；启用纠删码时同时生成校验块，
// 值与校验块在同一个批量中提交。本地 Put 与远端 Store 请求共用同一套写入路径。
type contentKeeper struct {
	eng       engine.Engine
	values    *store.ValueStore
	parity    *store.Collection[parityRecord]
	integrity *integrity.Engine
	codec     *integrity.ReedSolomonCodec
}

func newContentKeeper(eng engine.Engine, values *store.ValueStore, ie *integrity.Engine) *contentKeeper {
	return &contentKeeper{
		eng:       eng,
		values:    values,
		parity:    store.NewCollection[parityRecord](eng, store.PrefixParity),
		integrity: ie,
		codec:     integrity.NewReedSolomonCodec(),
	}
}

// Store 写入本地值并登记完整性元数据
//
// 值和校验块原子提交。登记失败只记录日志并撤销旧元数据，
// 下次巡检时会按缺失元数据处理。
func (k *contentKeeper) Store(key string, value []byte) error {
	b := k.eng.NewBatch()
	if err := k.values.PutBatch(b, key, value); err != nil {
		return err
	}

	rec, err := k.index(key, value)
	switch {
	case err != nil:
		logger.Warn("登记完整性元数据失败", "key", key, "error", err)
		k.integrity.Unregister(key)
		k.parity.DeleteBatch(b, []byte(key))
	case rec != nil:
		if err := k.parity.PutBatch(b, []byte(key), rec); err != nil {
			k.integrity.Unregister(key)
			return err
		}
	default:
		k.parity.DeleteBatch(b, []byte(key))
	}

	if err := b.Write(); err != nil {
		k.integrity.Unregister(key)
		return err
	}
	return nil
}

// Delete 原子删除本地值及其校验块，并撤销元数据
func (k *contentKeeper) Delete(key string) error {
	b := k.eng.NewBatch()
	k.parity.DeleteBatch(b, []byte(key))
	k.values.DeleteBatch(b, key)
	if err := b.Write(); err != nil {
		return err
	}
	k.integrity.Unregister(key)
	return nil
}

// index 登记完整性元数据，启用纠删码时返回待保存的校验块
func (k *contentKeeper) index(key string, value []byte) (*parityRecord, error) {
	cfg := k.integrity.Config()

	if cfg.Erasure == nil || len(value) == 0 {
		if meta, ok := k.integrity.Metadata(key); ok && meta.HasErasure() {
			k.integrity.Unregister(key)
		}
		_, err := k.integrity.RegisterContent(key, integrity.SplitBlocks(value, cfg.BlockSize), cfg.Algorithm)
		return nil, err
	}

	params := *cfg.Erasure
	shards, err := k.codec.Split(params, append([]byte(nil), value...))
	if err != nil {
		return nil, err
	}
	if _, err := k.integrity.RegisterContentWithErasure(key, shards, cfg.Algorithm, params); err != nil {
		return nil, err
	}
	parity, err := k.integrity.EncodeParity(key, shards)
	if err != nil {
		return nil, err
	}
	return &parityRecord{Shards: parity, Length: len(value)}, nil
}

// blocksOf 按元数据记录的分块方式切分值
func blocksOf(meta *integrity.Metadata, value []byte) [][]byte {
	if !meta.HasErasure() {
		return integrity.SplitBlocks(value, meta.BlockSize)
	}
	shards := make([][]byte, meta.TotalBlocks)
	for i := range shards {
		shards[i] = make([]byte, meta.BlockSize)
		if off := i * meta.BlockSize; off < len(value) {
			copy(shards[i], value[off:])
		}
	}
	return shards
}

// Verify 校验本地值
//
// 值或元数据缺失时 found 为 false。
func (k *contentKeeper) Verify(key string) (result integrity.VerifyResult, found bool, err error) {
	value, ok, err := k.values.Get(key)
	if err != nil || !ok {
		return integrity.VerifyResult{ContentID: key}, false, err
	}
	return k.verifyValue(key, value)
}

func (k *contentKeeper) verifyValue(key string, value []byte) (integrity.VerifyResult, bool, error) {
	meta, ok := k.integrity.Metadata(key)
	if !ok {
		return integrity.VerifyResult{ContentID: key}, false, nil
	}
	result, ok := k.integrity.VerifyContent(key, blocksOf(meta, value))
	return result, ok, nil
}

// Heal 用校验块修复本地值
func (k *contentKeeper) Heal(key string) (*integrity.HealResult, error) {
	meta, ok := k.integrity.Metadata(key)
	if !ok {
		return nil, integrity.ErrContentNotFound
	}
	if !meta.HasErasure() {
		return nil, integrity.ErrNoErasureCoding
	}
	rec, ok, err := k.parity.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("dhtstore: no parity for %q", key)
	}
	value, _, err := k.values.Get(key)
	if err != nil {
		return nil, err
	}

	result, err := k.integrity.HealContent(key, blocksOf(meta, value), rec.Shards)
	if err != nil {
		return nil, err
	}
	if result.Status == integrity.Healed {
		healed := make([]byte, 0, meta.BlockSize*meta.TotalBlocks)
		for _, b := range result.Blocks {
			healed = append(healed, b...)
		}
		if rec.Length > len(healed) {
			return nil, errors.New("dhtstore: parity record longer than content")
		}
		if err := k.values.Put(key, healed[:rec.Length]); err != nil {
			return nil, err
		}
	}
	return result, nil
}
