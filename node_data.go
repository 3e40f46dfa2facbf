package dhtstore

import (
	"context"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/dep2p/go-dhtstore/internal/dht/nodemgr"
	"github.com/dep2p/go-dhtstore/internal/dht/quorum"
	"github.com/dep2p/go-dhtstore/internal/dht/replication"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              写入选项
// ════════════════════════════════════════════════════════════════════════════

// PutOption 写入选项
type PutOption func(*putOptions)

type putOptions struct {
	category string
}

// WithCategory 按数据类别选择副本策略
//
// 未配置该类别时使用默认策略。
func WithCategory(category string) PutOption {
	return func(o *putOptions) {
		o.category = category
	}
}

// KeyTarget 返回键在 ID 空间中的位置
//
// 副本放置在与 blake3(key) XOR 距离最近的存储节点上。
func KeyTarget(key string) types.NodeID {
	return types.NodeID(blake3.Sum256([]byte(key)))
}

// ════════════════════════════════════════════════════════════════════════════
//                              数据接口
// ════════════════════════════════════════════════════════════════════════════

// Put 写入键值对并复制到最近的健康存储节点
//
// 值先写入本地并登记完整性元数据，然后按类别策略选择副本目标并行投递。
// 本地写入失败时不发起复制。复制结果以状态快照返回：
//   - 健康存储节点不足副本因子时返回 replication.ErrInsufficientTargets，本地值保留
//   - 成功副本低于修复阈值时返回 replication.ErrUnderReplicated，后台修复会补齐
//   - Strong 一致性策略下，本节点与成功副本未达到写法定人数时返回 ErrQuorumNotMet
func (n *Node) Put(ctx context.Context, key string, value []byte, opts ...PutOption) (*replication.Status, error) {
	if err := n.checkRunning(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := n.content.Store(key, value); err != nil {
		return nil, fmt.Errorf("store local value: %w", err)
	}

	policy := n.replication.Policy(o.category)
	targets := n.ReplicaTargets(key, policy.ReplicationFactor)
	status, err := n.replication.ReplicateDataAs(ctx, o.category, key, value, targets)
	if err != nil {
		return status, err
	}

	if policy.Consistency == replication.Strong {
		responders := append([]types.NodeID{n.self}, status.ReplicaNodes...)
		result := n.quorum.CheckWrite(responders)
		if !result.Met {
			logger.Warn("写法定人数未达到", "key", key, "result", result.String())
			return status, fmt.Errorf("%w: %s", ErrQuorumNotMet, result)
		}
	}

	logger.Debug("写入完成", "key", key, "replicas", len(status.ReplicaNodes), "state", status.State())
	return status, nil
}

// Get 读取键对应的值
//
// 先读本地值存储；本地没有时依次询问离键最近的健康存储节点。
// 本地与远端均未找到时返回 (nil, false, nil)。
func (n *Node) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := n.checkRunning(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	value, ok, err := n.values.Get(key)
	if err != nil || ok {
		return value, ok, err
	}

	for _, peer := range n.ReplicaTargets(key, n.replication.Policy("").ReplicationFactor) {
		resp, err := n.messaging.FindValue(ctx, peer.ID(), key)
		if err != nil {
			logger.Debug("远端查询失败", "key", key, "node", peer.ID().ShortString(), "error", err)
			continue
		}
		if resp.Found {
			return resp.Value, true, nil
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
	}
	return nil, false, nil
}

// Delete 删除本地值、完整性元数据和副本状态
//
// 不通知远端副本持有者。
func (n *Node) Delete(key string) error {
	if err := n.checkRunning(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	if err := n.content.Delete(key); err != nil {
		return err
	}
	n.replication.RemoveStatus(key)
	return nil
}

// ReplicaTargets 返回键的候选副本节点
//
// 健康存储节点按与 KeyTarget(key) 的 XOR 距离排序，不含本节点，最多 count 个。
func (n *Node) ReplicaTargets(key string, count int) []*types.DhtNode {
	return n.nodes.ClosestNodes(KeyTarget(key), count,
		nodemgr.WithStorage(),
		n.nodes.Healthy(),
		nodemgr.Exclude(n.self),
	)
}

// CheckReadQuorum 校验签名读响应是否达到读法定人数
func (n *Node) CheckReadQuorum(responses []*quorum.SignedResponse) quorum.SignedResult {
	return n.quorum.CheckSignedRead(responses)
}

// CheckWriteQuorum 校验签名写响应是否达到写法定人数
func (n *Node) CheckWriteQuorum(responses []*quorum.SignedResponse) quorum.SignedResult {
	return n.quorum.CheckSignedWrite(responses)
}
