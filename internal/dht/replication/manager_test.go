package replication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dhtstore/config"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine/badger"
	"github.com/dep2p/go-dhtstore/internal/dht/nodemgr"
	"github.com/dep2p/go-dhtstore/internal/dht/store"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

// ============================================================================
// 测试辅助
// ============================================================================

var errRefused = errors.New("refused")

type fakeDeliverer struct {
	mu      sync.Mutex
	failing map[types.NodeID]bool
	calls   []types.NodeID
}

func newFakeDeliverer(failing ...types.NodeID) *fakeDeliverer {
	d := &fakeDeliverer{failing: make(map[types.NodeID]bool)}
	for _, id := range failing {
		d.failing[id] = true
	}
	return d
}

func (d *fakeDeliverer) Deliver(_ context.Context, node *types.DhtNode, _ string, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, node.ID())
	if d.failing[node.ID()] {
		return errRefused
	}
	return nil
}

func (d *fakeDeliverer) setFailing(id types.NodeID, failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[id] = failing
}

func (d *fakeDeliverer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type mapValues map[string][]byte

func (v mapValues) Get(key string) ([]byte, bool, error) {
	b, ok := v[key]
	return b, ok, nil
}

func nodeID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

func storageNode(b byte) *types.DhtNode {
	return &types.DhtNode{
		Identity:   types.PeerIdentity{ID: nodeID(b)},
		Reputation: 1000,
		Storage:    &types.StorageCapabilities{AvailableSpace: 1 << 20, TotalCapacity: 1 << 21},
	}
}

func nodes(bs ...byte) []*types.DhtNode {
	out := make([]*types.DhtNode, len(bs))
	for i, b := range bs {
		out[i] = storageNode(b)
	}
	return out
}

// setup 创建节点管理器（已登记 1..9 号节点）和副本管理器
func setup(t *testing.T, d Deliverer, opts ...Option) (*Manager, *nodemgr.Manager) {
	t.Helper()

	nm, err := nodemgr.New(nil)
	require.NoError(t, err)
	for b := byte(1); b <= 9; b++ {
		require.NoError(t, nm.AddNode(storageNode(b)))
	}

	opts = append([]Option{WithClock(clock.NewMock()), WithSelf(nodeID(0xFF))}, opts...)
	m, err := New(nil, d, nm, opts...)
	require.NoError(t, err)
	return m, nm
}

// ============================================================================
// ReplicateData
// ============================================================================

// TestReplicateData_InsufficientTargets 测试目标不足时不发起任何投递
func TestReplicateData_InsufficientTargets(t *testing.T) {
	d := newFakeDeliverer()
	m, _ := setup(t, d)

	_, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2))
	assert.ErrorIs(t, err, ErrInsufficientTargets)
	assert.Zero(t, d.Calls(), "目标不足时不应发起网络调用")

	_, ok := m.Status("k")
	assert.False(t, ok)
}

func TestReplicateData_FullSuccess(t *testing.T) {
	d := newFakeDeliverer()
	m, nm := setup(t, d)

	st, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3, 4))
	require.NoError(t, err)

	assert.Equal(t, 3, d.Calls(), "只选择前 ReplicationFactor 个候选")
	assert.Equal(t, 3, st.TotalReplicas)
	assert.Equal(t, 3, st.RequiredReplicas)
	assert.False(t, st.RepairNeeded)
	assert.Equal(t, FullyReplicated, st.State())
	assert.True(t, st.HasReplica(nodeID(1)))
	assert.False(t, st.HasReplica(nodeID(4)))

	rep, _ := nm.Reputation(nodeID(1))
	assert.Equal(t, uint32(1010), rep, "成功投递奖励信誉")
}

// TestReplicateData_PartialAboveThreshold 测试部分失败但达到阈值
func TestReplicateData_PartialAboveThreshold(t *testing.T) {
	d := newFakeDeliverer(nodeID(3))
	m, nm := setup(t, d)

	st, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, 2, st.TotalReplicas)
	assert.Equal(t, []types.NodeID{nodeID(3)}, st.FailedNodes)
	assert.False(t, st.RepairNeeded)
	assert.Equal(t, PartiallyReplicated, st.State())

	rep, _ := nm.Reputation(nodeID(3))
	assert.Equal(t, uint32(950), rep, "失败投递扣除信誉")
}

// TestReplicateData_UnderTarget 测试低于阈值时返回错误但保留部分成功
func TestReplicateData_UnderTarget(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	m, _ := setup(t, d)

	st, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))
	assert.ErrorIs(t, err, ErrUnderReplicated)

	var rerr *ReplicationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "k", rerr.Key)

	require.NotNil(t, st)
	assert.Equal(t, 1, st.TotalReplicas)
	assert.True(t, st.RepairNeeded)

	stored, ok := m.Status("k")
	require.True(t, ok, "部分成功被记录")
	assert.Equal(t, []types.NodeID{nodeID(1)}, stored.ReplicaNodes)
	assert.Equal(t, []string{"k"}, m.KeysNeedingRepair())
}

// TestReplicateToNode_ReputationFloor 测试低信誉节点在投递前被拒绝
func TestReplicateToNode_ReputationFloor(t *testing.T) {
	d := newFakeDeliverer()
	m, nm := setup(t, d)

	nm.UpdateReputation(nodeID(1), -600)
	err := m.ReplicateToNode(context.Background(), storageNode(1), "k", []byte("v"))
	assert.ErrorIs(t, err, ErrReputationTooLow)
	assert.Zero(t, d.Calls())

	// 未登记的节点使用记录中的信誉快照
	stranger := storageNode(0x40)
	stranger.Reputation = 499
	assert.ErrorIs(t, m.ReplicateToNode(context.Background(), stranger, "k", nil), ErrReputationTooLow)
	stranger.Reputation = 500
	assert.NoError(t, m.ReplicateToNode(context.Background(), stranger, "k", nil))

	assert.ErrorIs(t, m.ReplicateToNode(context.Background(), nil, "k", nil), ErrNilNode)
}

func TestReplicateDataAs_CategoryPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies["critical"] = Policy{ReplicationFactor: 5, Consistency: Strong, RepairThreshold: 4}

	nm, err := nodemgr.New(nil)
	require.NoError(t, err)
	m, err := New(cfg, newFakeDeliverer(), nm)
	require.NoError(t, err)

	assert.Equal(t, Strong, m.Policy("critical").Consistency)
	assert.Equal(t, DefaultPolicy(), m.Policy("unknown"))

	_, err = m.ReplicateDataAs(context.Background(), "critical", "k", nil, nodes(1, 2, 3, 4))
	assert.ErrorIs(t, err, ErrInsufficientTargets)

	st, err := m.ReplicateDataAs(context.Background(), "critical", "k", nil, nodes(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, st.TotalReplicas)
	assert.Equal(t, "critical", st.Category)
}

// TestReplicateData_DuplicateTargets 测试重复的目标节点只计为一个副本
func TestReplicateData_DuplicateTargets(t *testing.T) {
	d := newFakeDeliverer()
	m, _ := setup(t, d)

	_, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 1, 1))
	assert.ErrorIs(t, err, ErrInsufficientTargets)
	assert.Zero(t, d.Calls())

	st, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 1, 2, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalReplicas)
	assert.False(t, st.RepairNeeded)
	assert.Equal(t, 3, d.Calls())
}

// TestPolicy_CategoryCaseInsensitive 测试从配置文件加载的类别策略按不区分大小写查找
func TestPolicy_CategoryCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dhtstore.yaml")
	content := `
replication:
  policies:
    Critical:
      replication_factor: 5
      repair_threshold: 4
      consistency: strong
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	unified, err := config.Load(path)
	require.NoError(t, err)

	nm, err := nodemgr.New(nil)
	require.NoError(t, err)
	m, err := New(ConfigFromUnified(unified), newFakeDeliverer(), nm)
	require.NoError(t, err)

	for _, category := range []string{"Critical", "critical", "CRITICAL"} {
		p := m.Policy(category)
		assert.Equal(t, Strong, p.Consistency, category)
		assert.Equal(t, 5, p.ReplicationFactor, category)
	}

	st, err := m.ReplicateDataAs(context.Background(), "Critical", "k", nil, nodes(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, "critical", st.Category)
	assert.Equal(t, 4, st.RepairThreshold)

	// 直接构造的配置同样不区分大小写
	cfg := DefaultConfig()
	cfg.Policies["Ledger"] = Policy{ReplicationFactor: 4, Consistency: Strong, RepairThreshold: 3}
	m, err = New(cfg, newFakeDeliverer(), nm)
	require.NoError(t, err)
	assert.Equal(t, Strong, m.Policy("ledger").Consistency)
	_, ok := cfg.Policies["Ledger"]
	assert.True(t, ok, "调用方的配置不应被修改")

	cfg.Policies["ledger"] = cfg.Policies["Ledger"]
	_, err = New(cfg, newFakeDeliverer(), nm)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ============================================================================
// RepairReplicas
// ============================================================================

// TestRepairReplicasBy_PerKeyCandidates 测试每个键按自己的候选顺序修复
func TestRepairReplicasBy_PerKeyCandidates(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	m, _ := setup(t, d, WithValueSource(mapValues{"a": []byte("1"), "b": []byte("2")}))

	_, err := m.ReplicateData(context.Background(), "a", []byte("1"), nodes(1, 2, 3))
	require.ErrorIs(t, err, ErrUnderReplicated)
	_, err = m.ReplicateData(context.Background(), "b", []byte("2"), nodes(1, 2, 3))
	require.ErrorIs(t, err, ErrUnderReplicated)

	var asked []string
	stats := m.RepairReplicasBy(context.Background(), func(key string) []*types.DhtNode {
		asked = append(asked, key)
		if key == "a" {
			return nodes(1, 4, 5, 6, 7)
		}
		return nodes(1, 6, 7, 4, 5)
	})

	assert.ElementsMatch(t, []string{"a", "b"}, asked)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 4, stats.NewReplicas)

	a, _ := m.Status("a")
	assert.True(t, a.HasReplica(nodeID(4)))
	assert.False(t, a.HasReplica(nodeID(6)))
	b, _ := m.Status("b")
	assert.True(t, b.HasReplica(nodeID(6)))
	assert.False(t, b.HasReplica(nodeID(4)))
}

// TestRepairReplicas_FillsShortfall 测试修复只向缺口数量的新节点投递
func TestRepairReplicas_FillsShortfall(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	m, _ := setup(t, d, WithValueSource(mapValues{"k": []byte("v")}))

	_, err := m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))
	require.ErrorIs(t, err, ErrUnderReplicated)

	before := d.Calls()
	available := append(nodes(0xFF, 1), nodes(4, 5, 6)...)
	stats := m.RepairReplicas(context.Background(), available)

	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 1, stats.Successful)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, stats.NewReplicas)
	assert.NoError(t, stats.Err)

	// 排除本地节点和已持有副本的节点 1，缺口为 2
	assert.Equal(t, before+2, d.Calls())

	st, _ := m.Status("k")
	assert.Equal(t, 3, st.TotalReplicas)
	assert.False(t, st.RepairNeeded)
	assert.Equal(t, 1, st.RepairAttempts)
	assert.True(t, st.HasReplica(nodeID(4)))
	assert.True(t, st.HasReplica(nodeID(5)))
}

// TestRepairReplicas_Idempotent 测试无变化时第二轮修复不产生新的成功
func TestRepairReplicas_Idempotent(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	m, _ := setup(t, d, WithValueSource(mapValues{"k": []byte("v")}))

	_, _ = m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))
	available := nodes(4, 5, 6)

	first := m.RepairReplicas(context.Background(), available)
	assert.Equal(t, 1, first.Successful)

	calls := d.Calls()
	second := m.RepairReplicas(context.Background(), available)
	assert.Zero(t, second.Attempted)
	assert.Zero(t, second.Successful)
	assert.Equal(t, calls, d.Calls())
}

// TestRepairReplicas_FailuresDoNotAbortBatch 测试单键失败不中断整轮修复
func TestRepairReplicas_FailuresDoNotAbortBatch(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	values := mapValues{"a": []byte("1"), "b": []byte("2")}
	m, _ := setup(t, d, WithValueSource(values))

	for _, k := range []string{"a", "b", "c"} {
		_, err := m.ReplicateData(context.Background(), k, []byte("x"), nodes(1, 2, 3))
		require.ErrorIs(t, err, ErrUnderReplicated)
	}

	// c 没有源数据
	stats := m.RepairReplicas(context.Background(), nodes(4, 5))
	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, stats.Err, ErrNoSourceData)
	assert.Len(t, multierr.Errors(stats.Err), 1)
}

func TestRepairReplicas_NoCandidates(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3))
	m, _ := setup(t, d, WithValueSource(mapValues{"k": []byte("v")}))
	_, _ = m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))

	stats := m.RepairReplicas(context.Background(), nodes(1, 0xFF))
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, stats.Err, ErrNoRepairCandidates)
}

// TestRepairReplicas_KeepsExistingOnFailure 测试修复失败不移除已有副本
func TestRepairReplicas_KeepsExistingOnFailure(t *testing.T) {
	d := newFakeDeliverer(nodeID(2), nodeID(3), nodeID(4))
	m, _ := setup(t, d, WithValueSource(mapValues{"k": []byte("v")}))
	_, _ = m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))

	stats := m.RepairReplicas(context.Background(), nodes(4))
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, stats.Err, ErrUnderReplicated)

	st, _ := m.Status("k")
	assert.Equal(t, []types.NodeID{nodeID(1)}, st.ReplicaNodes)
	assert.Contains(t, st.FailedNodes, nodeID(4))
	assert.True(t, st.RepairNeeded)
}

func TestRepairReplicas_AttemptsExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.MaxRepairAttempts = 1

	d := newFakeDeliverer(nodeID(2), nodeID(3), nodeID(4))
	nm, err := nodemgr.New(nil)
	require.NoError(t, err)
	m, err := New(cfg, d, nm, WithValueSource(mapValues{"k": []byte("v")}))
	require.NoError(t, err)

	_, _ = m.ReplicateData(context.Background(), "k", []byte("v"), nodes(1, 2, 3))
	m.RepairReplicas(context.Background(), nodes(4))

	calls := d.Calls()
	stats := m.RepairReplicas(context.Background(), nodes(4))
	assert.ErrorIs(t, stats.Err, ErrRepairAttemptsExhausted)
	assert.Equal(t, calls, d.Calls())
}

// ============================================================================
// 状态维护
// ============================================================================

func TestMarkNodeFailed(t *testing.T) {
	m, _ := setup(t, newFakeDeliverer())
	_, err := m.ReplicateData(context.Background(), "a", nil, nodes(1, 2, 3))
	require.NoError(t, err)
	_, err = m.ReplicateData(context.Background(), "b", nil, nodes(4, 5, 6))
	require.NoError(t, err)

	assert.Equal(t, 1, m.MarkNodeFailed(nodeID(1)))
	st, _ := m.Status("a")
	assert.Equal(t, 2, st.TotalReplicas)
	assert.False(t, st.RepairNeeded)

	m.MarkNodeFailed(nodeID(2))
	st, _ = m.Status("a")
	assert.True(t, st.RepairNeeded)
	assert.Equal(t, []string{"a"}, m.KeysNeedingRepair())

	assert.Zero(t, m.MarkNodeFailed(nodeID(9)))
}

func TestRemoveStatusAndStatuses(t *testing.T) {
	m, _ := setup(t, newFakeDeliverer())
	for _, k := range []string{"b", "a"} {
		_, err := m.ReplicateData(context.Background(), k, nil, nodes(1, 2, 3))
		require.NoError(t, err)
	}

	all := m.Statuses()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key)

	// 快照不影响内部状态
	all[0].TotalReplicas = 0
	st, _ := m.Status("a")
	assert.Equal(t, 3, st.TotalReplicas)

	assert.True(t, m.RemoveStatus("a"))
	assert.False(t, m.RemoveStatus("a"))
	assert.Equal(t, 1, m.Len())
}

// TestPersistence 测试副本状态写入存储并在新实例中恢复
func TestPersistence(t *testing.T) {
	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	coll := store.NewCollection[Status](eng, store.PrefixStatuses)
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	d := newFakeDeliverer(nodeID(3))
	m, _ := setup(t, d, WithPersister(coll), WithClock(clk))
	_, err = m.ReplicateData(context.Background(), "k", nil, nodes(1, 2, 3))
	require.NoError(t, err)
	_, err = m.ReplicateData(context.Background(), "gone", nil, nodes(1, 2, 3))
	require.NoError(t, err)
	m.RemoveStatus("gone")

	restored, _ := setup(t, d, WithPersister(coll))
	require.NoError(t, restored.Load())
	assert.Equal(t, 1, restored.Len())

	st, ok := restored.Status("k")
	require.True(t, ok)
	assert.Equal(t, []types.NodeID{nodeID(1), nodeID(2)}, st.ReplicaNodes)
	assert.Equal(t, []types.NodeID{nodeID(3)}, st.FailedNodes)
	assert.True(t, st.LastUpdate.Equal(clk.Now()))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoDeliverer)

	cfg := DefaultConfig()
	cfg.Default.RepairThreshold = 4
	_, err = New(cfg, newFakeDeliverer(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
