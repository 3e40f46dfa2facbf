package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dhtstore/internal/core/storage/engine"
	"github.com/dep2p/go-dhtstore/internal/core/storage/engine/badger"
	"github.com/dep2p/go-dhtstore/pkg/types"
)

func testEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng, err := badger.New(engine.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func testNode(b byte) *types.DhtNode {
	var id types.NodeID
	id[0] = b
	return &types.DhtNode{
		Identity:   types.PeerIdentity{ID: id, PublicKey: []byte{b, b}},
		Addresses:  []types.Address{"/ip4/127.0.0.1/udp/4001/quic-v1"},
		Reputation: 1000,
		LastSeen:   time.Unix(1700000000, 0).UTC(),
		Storage:    &types.StorageCapabilities{AvailableSpace: 1 << 30, TotalCapacity: 2 << 30},
	}
}

// ============================================================================
// Collection
// ============================================================================

func TestCollection_PutGetDelete(t *testing.T) {
	nodes := NewCollection[types.DhtNode](testEngine(t), PrefixNodes)

	n := testNode(1)
	require.NoError(t, nodes.Put(n.ID().Bytes(), n))

	got, ok, err := nodes.Get(n.ID().Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n.ID(), got.ID())
	assert.True(t, n.LastSeen.Equal(got.LastSeen))
	assert.Equal(t, n.Storage.TotalCapacity, got.Storage.TotalCapacity)

	require.NoError(t, nodes.Delete(n.ID().Bytes()))
	_, ok, err = nodes.Get(n.ID().Bytes())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCollection_ForEach(t *testing.T) {
	eng := testEngine(t)
	nodes := NewCollection[types.DhtNode](eng, PrefixNodes)
	values := NewValueStore(eng)

	for i := byte(1); i <= 3; i++ {
		n := testNode(i)
		require.NoError(t, nodes.Put(n.ID().Bytes(), n))
	}
	require.NoError(t, values.Put("unrelated", []byte("x")))

	seen := 0
	require.NoError(t, nodes.ForEach(func(_ []byte, n *types.DhtNode) bool {
		seen++
		assert.Equal(t, uint32(1000), n.Reputation)
		return true
	}))
	assert.Equal(t, 3, seen, "前缀隔离：值存储中的键不应出现")

	count, err := nodes.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, nodes.Clear())
	count, err = nodes.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

// TestCollection_Reopen 测试重启后记录仍可读取
func TestCollection_Reopen(t *testing.T) {
	dir := t.TempDir()

	eng, err := badger.New(engine.DefaultConfig(dir))
	require.NoError(t, err)
	n := testNode(7)
	require.NoError(t, NewCollection[types.DhtNode](eng, PrefixNodes).Put(n.ID().Bytes(), n))
	require.NoError(t, eng.Close())

	eng, err = badger.New(engine.DefaultConfig(dir))
	require.NoError(t, err)
	defer eng.Close()

	got, ok, err := NewCollection[types.DhtNode](eng, PrefixNodes).Get(n.ID().Bytes())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, n.Addresses, got.Addresses)
}

// ============================================================================
// ValueStore
// ============================================================================

func TestValueStore(t *testing.T) {
	values := NewValueStore(testEngine(t))

	_, ok, err := values.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, values.Put("k1", []byte("v1")))
	require.NoError(t, values.Put("k2", []byte("v2")))

	v, ok, err := values.Get("k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	keys, err := values.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

	require.NoError(t, values.Delete("k1"))
	has, err := values.Has("k1")
	require.NoError(t, err)
	assert.False(t, has)

	assert.ErrorIs(t, values.Put("", nil), engine.ErrEmptyKey)
}
