package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqID(start byte) NodeID {
	var id NodeID
	for i := 0; i < NodeIDLen; i++ {
		id[i] = start + byte(i)
	}
	return id
}

// ============================================================================
// 文本表示
// ============================================================================

func TestNodeIDString(t *testing.T) {
	id := seqID(1)

	s := id.String()
	assert.NotEmpty(t, s)
	assert.LessOrEqual(t, len(id.ShortString()), 8)
}

func TestEmptyNodeIDString(t *testing.T) {
	var id NodeID
	assert.Equal(t, "", id.String())
	assert.True(t, id.IsEmpty())
}

func TestParseNodeID_RoundTrip(t *testing.T) {
	original := seqID(1)

	parsed, err := ParseNodeID(original.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(original))
}

func TestParseNodeID_Invalid(t *testing.T) {
	_, err := ParseNodeID("")
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	_, err = ParseNodeID("0OIl")
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	// 长度不对
	_, err = ParseNodeID("3mJr7AoUXx2Wqd")
	assert.ErrorIs(t, err, ErrInvalidNodeID)
}

func TestNodeIDFromBytes(t *testing.T) {
	_, err := NodeIDFromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	id, err := NodeIDFromBytes(seqID(7).Bytes())
	require.NoError(t, err)
	assert.Equal(t, seqID(7), id)
}

// ============================================================================
// 全序与 XOR 距离
// ============================================================================

// TestNodeID_Compare 测试全序
func TestNodeID_Compare(t *testing.T) {
	a := seqID(1)
	b := seqID(2)

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Less(b))
}

// TestXOR_Properties 测试 XOR 距离的基本性质
func TestXOR_Properties(t *testing.T) {
	a := seqID(1)
	b := seqID(9)

	assert.True(t, a.XOR(a).IsZero(), "相同ID的距离应该为0")
	assert.False(t, a.XOR(b).IsZero())
	assert.Equal(t, a.XOR(b), b.XOR(a), "XOR距离应该满足交换律")
}

func TestCommonPrefixLen(t *testing.T) {
	var a, b NodeID
	assert.Equal(t, NodeIDBits, CommonPrefixLen(a, b))

	b[0] = 0x80
	assert.Equal(t, 0, CommonPrefixLen(a, b))

	b[0] = 0x01
	assert.Equal(t, 7, CommonPrefixLen(a, b))

	b[0] = 0
	b[1] = 0x20
	assert.Equal(t, 10, CommonPrefixLen(a, b))
}

// TestCloseness 测试最高不同位索引
func TestCloseness(t *testing.T) {
	var a, b NodeID
	assert.Equal(t, -1, Closeness(a, b))

	b[0] = 0x80
	assert.Equal(t, 255, Closeness(a, b))

	b[0] = 0
	b[NodeIDLen-1] = 0x01
	assert.Equal(t, 0, Closeness(a, b))
}

func TestCompareDistance(t *testing.T) {
	var target, near, far NodeID
	near[NodeIDLen-1] = 0x01
	far[0] = 0x01

	assert.Equal(t, -1, CompareDistance(near, far, target))
	assert.Equal(t, 1, CompareDistance(far, near, target))
	assert.Equal(t, 0, CompareDistance(near, near, target))
}

// ============================================================================
// DhtNode
// ============================================================================

func TestDhtNode_Clone(t *testing.T) {
	n := &DhtNode{
		Identity:  PeerIdentity{ID: seqID(1), PublicKey: []byte{1, 2, 3}},
		Addresses: []Address{"/ip4/10.0.0.1/udp/4001/quic-v1"},
		Storage: &StorageCapabilities{
			AvailableSpace: 10,
			TotalCapacity:  20,
			SupportedTiers: []StorageTier{TierHot},
		},
	}

	c := n.Clone()
	c.Identity.PublicKey[0] = 9
	c.Addresses[0] = "x"
	c.Storage.SupportedTiers[0] = TierCold

	assert.Equal(t, byte(1), n.Identity.PublicKey[0])
	assert.Equal(t, Address("/ip4/10.0.0.1/udp/4001/quic-v1"), n.PrimaryAddress())
	assert.Equal(t, TierHot, n.Storage.SupportedTiers[0])
	assert.True(t, n.HasStorage())
	assert.Nil(t, (*DhtNode)(nil).Clone())
}
