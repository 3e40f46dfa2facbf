package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519_PublicKeyRoundTrip(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	raw, err := pub.Raw()
	require.NoError(t, err)
	require.Len(t, raw, Ed25519PublicKeySize)

	pub2, err := UnmarshalPublicKey(KeyTypeEd25519, raw)
	require.NoError(t, err)
	assert.True(t, pub.Equals(pub2))
	assert.True(t, priv.GetPublic().Equals(pub2))

	// 解码结果不与输入共享内存
	raw[0] ^= 0xFF
	assert.True(t, pub.Equals(pub2))

	id1, err := NodeIDFromPublicKey(pub)
	require.NoError(t, err)
	id2, err := NodeIDFromPublicKey(pub2)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestEd25519_InvalidSizes(t *testing.T) {
	_, err := UnmarshalEd25519PublicKey(make([]byte, 5))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = UnmarshalPublicKey(KeyType(99), nil)
	assert.ErrorIs(t, err, ErrBadKeyType)
}

func TestNodeIDFromPublicKey(t *testing.T) {
	_, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	id1, err := NodeIDFromPublicKey(pub)
	require.NoError(t, err)
	id2, err := NodeIDFromPublicKey(pub)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.False(t, id1.IsEmpty())

	_, err = NodeIDFromPublicKey(nil)
	assert.ErrorIs(t, err, ErrNilPublicKey)
}
