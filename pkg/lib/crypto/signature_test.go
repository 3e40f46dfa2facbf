package crypto

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	payload := []byte("quorum-ack")
	sig, err := Sign(priv, payload, time.Unix(100, 0))
	require.NoError(t, err)

	ok, err := Verify(pub, payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, EmbeddedKeyMatches(pub, sig))
	assert.Equal(t, time.Unix(100, 0), sig.Time())
}

// TestVerify_TamperedPayload 篡改 payload 后验证失败
func TestVerify_TamperedPayload(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	sig, err := Sign(priv, []byte("original"), time.Now())
	require.NoError(t, err)

	ok, err := Verify(pub, []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestVerify_TamperedTimestamp 篡改时间戳后验证失败
func TestVerify_TamperedTimestamp(t *testing.T) {
	priv, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	payload := []byte("original")
	sig, err := Sign(priv, payload, time.Unix(100, 0))
	require.NoError(t, err)

	sig.Timestamp++
	ok, err := Verify(pub, payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_WrongKey(t *testing.T) {
	priv, _, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	_, other, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	sig, err := Sign(priv, []byte("x"), time.Now())
	require.NoError(t, err)

	ok, err := Verify(other, []byte("x"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, EmbeddedKeyMatches(other, sig))
}

func TestVerify_NilInputs(t *testing.T) {
	_, pub, err := GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)

	_, err = Verify(nil, nil, &Signature{})
	assert.ErrorIs(t, err, ErrNilPublicKey)

	_, err = Verify(pub, nil, nil)
	assert.ErrorIs(t, err, ErrNilSignature)

	_, err = Verify(pub, nil, &Signature{Type: KeyTypeUnspecified})
	assert.ErrorIs(t, err, ErrSignatureTypeMismatch)

	_, err = Sign(nil, nil, time.Now())
	assert.ErrorIs(t, err, ErrNilPrivateKey)
}
