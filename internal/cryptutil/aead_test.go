package cryptutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)

	plaintext := []byte("hello\nfoo\nbar")

	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)
	assert.Len(t, sealed, NonceSize+len(plaintext)+16) // +16 GCM tag

	decrypted, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestSealNonceIsFreshEveryCall(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)

	a, err := Seal(key, []byte("same plaintext"))
	require.NoError(t, err)

	b, err := Seal(key, []byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, a[:NonceSize], b[:NonceSize], "nonces must never repeat under the same key")
	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key, err := NewDataKey()
	require.NoError(t, err)

	sealed, err := Seal(key, []byte("integrity matters"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF

	_, err = Open(key, sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key1, err := NewDataKey()
	require.NoError(t, err)

	key2, err := NewDataKey()
	require.NoError(t, err)

	sealed, err := Seal(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(key2, sealed)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	k1 := DeriveKey("correct horse battery staple", salt)
	k2 := DeriveKey("correct horse battery staple", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	k3 := DeriveKey("different password", salt)
	assert.NotEqual(t, k1, k3)
}
