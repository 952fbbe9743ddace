package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastKDF = KDFParams{Time: 1, Memory: 64, Threads: 1}

func TestDeriveKey(t *testing.T) {
	secret := bytes.Repeat([]byte("s"), MinSecretSize)
	salt, err := GenerateSalt()
	require.NoError(t, err)

	a, err := DeriveKey(secret, salt, fastKDF)
	require.NoError(t, err)
	assert.Len(t, a, KeySize)

	b, err := DeriveKey(secret, salt, fastKDF)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	otherSalt, err := GenerateSalt()
	require.NoError(t, err)
	c, err := DeriveKey(secret, otherSalt, fastKDF)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	// 派生出的密钥可直接用于 secretbox
	keys, err := NewKeySet(a)
	require.NoError(t, err)
	require.NoError(t, keys.Validate(NewSecretbox()))
}

func TestDeriveKey_Invalid(t *testing.T) {
	salt := make([]byte, SaltSize)
	_, err := DeriveKey([]byte("too short"), salt, fastKDF)
	assert.ErrorIs(t, err, ErrSecretLength)

	_, err = DeriveKey(bytes.Repeat([]byte("s"), MinSecretSize), []byte("salt"), fastKDF)
	assert.ErrorIs(t, err, ErrSaltLength)
}

func TestDecodeKeys(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	keys, err := DecodeKeys(EncodeKey(key), segmentEncoding.EncodeToString(key))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, key, keys[0])
	assert.Equal(t, key, keys[1])

	_, err = DecodeKeys("")
	assert.ErrorIs(t, err, ErrMissingSecretKey)

	_, err = DecodeKeys("%%%")
	assert.Error(t, err)
}

func TestKeySet(t *testing.T) {
	_, err := NewKeySet()
	assert.ErrorIs(t, err, ErrMissingSecretKey)

	_, err = NewKeySet([]byte("a"), nil)
	assert.ErrorIs(t, err, ErrMissingSecretKey)

	raw := []byte("0123456789abcdef0123456789abcdef")
	ks, err := NewKeySet(raw, []byte("short"))
	require.NoError(t, err)
	raw[0] = 'X'
	primary, err := ks.Primary()
	require.NoError(t, err)
	assert.Equal(t, byte('0'), primary[0])

	assert.NoError(t, ks.Validate(NewHMAC()))
	assert.ErrorIs(t, ks.Validate(NewAuth()), ErrKeyLength)

	var empty KeySet
	_, err = empty.Primary()
	assert.ErrorIs(t, err, ErrMissingSecretKey)
}
