package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testKey)
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := testCipher(t)

	for _, plaintext := range []string{
		"hello world",
		"",
		"🦀 streams are awesome! 中文 العربية",
		"1756012345:my-stream-key",
	} {
		token, err := c.EncryptBase64(plaintext)
		require.NoError(t, err)

		decoded, err := c.DecryptBase64(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decoded)
	}
}

func TestTokensAreURLSafe(t *testing.T) {
	c := testCipher(t)
	token, err := c.EncryptBase64("some plaintext with / and + characters ~~~")
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestInvalidSecretKey(t *testing.T) {
	for _, key := range []string{"", "short", "invalid", testKey + "00"} {
		_, err := NewCipher(key)
		assert.ErrorIs(t, err, ErrInvalidSecretKey, "key %q", key)
	}
}

func TestInvalidTokens(t *testing.T) {
	c := testCipher(t)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.DecryptBase64("not_base64!")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.DecryptBase64(base64.RawURLEncoding.EncodeToString([]byte("test")))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong version", func(t *testing.T) {
		token, err := c.EncryptBase64("test")
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		raw[1] = '2'
		_, err = c.DecryptBase64(base64.RawURLEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("mutated nonce", func(t *testing.T) {
		token, err := c.EncryptBase64("test")
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		raw[2] ^= 0xff
		_, err = c.DecryptBase64(base64.RawURLEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("mutated ciphertext", func(t *testing.T) {
		token, err := c.EncryptBase64("test")
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		_, err = c.DecryptBase64(base64.RawURLEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestDifferentKeysCantDecode(t *testing.T) {
	c1 := testCipher(t)
	c2, err := NewCipher("fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	token, err := c1.EncryptBase64("secret message")
	require.NoError(t, err)
	_, err = c2.DecryptBase64(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
