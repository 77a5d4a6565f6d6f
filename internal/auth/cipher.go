package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Token layout: version (2 bytes) || nonce (12 bytes) || ciphertext+tag,
// encoded as URL-safe base64 without padding.
var tokenVersion = []byte("v1")

const nonceLen = 12

var (
	ErrInvalidSecretKey = errors.New("invalid secret key")
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing token")
	ErrExpiredToken     = errors.New("expired token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Cipher encrypts and decrypts client tokens with AES-256-GCM. The key is
// fixed for the life of the process.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 64-character hex secret key.
func NewCipher(secretKey string) (*Cipher, error) {
	keyBytes, err := hex.DecodeString(secretKey)
	if err != nil || len(keyBytes) != 32 {
		return nil, ErrInvalidSecretKey
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, ErrInvalidSecretKey
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrInvalidSecretKey
	}
	return &Cipher{aead: aead}, nil
}

// EncryptBase64 encrypts the plaintext and returns the versioned,
// nonce-prefixed token.
func (c *Cipher) EncryptBase64(plaintext string) (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	tokenBytes := make([]byte, 0, len(tokenVersion)+nonceLen+len(plaintext)+c.aead.Overhead())
	tokenBytes = append(tokenBytes, tokenVersion...)
	tokenBytes = append(tokenBytes, nonce...)
	tokenBytes = c.aead.Seal(tokenBytes, nonce, []byte(plaintext), nil)

	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// DecryptBase64 decodes and decrypts a token back to the plaintext. Any
// malformed, tampered, or wrong-key token fails with ErrInvalidToken.
func (c *Cipher) DecryptBase64(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	if len(raw) < len(tokenVersion)+nonceLen {
		return "", ErrInvalidToken
	}
	version, rest := raw[:len(tokenVersion)], raw[len(tokenVersion):]
	if string(version) != string(tokenVersion) {
		return "", ErrInvalidToken
	}
	nonce, ciphertext := rest[:nonceLen], rest[nonceLen:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(plaintext), nil
}
