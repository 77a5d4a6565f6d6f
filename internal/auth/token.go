package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL is how long minted client tokens stay valid.
const DefaultTokenTTL = 10 * time.Minute

// MintClientToken creates a plaintext client token granting access to the
// given stream key for the given length of time. The format is
// "<expiresUnix>:<key>".
func MintClientToken(key string, ttl time.Duration) string {
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%d:%s", expires, key)
}

// ValidateClientToken checks that the plaintext token is well formed, not
// expired, and scoped to the given stream key.
func ValidateClientToken(token, key string) error {
	expiresStr, tokenKey, found := strings.Cut(token, ":")
	if !found {
		return ErrInvalidToken
	}
	expiresUnix, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if time.Unix(expiresUnix, 0).Before(time.Now()) {
		return ErrExpiredToken
	}
	if tokenKey != key {
		return ErrPermissionDenied
	}
	return nil
}
