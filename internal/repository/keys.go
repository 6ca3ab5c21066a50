package repository

import (
	"crypto/rand"
	"encoding/base64"
)

// NewOpaqueKey returns size random bytes as unpadded base64url, suitable for
// one-time values that end up inside ephemeral store keys.
func NewOpaqueKey(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
