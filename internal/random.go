package internal

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

const refreshTokenSize = 32

// NewSessionID returns a random UUIDv4 string.
func NewSessionID() string {
	return uuid.NewString()
}

// NewRefreshToken returns 32 random bytes, base64url without padding.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
