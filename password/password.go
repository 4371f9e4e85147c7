package password

import (
	"errors"
	"strings"
)

const (
	// MinPasswordBytes is the shortest credential Hash accepts.
	MinPasswordBytes = 8
	// DefaultMaxPasswordBytes bounds Argon2 input when Config leaves it unset.
	DefaultMaxPasswordBytes = 1024
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrUnsupportedHash  = errors.New("unsupported password hash")
)

// Hasher produces and checks encoded password hashes.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// Verify checks plain against an encoded hash of any supported scheme,
// selected by its prefix. A mismatch is (false, nil).
func Verify(plain, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		if len(plain) > DefaultMaxPasswordBytes {
			return false, ErrPasswordTooLong
		}
		return verifyArgon2(plain, encoded)
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		return verifyBcrypt(plain, encoded)
	default:
		return false, ErrUnsupportedHash
	}
}

func checkLength(plain string, max int) error {
	if len(plain) < MinPasswordBytes {
		return ErrPasswordTooShort
	}
	if len(plain) > max {
		return ErrPasswordTooLong
	}
	return nil
}
