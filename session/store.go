package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound is returned when no record matches the id, token or refresh token.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Rotate when the stored refresh value no longer
	// matches the expected one because another caller rotated first.
	ErrConflict = errors.New("session rotation conflict")
	// ErrRevoked is returned by Rotate when the record has been revoked.
	ErrRevoked = errors.New("session revoked")
	// ErrDuplicate is returned by Create when the id is already taken.
	ErrDuplicate = errors.New("session already exists")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// Store persists session records. Implementations must be safe for
// concurrent use and must make Rotate atomic.
type Store interface {
	Create(ctx context.Context, t *Token) error
	GetByID(ctx context.Context, id string) (*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	// Rotate replaces the token, refresh token and expiries of record id only
	// if its refresh token still equals expectedRefresh.
	Rotate(ctx context.Context, id, expectedRefresh string, next Rotation) (*Token, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID int64) ([]*Token, error)
}

// Fingerprint returns the hex SHA-256 of a credential. Stores index
// credentials by fingerprint so raw values never appear in key names.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
