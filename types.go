package shopcore

import (
	"context"

	"github.com/MrEthical07/shopcore/session"
)

// Identity is the user a session belongs to. Subject defaults to the
// decimal UserID when empty.
type Identity struct {
	UserID  int64
	Subject string
	Roles   []string
}

// UserRecord is what an IdentityProvider returns for a login attempt.
type UserRecord struct {
	Identity
	PhoneNumber  string
	PasswordHash string // argon2id PHC or bcrypt
	Active       bool
}

// IdentityProvider resolves accounts for Login. Implementations return
// ErrUserNotFound (or an error wrapping it) for unknown phone numbers.
type IdentityProvider interface {
	GetByPhoneNumber(ctx context.Context, phone string) (*UserRecord, error)
}

// SessionToken is a persisted session record.
type SessionToken = session.Token

// AuthResult is returned by Authenticate.
type AuthResult struct {
	UserID    int64
	Subject   string
	Roles     []string
	SessionID string
}
