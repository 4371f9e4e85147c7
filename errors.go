package shopcore

import (
	"errors"

	"github.com/MrEthical07/shopcore/catalog"
	"github.com/MrEthical07/shopcore/internal/rate"
	"github.com/MrEthical07/shopcore/jwt"
	"github.com/MrEthical07/shopcore/session"
)

var (
	// ErrNotFound reports a missing session, or a refresh token that does
	// not belong to the presented identity.
	ErrNotFound = session.ErrNotFound
	// ErrConflict reports a lost rotation race. The winner's credentials
	// are valid; the caller should not retry with the same refresh token.
	ErrConflict = session.ErrConflict
	// ErrRevoked reports a session that was explicitly revoked.
	ErrRevoked = session.ErrRevoked
	// ErrUnavailable wraps session backend failures.
	ErrUnavailable = session.ErrUnavailable
	// ErrCacheUnavailable wraps catalog cache failures. Reads never return
	// it; ClearCatalog may.
	ErrCacheUnavailable = catalog.ErrCacheUnavailable
	// ErrTokenInvalid reports a malformed or forged bearer token.
	ErrTokenInvalid = jwt.ErrTokenInvalid
	// ErrTokenExpired reports a bearer token past its expiry.
	ErrTokenExpired = jwt.ErrTokenExpired

	// ErrExpired reports a refresh token whose refresh window has closed.
	// The session is deleted before it is returned.
	ErrExpired = errors.New("refresh token expired")
	// ErrInvalidCredentials covers unknown phone numbers and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned by Login for inactive accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUserNotFound is what IdentityProvider implementations return for
	// unknown phone numbers.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput reports empty or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized reports a token whose subject does not match the
	// identity it is presented with.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEngineNotReady is returned by methods of a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrRateLimited is returned by Login while a phone number or client
	// address is cooling down after repeated failures.
	ErrRateLimited = rate.ErrRateLimited
)

// ErrorKind is the closed set of failure classes returned by the engine.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotFound
	KindExpired
	KindInvalid
	KindUnavailable
	KindConflict
	KindRevoked
	KindUnauthorized
	KindRateLimited
	KindInternal
)

var kindNames = [...]string{
	KindNone:         "none",
	KindNotFound:     "not_found",
	KindExpired:      "expired",
	KindInvalid:      "invalid",
	KindUnavailable:  "unavailable",
	KindConflict:     "conflict",
	KindRevoked:      "revoked",
	KindUnauthorized: "unauthorized",
	KindRateLimited:  "rate_limited",
	KindInternal:     "internal",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf classifies err. Unrecognised non-nil errors are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrExpired), errors.Is(err, ErrTokenExpired):
		return KindExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrInvalidInput):
		return KindInvalid
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrCacheUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrRevoked):
		return KindRevoked
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}
