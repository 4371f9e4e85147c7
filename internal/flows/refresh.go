package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/shopcore/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotFound
	RefreshFailureRevoked
	RefreshFailureExpired
	RefreshFailureNextSecret
	RefreshFailureSign
	RefreshFailureConflict
	RefreshFailureStore
)

type RefreshSessionStore interface {
	GetByRefreshToken(ctx context.Context, refreshToken string) (*session.Token, error)
	Rotate(ctx context.Context, id, expectedRefresh string, next session.Rotation) (*session.Token, error)
	Delete(ctx context.Context, id string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now             func() time.Time
	NewRefreshToken func() (string, error)
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	Warn            func(string, ...any)
	Store           RefreshSessionStore
}

// RefreshRequest identifies the session to rotate and how to sign its
// replacement bearer token.
type RefreshRequest struct {
	RefreshToken string
	// UserID, when non-zero, must own the session.
	UserID int64
	Sign   func(issuedAt time.Time) (string, error)
}

// RefreshResult carries either the rotated record or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	SessionID string
	UserID    int64
	Token     *session.Token
}

// RunRefresh validates a refresh token and rotates its session in place.
//
// A session whose refresh window has closed is deleted and reported
// expired; later attempts with the same value then report not found.
func RunRefresh(ctx context.Context, req RefreshRequest, deps RefreshDeps) RefreshResult {
	rec, err := deps.Store.GetByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err}
	}
	if req.UserID != 0 && rec.UserID != req.UserID {
		return RefreshResult{Failure: RefreshFailureNotFound, Err: session.ErrNotFound}
	}

	base := RefreshResult{SessionID: rec.ID, UserID: rec.UserID}

	if rec.Revoked {
		base.Failure, base.Err = RefreshFailureRevoked, session.ErrRevoked
		return base
	}

	now := deps.Now()
	if rec.RefreshExpired(now) {
		if err := deps.Store.Delete(ctx, rec.ID); err != nil && deps.Warn != nil {
			deps.Warn("shopcore: expired session cleanup failed: %v", err)
		}
		base.Failure = RefreshFailureExpired
		return base
	}

	nextRefresh, err := deps.NewRefreshToken()
	if err != nil {
		base.Failure, base.Err = RefreshFailureNextSecret, err
		return base
	}
	token, err := req.Sign(now)
	if err != nil {
		base.Failure, base.Err = RefreshFailureSign, err
		return base
	}

	rotated, err := deps.Store.Rotate(ctx, rec.ID, req.RefreshToken, session.Rotation{
		Token:                 token,
		RefreshToken:          nextRefresh,
		ExpirationDate:        now.Add(deps.AccessTTL),
		RefreshExpirationDate: now.Add(deps.RefreshTTL),
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrConflict):
			base.Failure = RefreshFailureConflict
		case errors.Is(err, session.ErrNotFound):
			base.Failure = RefreshFailureNotFound
		case errors.Is(err, session.ErrRevoked):
			base.Failure = RefreshFailureRevoked
		default:
			base.Failure = RefreshFailureStore
		}
		base.Err = err
		return base
	}

	base.Token = rotated
	return base
}
