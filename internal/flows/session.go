package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/shopcore/session"
)

// AddTokenFailureKind classifies session creation failures.
type AddTokenFailureKind int

const (
	AddTokenFailureNone AddTokenFailureKind = iota
	AddTokenFailureRefreshSecret
	AddTokenFailureStore
)

type SessionCreator interface {
	Create(ctx context.Context, t *session.Token) error
}

// AddTokenDeps captures session creation dependencies.
type AddTokenDeps struct {
	NewSessionID    func() string
	NewRefreshToken func() (string, error)
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	Store           SessionCreator
}

// AddTokenResult carries the persisted record or failure metadata.
type AddTokenResult struct {
	Failure AddTokenFailureKind
	Err     error
	Token   *session.Token
}

// RunAddToken persists a new session for userID holding token. Both
// expiries are computed from the same instant, so
// RefreshExpirationDate - ExpirationDate always equals RefreshTTL - AccessTTL.
func RunAddToken(ctx context.Context, userID int64, token string, now time.Time, deps AddTokenDeps) AddTokenResult {
	refresh, err := deps.NewRefreshToken()
	if err != nil {
		return AddTokenResult{Failure: AddTokenFailureRefreshSecret, Err: err}
	}

	rec := &session.Token{
		ID:                    deps.NewSessionID(),
		UserID:                userID,
		Token:                 token,
		RefreshToken:          refresh,
		TokenType:             session.TokenTypeBearer,
		ExpirationDate:        now.Add(deps.AccessTTL),
		RefreshExpirationDate: now.Add(deps.RefreshTTL),
		CreatedAt:             now,
	}
	if err := deps.Store.Create(ctx, rec); err != nil {
		return AddTokenResult{Failure: AddTokenFailureStore, Err: err}
	}
	return AddTokenResult{Token: rec}
}

type LogoutSessionStore interface {
	GetByToken(ctx context.Context, token string) (*session.Token, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID int64) ([]*session.Token, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store LogoutSessionStore
}

// RunLogoutByToken deletes the session holding token and returns its id.
func RunLogoutByToken(ctx context.Context, token string, deps LogoutDeps) (string, error) {
	rec, err := deps.Store.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	return rec.ID, deps.Store.Delete(ctx, rec.ID)
}

// RunLogoutAll deletes every session of userID and returns how many were
// removed. It is not atomic: a session created concurrently may survive.
func RunLogoutAll(ctx context.Context, userID int64, deps LogoutDeps) (int, error) {
	recs, err := deps.Store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range recs {
		if err := deps.Store.Delete(ctx, rec.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
