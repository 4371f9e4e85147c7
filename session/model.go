package session

import "time"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// Token is one login session.
//
// A record is mutated in place on rotation (same ID, new Token,
// RefreshToken and expiries) and deleted when a refresh is attempted after
// RefreshExpirationDate.
type Token struct {
	ID                    string
	UserID                int64
	Token                 string
	RefreshToken          string
	TokenType             string
	ExpirationDate        time.Time
	RefreshExpirationDate time.Time
	Revoked               bool
	Expired               bool
	CreatedAt             time.Time
}

// Rotation carries the replacement values installed by [Store.Rotate].
type Rotation struct {
	Token                 string
	RefreshToken          string
	ExpirationDate        time.Time
	RefreshExpirationDate time.Time
}

// RefreshExpired reports whether the refresh window closed before now.
func (t *Token) RefreshExpired(now time.Time) bool {
	return t.RefreshExpirationDate.Before(now)
}

// AccessExpired reports whether the bearer token expired before now.
func (t *Token) AccessExpired(now time.Time) bool {
	return t.ExpirationDate.Before(now)
}

// Clone returns a copy safe to hand to callers.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Apply installs r into a copy of t.
func (t *Token) Apply(r Rotation) *Token {
	c := t.Clone()
	c.Token = r.Token
	c.RefreshToken = r.RefreshToken
	c.ExpirationDate = r.ExpirationDate
	c.RefreshExpirationDate = r.RefreshExpirationDate
	return c
}
