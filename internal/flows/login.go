package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LoginFailureKind classifies login failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureLookup
	LoginFailureInvalidCredentials
	LoginFailureDisabled
	LoginFailureSign
	LoginFailureSession
)

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	UserID       int64
	Subject      string
	PhoneNumber  string
	PasswordHash string
	Roles        []string
	Active       bool
}

type LoginUserProvider interface {
	GetByPhoneNumber(ctx context.Context, phone string) (*LoginUserRecord, error)
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Now            func() time.Time
	Users          LoginUserProvider
	UserNotFound   error
	VerifyPassword func(plain, encoded string) (bool, error)
	Sign           func(user *LoginUserRecord, issuedAt time.Time) (string, error)
	AddToken       AddTokenDeps
}

// LoginResult carries the created session or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    *LoginUserRecord
	Session AddTokenResult
}

// RunLogin authenticates by phone number and password, then opens a session.
// Unknown users and wrong passwords share one failure kind.
func RunLogin(ctx context.Context, phone, password string, deps LoginDeps) LoginResult {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return LoginResult{Failure: LoginFailureInvalidInput}
	}

	user, err := deps.Users.GetByPhoneNumber(ctx, phone)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}
	if user == nil {
		return LoginResult{Failure: LoginFailureInvalidCredentials}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, User: user}
	}
	if !user.Active {
		return LoginResult{Failure: LoginFailureDisabled, User: user}
	}

	now := deps.Now()
	token, err := deps.Sign(user, now)
	if err != nil {
		return LoginResult{Failure: LoginFailureSign, Err: err, User: user}
	}

	created := RunAddToken(ctx, user.UserID, token, now, deps.AddToken)
	if created.Failure != AddTokenFailureNone {
		return LoginResult{Failure: LoginFailureSession, Err: created.Err, User: user, Session: created}
	}
	return LoginResult{User: user, Session: created}
}
