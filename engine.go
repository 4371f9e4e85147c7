package shopcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/shopcore/catalog"
	internalaudit "github.com/MrEthical07/shopcore/internal/audit"
	"github.com/MrEthical07/shopcore/internal/flows"
	"github.com/MrEthical07/shopcore/internal/rate"
	"github.com/MrEthical07/shopcore/jwt"
	"github.com/MrEthical07/shopcore/password"
	"github.com/MrEthical07/shopcore/session"
)

// Engine issues and rotates session credentials and serves the cached
// product catalog. It is safe for concurrent use once built.
type Engine struct {
	config        Config
	now           func() time.Time
	logger        *log.Logger
	sessionStore  session.Store
	jwtManager    *jwt.Manager
	passwordHash  *password.Argon2
	identities    IdentityProvider
	throttle      *rate.Limiter
	catalog       *catalog.Coordinator
	catalogSource CatalogSource
	catalogWriter *catalog.InvalidatingWriter
	trigger       *catalog.Trigger
	flows         flows.Deps
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
}

// Close flushes pending audit events. The engine does not own the Redis
// client or database and leaves them open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(format string, args ...any) {
	e.logger.Printf(format, args...)
}

func (e *Engine) ready() bool {
	return e != nil && e.sessionStore != nil && e.jwtManager != nil
}

func toJWTIdentity(id Identity) jwt.Identity {
	return jwt.Identity{UserID: id.UserID, Subject: id.Subject, Roles: id.Roles}
}

// IssueToken signs a bearer token for id at the engine clock's current
// time.
func (e *Engine) IssueToken(id Identity) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	token, _, err := e.jwtManager.Sign(toJWTIdentity(id))
	return token, err
}

// AddToken persists a new session for id holding token. Both expiries are
// computed from one instant: ExpirationDate = now + AccessTTL and
// RefreshExpirationDate = now + RefreshTTL.
func (e *Engine) AddToken(ctx context.Context, id Identity, token string) (*SessionToken, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if id.UserID == 0 || token == "" {
		return nil, ErrInvalidInput
	}

	res := flows.RunAddToken(ctx, id.UserID, token, e.now(), e.flows.AddToken)
	if res.Failure != flows.AddTokenFailureNone {
		e.emitAudit(ctx, auditEventSessionCreated, false, id.UserID, "", res.Err, nil)
		return nil, res.Err
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, id.UserID, res.Token.ID, nil, nil)
	return res.Token, nil
}

// RefreshToken rotates the session holding refreshToken. The session must
// belong to id; a new bearer token is signed for id.
//
// Failures: ErrNotFound for unknown or foreign refresh tokens, ErrRevoked
// for revoked sessions, ErrExpired (after deleting the session) when the
// refresh window has closed, ErrConflict when a concurrent refresh of the
// same token won.
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string, id Identity) (*SessionToken, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" || id.UserID == 0 {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	res := flows.RunRefresh(ctx, flows.RefreshRequest{
		RefreshToken: refreshToken,
		UserID:       id.UserID,
		Sign: func(issuedAt time.Time) (string, error) {
			return e.jwtManager.SignAt(toJWTIdentity(id), issuedAt)
		},
	}, e.flows.Refresh)
	e.metrics.Observe(MetricRefreshLatency, time.Since(start))

	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
		return res.Token, nil
	}

	err := refreshFailureError(res)
	e.metricInc(MetricRefreshFailure)
	switch res.Failure {
	case flows.RefreshFailureConflict:
		e.metricInc(MetricRefreshConflict)
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshExpired)
	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshRevoked)
	}
	e.emitAudit(ctx, auditEventRefreshFailure, false, res.UserID, res.SessionID, err, func() map[string]string {
		return map[string]string{"reason": refreshFailureReason(res.Failure)}
	})
	return nil, err
}

func refreshFailureError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureNotFound:
		return ErrNotFound
	case flows.RefreshFailureRevoked:
		return ErrRevoked
	case flows.RefreshFailureExpired:
		return ErrExpired
	case flows.RefreshFailureConflict:
		return ErrConflict
	case flows.RefreshFailureNextSecret:
		return fmt.Errorf("refresh token generation: %w", res.Err)
	case flows.RefreshFailureSign:
		return fmt.Errorf("sign bearer token: %w", res.Err)
	default:
		if res.Err == nil {
			return ErrUnavailable
		}
		return res.Err
	}
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureNotFound:
		return "not_found"
	case flows.RefreshFailureRevoked:
		return "revoked"
	case flows.RefreshFailureExpired:
		return "expired"
	case flows.RefreshFailureConflict:
		return "conflict"
	case flows.RefreshFailureNextSecret:
		return "next_secret"
	case flows.RefreshFailureSign:
		return "sign"
	default:
		return "store"
	}
}

// Verify checks a bearer token's signature and expiry without consulting
// the session store.
func (e *Engine) Verify(token string) (*jwt.Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.Verify(token)
}

// ExtractSubject returns the subject of a correctly signed token even if
// it has expired.
func (e *Engine) ExtractSubject(token string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.ExtractSubject(token)
}

// Authenticate verifies token and requires a live, unrevoked session
// holding it. A token replaced by a refresh no longer authenticates.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.Verify(token)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, err
	}
	rec, err := e.sessionStore.GetByToken(ctx, token)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return nil, err
	}
	if rec.Revoked {
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrRevoked
	}
	if rec.UserID != claims.UserID {
		e.metricInc(MetricAuthenticateFailure)
		return nil, ErrUnauthorized
	}
	return &AuthResult{
		UserID:    claims.UserID,
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		SessionID: rec.ID,
	}, nil
}

// Revoke marks session id revoked. Its refresh token can no longer rotate
// and its bearer token no longer authenticates.
func (e *Engine) Revoke(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.sessionStore.Revoke(ctx, sessionID); err != nil {
		e.emitAudit(ctx, auditEventSessionRevoked, false, 0, sessionID, err, nil)
		return err
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, 0, sessionID, nil, nil)
	return nil
}

// Login authenticates by phone number and password and opens a session.
// Unknown numbers and wrong passwords both return ErrInvalidCredentials.
// With throttling configured, a number (or client address) that keeps
// failing gets ErrRateLimited until its cooldown passes.
func (e *Engine) Login(ctx context.Context, phone, plainPassword string) (*SessionToken, error) {
	if !e.ready() || e.identities == nil {
		return nil, ErrEngineNotReady
	}

	phone = strings.TrimSpace(phone)
	ip := clientIPFromContext(ctx)
	if e.throttle != nil && phone != "" {
		if err := e.throttle.CheckLogin(ctx, phone, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginThrottled)
				e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", ErrRateLimited, nil)
				return nil, ErrRateLimited
			}
			e.warn("shopcore: login throttle check: %v", err)
		}
	}

	res := flows.RunLogin(ctx, phone, plainPassword, e.flows.Login)
	var userID int64
	if res.User != nil {
		userID = res.User.UserID
	}

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		if e.throttle != nil {
			if err := e.throttle.ResetLogin(ctx, phone); err != nil {
				e.warn("shopcore: login throttle reset: %v", err)
			}
		}
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventLoginSuccess, true, userID, res.Session.Token.ID, nil, nil)
		return res.Session.Token, nil
	case flows.LoginFailureInvalidInput:
		err = ErrInvalidInput
	case flows.LoginFailureInvalidCredentials:
		err = ErrInvalidCredentials
	case flows.LoginFailureDisabled:
		err = ErrAccountDisabled
	case flows.LoginFailureLookup:
		err = fmt.Errorf("identity lookup: %w", res.Err)
	default:
		err = res.Err
		if err == nil {
			err = errors.New("login failed")
		}
	}
	if e.throttle != nil && errors.Is(err, ErrInvalidCredentials) {
		if terr := e.throttle.IncrementLogin(ctx, phone, ip); terr != nil && !errors.Is(terr, rate.ErrRateLimited) {
			e.warn("shopcore: login throttle increment: %v", terr)
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, nil)
	return nil, err
}

// Logout deletes the session holding bearer token.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	sessionID, err := flows.RunLogoutByToken(ctx, token, e.flows.Logout)
	if err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, 0, sessionID, nil, nil)
	return nil
}

// LogoutAll deletes every session of userID and reports how many went.
func (e *Engine) LogoutAll(ctx context.Context, userID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", err, nil)
		return n, err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": strconv.Itoa(n)}
	})
	return n, nil
}

// HashPassword encodes plain with the configured Argon2id parameters, for
// IdentityProvider implementations that store new credentials.
func (e *Engine) HashPassword(plain string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plain)
}
