package middleware

import (
	"context"
	"net/http"

	shopcore "github.com/MrEthical07/shopcore"
)

// RequireJWTOnly accepts any correctly signed, unexpired token without
// consulting the session store. A revoked or rotated token keeps passing
// until it expires.
func RequireJWTOnly(engine *shopcore.Engine) func(http.Handler) http.Handler {
	return guard(func(_ context.Context, token string) (*shopcore.AuthResult, error) {
		claims, err := engine.Verify(token)
		if err != nil {
			return nil, err
		}
		return &shopcore.AuthResult{
			UserID:  claims.UserID,
			Subject: claims.Subject,
			Roles:   claims.Roles,
		}, nil
	}, engine)
}
