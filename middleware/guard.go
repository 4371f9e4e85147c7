package middleware

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"

	shopcore "github.com/MrEthical07/shopcore"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity a guard attached to ctx.
func AuthResultFromContext(ctx context.Context) (*shopcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*shopcore.AuthResult)
	return res, ok
}

// Guard rejects requests whose bearer token does not belong to a live
// session.
func Guard(engine *shopcore.Engine) func(http.Handler) http.Handler {
	return guard(func(ctx context.Context, token string) (*shopcore.AuthResult, error) {
		return engine.Authenticate(ctx, token)
	}, engine)
}

func guard(check func(context.Context, string) (*shopcore.AuthResult, error), engine *shopcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := check(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits requests whose guarded identity carries role. It must
// run behind Guard or RequireJWTOnly; without an identity it answers 401,
// and with one lacking the role 403.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok || res == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(res.Roles, role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP stores the remote host of each request with shopcore.WithClientIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(shopcore.WithClientIP(r.Context(), host)))
	})
}
