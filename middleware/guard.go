package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/deskauth"
)

// Authenticator is the subset of *deskauth.Engine the guards need.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (deskauth.IdentityClaims, error)
	Authorize(claims deskauth.IdentityClaims, required ...string) bool
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (deskauth.IdentityClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(deskauth.IdentityClaims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims deskauth.IdentityClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Authenticate rejects requests without a valid access token with 401.
// The token is read from the Authorization header, then from cookieName
// when it is non-empty.
func Authenticate(auth Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := RequestToken(r, cookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Guard authenticates and then requires one of roles. With no roles it only
// authenticates.
func Guard(auth Authenticator, cookieName string, roles ...string) func(http.Handler) http.Handler {
	authn := Authenticate(auth, cookieName)
	authz := RequireRoles(auth, roles...)
	return func(next http.Handler) http.Handler {
		return authn(authz(next))
	}
}

// RequestToken extracts the access token from the Authorization header or
// the named cookie.
func RequestToken(r *http.Request, cookieName string) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
