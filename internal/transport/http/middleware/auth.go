package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-alumni-api/internal/domain"
	jwtinfra "github.com/go-alumni-api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// TokenVerifier is satisfied by *jwtinfra.Provider.
type TokenVerifier interface {
	Verify(token string, want jwtinfra.TokenType) (*jwtinfra.Claims, error)
}

// Auth returns middleware that requires a Bearer access token and injects its
// claims into the request context. Refresh tokens are rejected.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header", domain.KindUnauthorized)
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "), jwtinfra.AccessToken)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token", domain.KindUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
