package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/husnainisworking/personal-blog/internal/domain"
	jwtinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/jwt"
)

type contextKey string

const (
	ClaimsKey  contextKey = "claims"
	SessionKey contextKey = "session"
)

type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth validates the Bearer JWT and injects its claims into the context.
// When sessions is set, the token's session must still be enabled; a
// terminated session invalidates every token issued for it.
func Auth(provider TokenVerifier, sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := provider.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			if sessions != nil {
				sess, err := sessions.Get(r.Context(), claims.SessionID)
				switch {
				case errors.Is(err, domain.ErrNotFound):
					writeJSONError(w, http.StatusUnauthorized, "session expired")
					return
				case err != nil:
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				case !sess.Enable:
					writeJSONError(w, http.StatusUnauthorized, "session expired")
					return
				}
				ctx = context.WithValue(ctx, SessionKey, sess)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}

// SubjectFromContext returns the authenticated user and session. Verified is
// only set when Auth loaded the session.
func SubjectFromContext(ctx context.Context) (domain.Subject, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return domain.Subject{}, false
	}
	sub := domain.Subject{UserID: c.UserID, SessionID: c.SessionID}
	if sess, ok := ctx.Value(SessionKey).(*domain.Session); ok && sess.SessionID == c.SessionID {
		sub.Verified = sess.TwoFactorVerified
	}
	return sub, true
}
