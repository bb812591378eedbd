package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/husnainisworking/personal-blog/internal/application/twofactor"
	"github.com/husnainisworking/personal-blog/internal/domain"
	"github.com/rs/zerolog"
)

// VerifyPath is where a gated client is sent to submit its code.
const VerifyPath = "/v1/two-factor/verify"

type Guard interface {
	Guard(ctx context.Context, sub domain.Subject) (twofactor.GuardDecision, error)
}

// TwoFactorGuard blocks sessions with an outstanding verification code.
// It must run after Auth.
func TwoFactorGuard(g Guard, log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub, ok := SubjectFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			decision, err := g.Guard(r.Context(), sub)
			if err != nil {
				log.Error().Err(err).Str("user_id", sub.UserID).Msg("two-factor guard failed")
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			switch decision {
			case twofactor.Pass:
				next.ServeHTTP(w, r)
			case twofactor.RedirectToVerify:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":    "two-factor verification required",
					"redirect": VerifyPath,
				})
			case twofactor.ForceLogout:
				writeJSONError(w, http.StatusUnauthorized, "verification code expired")
			default:
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}
		})
	}
}
