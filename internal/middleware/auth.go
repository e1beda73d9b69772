package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
)

// TokenValidator verifies an access token and returns the user id it belongs to.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return authenticate(validator, true)
}

// OptionalAuth attaches the caller's identity when a valid bearer token is present
// and serves anonymous requests otherwise. A malformed or invalid token is still rejected.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return authenticate(validator, false)
}

func authenticate(validator TokenValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					unauthorized(w, "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logging.FromContext(r.Context()).Warn("invalid authorization header format")
				unauthorized(w, "invalid authorization header")
				return
			}

			userID, err := validator.Validate(strings.TrimSpace(token))
			if err != nil {
				logging.FromContext(r.Context()).Warn("invalid access token", "error", err)
				unauthorized(w, "invalid access token")
				return
			}

			ctx := auth.WithUserID(r.Context(), userID)
			ctx = logging.With(ctx, "user_id", userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
