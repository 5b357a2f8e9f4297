package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/models"
	"github.com/overlax/overlax/internal/request"
)

// TokenVerifier checks a bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.TokenClaims, error)
}

// Auth creates authentication middleware that rejects requests without a valid Firebase ID token
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, true)
}

// OptionalAuth attaches the user when a valid token is present and lets anonymous requests through.
// An invalid token is still rejected.
func OptionalAuth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(verifier, logger, false)
}

func authenticate(verifier TokenVerifier, logger *zap.Logger, required bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if required {
					respondError(w, http.StatusUnauthorized, "Missing Authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				logger.Debug("token_verification_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user := &models.User{
				UID:           claims.Sub,
				Email:         claims.Email,
				Name:          claims.Name,
				EmailVerified: claims.EmailVerified,
			}
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     http.StatusText(status),
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	_ = json.NewEncoder(w).Encode(response)
}
