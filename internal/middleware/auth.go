package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "filer-api/internal/errors"
	"filer-api/internal/models"
)

const userKey contextKey = "user"

// UserLookup resolves API keys to users.
type UserLookup interface {
	GetUserByAPIKey(ctx context.Context, key string) (*models.User, error)
}

// Authenticate resolves the X-API-Key header to a user and stores it in the
// request context. Requests without a key continue as the anonymous user,
// which every permission check denies. Unknown keys are rejected.
func Authenticate(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := lookupUser(r.Context(), users, key)
			if err != nil {
				if errors.Is(err, apperrors.ErrUnauthorized) {
					http.Error(w, "Unauthorized: invalid API key", http.StatusUnauthorized)
					return
				}
				log.Error().Err(err).Str("component", "auth").Msg("Failed to look up API key")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Unknown keys are reported as ErrUnauthorized.
func lookupUser(ctx context.Context, users UserLookup, key string) (*models.User, error) {
	user, err := users.GetUserByAPIKey(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	return user, err
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or the anonymous user.
func UserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userKey).(*models.User); ok && user != nil {
		return user
	}
	return models.AnonymousUser
}
