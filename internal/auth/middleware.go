package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
)

type contextKey struct{}

var identityKey contextKey

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated identity from a context.
func IdentityFromContext(ctx context.Context) (*Identity, error) {
	id, ok := ctx.Value(identityKey).(*Identity)
	if !ok || id == nil {
		return nil, ErrNoIdentity
	}
	return id, nil
}

// UserLoader resolves a verified token subject to a stored user.
// It allows the middleware to reject tokens for deleted or deactivated
// accounts without the auth package depending on the service layer.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Middleware creates an HTTP middleware that requires a valid bearer token.
// On success the request context carries an Identity for the active user.
func Middleware(tokens *TokenService, users UserLoader, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := BearerToken(r)
			if err != nil {
				unauthorized(w, "Not authorized, no token")
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("token verification failed")
				unauthorized(w, "Not authorized, token failed")
				return
			}

			user, err := users.GetByID(r.Context(), identity.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					unauthorized(w, "Not authorized, token failed")
					return
				}
				log.Error().Err(err).Int64("user_id", identity.UserID).Msg("failed to load token user")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if !user.CanAuthenticate() {
				log.Debug().Int64("user_id", user.ID).Msg("inactive user presented valid token")
				unauthorized(w, "Not authorized, token failed")
				return
			}

			identity.Username = user.Username
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="trove"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
