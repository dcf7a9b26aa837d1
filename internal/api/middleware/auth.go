package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/phrazzld/uploadq/internal/api/shared"
	"github.com/phrazzld/uploadq/internal/auth"
)

// TokenValidator checks a bearer token for a scope
type TokenValidator interface {
	Validate(tokenString, scope string) (*auth.Claims, error)
}

// AuthMiddleware provides bearer token authentication for routes.
type AuthMiddleware struct {
	validator TokenValidator
	scope     string
}

// NewAuthMiddleware creates an AuthMiddleware accepting tokens with scope.
func NewAuthMiddleware(validator TokenValidator, scope string) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		scope:     scope,
	}
}

// Authenticate validates the token in the Authorization header and records
// its id in the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" || strings.Contains(token, " ") {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.validator.Validate(token, m.scope)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Token expired", err)
			case errors.Is(err, auth.ErrWrongScope):
				shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Token does not grant access",
					err, shared.WithElevatedLogLevel())
			case errors.Is(err, auth.ErrInvalidToken):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token",
					err, shared.WithElevatedLogLevel())
			default:
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Authentication error", err)
			}
			return
		}

		ctx := shared.SetTokenID(r.Context(), claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
