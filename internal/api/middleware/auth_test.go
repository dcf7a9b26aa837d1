package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/uploadq/internal/api/shared"
	"github.com/phrazzld/uploadq/internal/auth"
	"github.com/stretchr/testify/assert"
)

// stubValidator returns a canned result for a single known token
type stubValidator struct {
	claims *auth.Claims
	err    error
	scope  string
}

func (v *stubValidator) Validate(tokenString, scope string) (*auth.Claims, error) {
	v.scope = scope
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		validatorErr   error
		expectedStatus int
		expectNext     bool
	}{
		{name: "valid token", authHeader: "Bearer good", expectedStatus: http.StatusOK, expectNext: true},
		{name: "missing header", authHeader: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong scheme", authHeader: "Basic dXNlcjpwYXNz", expectedStatus: http.StatusUnauthorized},
		{name: "empty token", authHeader: "Bearer ", expectedStatus: http.StatusUnauthorized},
		{name: "expired", authHeader: "Bearer old", validatorErr: auth.ErrExpiredToken, expectedStatus: http.StatusUnauthorized},
		{name: "invalid", authHeader: "Bearer bad", validatorErr: auth.ErrInvalidToken, expectedStatus: http.StatusUnauthorized},
		{name: "wrong scope", authHeader: "Bearer upload", validatorErr: auth.ErrWrongScope, expectedStatus: http.StatusForbidden},
		{name: "unexpected error", authHeader: "Bearer x", validatorErr: errors.New("boom"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := &stubValidator{claims: &auth.Claims{ID: "jti-1", Scope: auth.ControlScope}, err: tt.validatorErr}
			middleware := NewAuthMiddleware(validator, auth.ControlScope)

			var (
				called  bool
				tokenID string
			)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				tokenID, _ = shared.GetTokenID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/uploads", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			middleware.Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectNext, called)
			if tt.expectNext {
				assert.Equal(t, "jti-1", tokenID)
				assert.Equal(t, auth.ControlScope, validator.scope)
			}
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	var traceID string
	handler := NewTraceMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = shared.GetTraceID(r.Context())
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, traceID)
}
