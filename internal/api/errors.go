package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/uploadq/internal/api/shared"
	"github.com/phrazzld/uploadq/internal/auth"
	"github.com/phrazzld/uploadq/internal/history"
)

// ErrInvalidTaskID is returned when a task id path parameter is not a
// positive integer.
var ErrInvalidTaskID = errors.New("invalid task id")

// ErrInvalidLimit is returned when the limit query parameter is out of range.
var ErrInvalidLimit = errors.New("invalid limit")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrWrongScope):
		return http.StatusForbidden

	case errors.Is(err, ErrInvalidTaskID),
		errors.Is(err, ErrInvalidLimit),
		errors.Is(err, history.ErrInvalidRecord),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, history.ErrDuplicate):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrWrongScope):
		return "Token does not grant access"

	case errors.Is(err, ErrInvalidTaskID):
		return "Invalid task id"

	case errors.Is(err, ErrInvalidLimit):
		return "Invalid limit"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)

	case errors.Is(err, history.ErrDuplicate):
		return "Record already exists"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError describes the first failed field of a validator
// error without echoing the rejected value.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field())
	return "Invalid " + field + ": " + validationTagMessage(fe.Tag())
}

// validationTagMessage maps validation tags to user-friendly messages
func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}

// HandleAPIError responds with the status and safe message for err. A
// non-empty message overrides the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}
