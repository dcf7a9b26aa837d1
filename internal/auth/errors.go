package auth

import "errors"

// Common token errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token has expired")

	// ErrWrongScope indicates a valid token that does not grant the requested access
	ErrWrongScope = errors.New("token has wrong scope")
)
