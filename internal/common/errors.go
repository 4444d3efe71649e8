// Package common defines shared constants and sentinel errors used across
// the account server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorForbidden  = errors.New("forbidden")
	ErrorValidation = errors.New("validation error")

	// Authentication outcomes. ErrInvalidCredentials covers unknown identity,
	// inactive account and wrong secret alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Password reset. One error for wrong, expired and already used tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Password policy errors.
	ErrPasswordPolicy = errors.New("password policy violation")
	ErrPasswordReuse  = errors.New("new password must differ from the current one")

	// Session token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrConfigurationFatal prevents startup; it is never returned per request.
	ErrConfigurationFatal = errors.New("fatal configuration error")

	// ErrDependencyFailure means the store or the message dispatcher failed.
	ErrDependencyFailure = errors.New("dependency failure")
)
