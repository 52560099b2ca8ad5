package domain

import "errors"

// Caller-facing errors. Every authentication failure collapses into
// ErrAuthentication so callers cannot tell which check failed.
var (
	ErrAuthentication = errors.New("invalid credentials")
	ErrInvalidToken   = errors.New("invalid token")
	ErrForbidden      = errors.New("access forbidden")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrValidation     = errors.New("validation failed")
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrPrincipalExists   = errors.New("principal already exists")
	ErrBootstrapClosed   = errors.New("bootstrap not available")
)

// Ledger errors. ErrRefreshTokenRevoked is returned by a rotation that found
// the presented token already revoked, i.e. it lost a race or was replayed.
var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token already revoked")
)
