package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a token failed signature, expiry or purpose checks.
	ErrInvalidToken = errors.New("invalid token")
)
