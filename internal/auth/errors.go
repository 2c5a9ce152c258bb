package auth

import "errors"

var (
	// ErrTokenInvalid is returned for tokens that fail signature, expiry or
	// claim checks.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrInvalidRole is returned for role names outside ValidRoles.
	ErrInvalidRole = errors.New("auth: invalid role")

	// ErrSecretTooShort is returned when signing with a secret under
	// MinSecretLength bytes.
	ErrSecretTooShort = errors.New("auth: secret too short")
)
