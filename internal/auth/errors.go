package auth

import "errors"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidUser        = errors.New("invalid username or password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingSecret      = errors.New("jwt secret is not configured")
)
