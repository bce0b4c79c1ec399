package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTwoFactorRequired    = errors.New("two-factor verification required")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrNoSession            = errors.New("no active session")
)
