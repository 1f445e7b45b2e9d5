package auth

import (
	"errors"

	"github.com/ayush/auth-gateway/internal/validator"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("username or email already exists")
	ErrNotFound             = errors.New("user not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidIdentityToken = errors.New("invalid google identity token")
	// ErrAccountLink is returned when a Google identity matches an account
	// by email that it is not linked to.
	ErrAccountLink = errors.New("account exists but is not linked to this google identity")
)

// ValidationError carries the user-facing message for a rejected request
// along with the per-field details.
type ValidationError struct {
	Message string
	Fields  validator.ValidationErrors
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(message string, fields validator.ValidationErrors) error {
	return &ValidationError{Message: message, Fields: fields}
}
