package usecases

import (
	"errors"

	"energy-server/auth"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	ErrTokenExpired = auth.ErrTokenExpired
	ErrTokenInvalid = auth.ErrTokenInvalid
)

// ValidationError aggregates field level problems with an input.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return ErrValidation.Error()
	}
	if len(v.FieldErrors) == 1 {
		for _, msg := range v.FieldErrors {
			return msg
		}
	}
	return ErrValidation.Error()
}

func (v *ValidationError) Unwrap() error { return ErrValidation }

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// orNil returns nil when nothing was recorded so callers can return it directly.
func (v *ValidationError) orNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

func validationErr(field, message string) error {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
