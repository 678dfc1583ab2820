package auth

import (
	"errors"
	"maps"
	"slices"
)

var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError carries the request fields that failed validation, keyed by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := slices.Sorted(maps.Keys(e.Fields))
	if len(names) == 0 {
		return "validation failed"
	}
	return "validation failed: " + names[0] + ": " + e.Fields[names[0]]
}
