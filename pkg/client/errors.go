package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession is returned by Restore when nothing was saved.
	ErrNoSession = errors.New("no saved session")
	// ErrSessionExpired is returned when the saved token is past its expiry or the server rejected it.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrCorruptSession is returned when the saved session cannot be decoded.
	ErrCorruptSession = errors.New("saved session is unreadable")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int               `json:"-"`
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("smartpay: http %d", e.Status)
	}
	return e.Detail
}

// IsUnauthorized reports whether err means the session is no longer valid.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// HasCode reports whether err is an APIError carrying code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
