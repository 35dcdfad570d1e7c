package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the client.
var (
	ErrNotFound         = errors.New("not found")
	ErrNoToken          = errors.New("no stored token")
	ErrSignInInProgress = errors.New("sign-in already in progress")
	ErrNoIdentityToken  = errors.New("identity provider returned no token")
)

// APIErrorKind classifies catalog and auth backend failures.
type APIErrorKind int

const (
	APIErrInvalidURL APIErrorKind = iota
	APIErrInvalidResponse
	APIErrDecode
	APIErrServer
	APIErrUnauthorized
	APIErrNetwork
)

// APIError is the explicit failure result of a backend call. StatusCode is
// set for APIErrServer and APIErrUnauthorized; Err carries the underlying
// cause for decode and network failures.
type APIError struct {
	Kind       APIErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case APIErrInvalidURL:
		return "invalid URL"
	case APIErrInvalidResponse:
		return "invalid response from server"
	case APIErrDecode:
		return fmt.Sprintf("failed to decode response: %v", e.Err)
	case APIErrServer:
		return fmt.Sprintf("server error with status code %d", e.StatusCode)
	case APIErrUnauthorized:
		return "unauthorized access"
	case APIErrNetwork:
		return fmt.Sprintf("network connection error: %v", e.Err)
	}
	return "unknown error"
}

func (e *APIError) Unwrap() error { return e.Err }

// IsAPIError reports whether err is an APIError of the given kind.
func IsAPIError(err error, kind APIErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// StorageError wraps a failure of the local preference store. Callers treat
// it as non-fatal: log a warning and proceed as if the value were absent.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("token storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
