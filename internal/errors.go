package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StorageError represents errors accessing the local key/value store
type StorageError struct {
	Key string
	Op  string // "open", "get", "set", "delete"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing data received from the backend
type ParseError struct {
	Source string // "websocket", "rest", "storage"
	Key    string // message type, endpoint or storage key
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents a failed REST call. Status is zero when the request
// never produced a response (network failure or timeout).
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api error: %s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("api error: %s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("api error: %s %s: %d", e.Method, e.Path, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was abandoned because its deadline passed.
func (e *APIError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Conflict reports a 409 response.
func (e *APIError) Conflict() bool {
	return e.Status == http.StatusConflict
}

// ValidationError represents user input rejected before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
