// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Recoverable, per-event or per-namespace.
	CodeMalformedEvent     = "MALFORMED_EVENT"
	CodeCatalogUnavailable = "CATALOG_UNAVAILABLE"

	// Fatal at startup.
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"

	// Configuration and internal errors.
	CodeValidation = "VALIDATION_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeInternal   = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// MalformedEvent creates a per-event parse error. Events carrying this error
// are skipped and counted, never fatal.
func MalformedEvent(message string) *AppError {
	return New(CodeMalformedEvent, message)
}

// CatalogUnavailable creates a per-namespace index fetch error. The namespace
// degrades to always-unmatched for the rest of the run.
func CatalogUnavailable(ns string, err error) *AppError {
	return Wrap(CodeCatalogUnavailable, "index catalog unavailable", err).WithDetail("namespace", ns)
}

// SourceUnavailable creates a fatal event source error.
func SourceUnavailable(message string, err error) *AppError {
	return Wrap(CodeSourceUnavailable, message, err)
}

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// TimeoutError creates a timeout error for a specific operation.
func TimeoutError(operation string) *AppError {
	message := "operation timed out"
	if operation != "" {
		message = fmt.Sprintf("%s timed out", operation)
	}
	return New(CodeTimeout, message)
}

// codeOf extracts the AppError code from anywhere in the error chain.
func codeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsMalformedEvent checks if error is a malformed event error.
func IsMalformedEvent(err error) bool {
	return codeOf(err) == CodeMalformedEvent
}

// IsCatalogUnavailable checks if error is a catalog fetch error.
func IsCatalogUnavailable(err error) bool {
	return codeOf(err) == CodeCatalogUnavailable
}

// IsSourceUnavailable checks if error is a fatal source error.
func IsSourceUnavailable(err error) bool {
	return codeOf(err) == CodeSourceUnavailable
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return codeOf(err) == CodeValidation
}
