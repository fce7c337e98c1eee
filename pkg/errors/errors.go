// Package errors provides the structured error taxonomy of the bundling service.
//
// Every failure that can reach a caller carries a machine-readable [Code]. The
// code decides three things:
//   - the HTTP status returned to the caller ([HTTPStatus])
//   - whether the failure is expected and must not be alert-reported ([Expected])
//   - how a failed build is rehydrated from the status store ([Rehydrate])
//
// # Error Codes
//
//   - INVALID_REQUEST, CORE_MODULE: malformed or prohibited requests (400)
//   - PACKAGE_NOT_FOUND, VERSION_NOT_FOUND, INVALID_VERSION: registry lookups (404)
//   - UNBUNDLEABLE_PACKAGE: the healing loop proved an import unresolvable (422)
//   - NETWORK_ERROR, TIMEOUT, BUILD_FAILED, TOO_MANY_CYCLES, INTERNAL_ERROR: 500
//
// # Usage
//
//	err := errors.New(errors.ErrCodePackageNotFound, "package %s not found", name)
//	if errors.Is(err, errors.ErrCodePackageNotFound) {
//	    // 404
//	}
//
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Request errors
	ErrCodeInvalidRequest Code = "INVALID_REQUEST"
	ErrCodeCoreModule     Code = "CORE_MODULE"

	// Registry lookups
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeVersionNotFound Code = "VERSION_NOT_FOUND"
	ErrCodeInvalidVersion  Code = "INVALID_VERSION"

	// Build errors
	ErrCodeUnbundleable  Code = "UNBUNDLEABLE_PACKAGE"
	ErrCodeBuildFailed   Code = "BUILD_FAILED"
	ErrCodeTooManyCycles Code = "TOO_MANY_CYCLES"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// The outermost *Error in the chain decides.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message (and cause) without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code returned by the bundle endpoint.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidRequest, ErrCodeCoreModule:
		return http.StatusBadRequest
	case ErrCodePackageNotFound, ErrCodeVersionNotFound, ErrCodeInvalidVersion:
		return http.StatusNotFound
	case ErrCodeUnbundleable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether err is a user-caused failure. Expected failures are
// frequent and are never alert-reported.
func Expected(err error) bool {
	return err != nil && HTTPStatus(err) != http.StatusInternalServerError
}

// Rehydrate rebuilds an error from a persisted message and code. Unknown or
// empty codes become ErrCodeInternal.
func Rehydrate(code Code, message string) *Error {
	if code == "" {
		code = ErrCodeInternal
	}
	return &Error{Code: code, Message: message}
}
