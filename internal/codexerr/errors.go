// Package codexerr defines the classified error taxonomy shared across the
// resolution, cache and sync engines. Every error surfaced to a caller is a
// *Error carrying a stable Code so callers can branch with errors.Is against
// the sentinels below instead of parsing message strings.
package codexerr

import (
	"errors"
	"fmt"
)

// Code is a stable discriminator for a classified failure.
type Code string

// The error taxonomy surfaced at the library boundary.
const (
	CodeInvalidURI       Code = "InvalidUri"
	CodeInvalidPath      Code = "InvalidPath"
	CodeNotFound         Code = "NotFound"
	CodeUnauthorized     Code = "Unauthorized"
	CodeTransport        Code = "Transport"
	CodeContentTooLarge  Code = "ContentTooLarge"
	CodeNoProvider       Code = "NoProvider"
	CodeCacheCorruption  Code = "CacheCorruption"
	CodeSyncConflict     Code = "SyncConflict"
	CodeSyncInProgress   Code = "SyncInProgress"
	CodeConfigInvalid    Code = "ConfigInvalid"
)

// Error is the classified error type returned across package boundaries.
// Cause, when present, is preserved for errors.Unwrap so callers can still
// inspect the underlying transport/filesystem error if they need to.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, codexerr.New(CodeNotFound, "")) to match on Code
// alone, ignoring Message/Cause, which is how callers are expected to probe
// the taxonomy.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New builds a classified error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel, code-only values for errors.Is comparisons, e.g.
// errors.Is(err, codexerr.ErrNotFound).
var (
	ErrInvalidURI      = &Error{Code: CodeInvalidURI}
	ErrInvalidPath     = &Error{Code: CodeInvalidPath}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrUnauthorized    = &Error{Code: CodeUnauthorized}
	ErrTransport       = &Error{Code: CodeTransport}
	ErrContentTooLarge = &Error{Code: CodeContentTooLarge}
	ErrNoProvider      = &Error{Code: CodeNoProvider}
	ErrCacheCorruption = &Error{Code: CodeCacheCorruption}
	ErrSyncConflict    = &Error{Code: CodeSyncConflict}
	ErrSyncInProgress  = &Error{Code: CodeSyncInProgress}
	ErrConfigInvalid   = &Error{Code: CodeConfigInvalid}
)

// CodeOf extracts the Code from err if it is (or wraps) a *Error, and the
// zero Code otherwise. Useful for logging/telemetry fields.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRecoverable reports whether the storage manager should fall through to
// the next provider on this error: NotFound and Transport are recoverable,
// everything else fails fast.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeTransport:
		return true
	default:
		return false
	}
}
