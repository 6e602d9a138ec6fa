// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories that map onto the pipeline's
// failure policies:
//   - General errors (1-99)
//   - Data errors (100-199): missing columns, bad timestamps, non-positive prices, nulls
//   - Configuration errors (200-299): unknown class names, missing parameters, bad config
//   - Optimiser errors (300-399): failed or skipped trials
//   - I/O errors (400-499): failed artefact reads and writes
//   - Market data errors (500-599): broker fetch and stream failures
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeUnknownClass, "unknown condition %q", name)
//	err := errors.Wrap(errors.ErrCodeIOFailed, "failed to write page", cause)
//	if errors.CategoryOf(err) == errors.CategoryData { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is errors.Join, re-exported so callers only import one errors package.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// CategoryOf returns the policy category of the outermost *Error in err's chain.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	return GetCode(err).Category()
}

// IsConfigError reports whether err is a configuration or rehydration error.
func IsConfigError(err error) bool {
	return CategoryOf(err) == CategoryConfig
}

// IsDataError reports whether err is a data-quality error.
func IsDataError(err error) bool {
	return CategoryOf(err) == CategoryData
}
