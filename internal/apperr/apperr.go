// Package apperr defines the error surface returned to tool callers.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure for the transport layer.
type Code string

const (
	CodeInvalidRequest Code = "InvalidRequest"
	CodeMethodNotFound Code = "MethodNotFound"
	CodeInternalError  Code = "InternalError"
)

// Error is a typed failure with a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidRequest reports a caller mistake that should not be retried as-is.
func InvalidRequest(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// MethodNotFound reports an unknown operation name.
func MethodNotFound(name string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "unknown operation: " + name}
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Code: CodeInternalError, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err. Untyped errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the caller-facing message without the code prefix.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
