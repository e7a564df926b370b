package rag

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode identifies a machine-stable pipeline error code.
type ErrorCode string

const (
	ErrCodeConfig          ErrorCode = "CONFIG_ERROR"
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrCodeUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrCodeBadResponse     ErrorCode = "BAD_RESPONSE"
	ErrCodeStoreBackend    ErrorCode = "STORE_BACKEND_ERROR"
)

// Error captures a typed pipeline error with retryability metadata.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
}

// Error returns the error message.
func (e *Error) Error() string {
	if e == nil {
		return "rag error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("rag error: %s", e.Code)
	}
	return e.Message
}

// NewError constructs a typed pipeline error.
func NewError(code ErrorCode, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// AsError extracts a typed pipeline error from the error chain.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether the error chain contains the given code.
func IsCode(err error, code ErrorCode) bool {
	if typed, ok := AsError(err); ok {
		return typed.Code == code
	}
	return false
}
