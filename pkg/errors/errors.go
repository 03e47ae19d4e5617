package errors

import (
	"context"
	"errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes
const (
	ErrCodeSessionCreate = "SESSION_CREATE_FAILED"
	ErrCodeSessionDelete = "SESSION_DELETE_FAILED"
	ErrCodeSend          = "SEND_FAILED"
	ErrCodeApproval      = "APPROVAL_FAILED"
	ErrCodeStreamAborted = "STREAM_ABORTED"
	ErrCodeNoSession     = "NO_ACTIVE_SESSION"
	ErrCodeTurnActive    = "TURN_IN_FLIGHT"
	ErrCodeConfig        = "CONFIG_INVALID"
	ErrCodeServer        = "SERVER_FAILED"
)

// IsAborted reports whether err resulted from cooperative cancellation
// (caller abort or deadline) rather than a transport failure. Callers use
// this to show "request timed out" instead of a generic failure.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == ErrCodeStreamAborted
	}
	return false
}
