package errors

import (
	"errors"
	"fmt"

	"github.com/splitmate-app/splitmate-sync/logger"
)

type ErrorType string

const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND"
	DatabaseError   ErrorType = "DATABASE_ERROR"
	ServerError     ErrorType = "SERVER_ERROR"
	ConflictError   ErrorType = "CONFLICT"

	// RemoteTransientError covers network failures and transient remote-store
	// errors; operations failing with it stay in the outbox and are retried.
	RemoteTransientError ErrorType = "REMOTE_TRANSIENT"

	// RemotePermanentError covers failures that no amount of retrying can fix
	// (unknown entity type, malformed metadata, rejected document).
	RemotePermanentError ErrorType = "REMOTE_PERMANENT"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Raw     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// Retryable reports whether the upload queue should spend retry budget on
// this error. Permanent and validation failures are never worth retrying.
func (e *AppError) Retryable() bool {
	switch e.Type {
	case RemotePermanentError, ValidationError:
		return false
	default:
		return true
	}
}

// IsRetryable classifies an arbitrary error for the outbox retry policy.
// Unclassified errors are treated as transient so the retry ceiling remains
// the backstop for anything we failed to tag at creation time.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return true
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Detail:  detail,
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: message,
		Detail:  err.Error(),
		Raw:     err,
	}
}

// Helper functions for common errors

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:    NotFoundError,
		Message: fmt.Sprintf("%s not found", entity),
		Detail:  fmt.Sprintf("ID: %v", id),
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:    ValidationError,
		Message: message,
		Detail:  details,
	}
}

func NewDatabaseError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:    DatabaseError,
		Message: "Database operation failed",
		Detail:  "Please try again later",
		Raw:     err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:    ServerError,
		Message: message,
	}
}

func NewConflictError(message string, detail string) *AppError {
	return &AppError{
		Type:    ConflictError,
		Message: message,
		Detail:  detail,
	}
}

// RemoteTransient wraps a network or remote-store error that should be
// retried on the next queue pass.
func RemoteTransient(err error, message string) *AppError {
	return &AppError{
		Type:    RemoteTransientError,
		Message: message,
		Detail:  safeDetail(err),
		Raw:     err,
	}
}

// RemotePermanent wraps a remote failure that retrying cannot fix.
func RemotePermanent(err error, message string) *AppError {
	return &AppError{
		Type:    RemotePermanentError,
		Message: message,
		Detail:  safeDetail(err),
		Raw:     err,
	}
}

func safeDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
