package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ValidationError, "invalid input", "field required")
	assert.Equal(t, ValidationError, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "field required", err.Detail)
}

func TestWrap(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := Wrap(originalErr, DatabaseError, "database operation failed")

	assert.Equal(t, DatabaseError, wrappedErr.Type)
	assert.Equal(t, "database operation failed", wrappedErr.Message)
	assert.Equal(t, originalErr.Error(), wrappedErr.Detail)
	assert.Equal(t, originalErr, wrappedErr.Raw)
}

func TestNotFound(t *testing.T) {
	err := NotFound("Expense", "exp-123")
	assert.Equal(t, NotFoundError, err.Type)
	assert.Equal(t, "Expense not found", err.Message)
	assert.Equal(t, "ID: exp-123", err.Detail)
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "transient remote error is retryable",
			err:       RemoteTransient(fmt.Errorf("connection reset"), "upload failed"),
			retryable: true,
		},
		{
			name:      "permanent remote error is not retryable",
			err:       RemotePermanent(fmt.Errorf("unknown entity type"), "dispatch failed"),
			retryable: false,
		},
		{
			name:      "validation error is not retryable",
			err:       ValidationFailed("invalid expense", "amount must be positive"),
			retryable: false,
		},
		{
			name:      "database error is retryable",
			err:       NewDatabaseError(fmt.Errorf("locked")),
			retryable: true,
		},
		{
			name:      "plain error defaults to retryable",
			err:       fmt.Errorf("something went wrong"),
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "with detail",
			err: &AppError{
				Type:    ValidationError,
				Message: "invalid input",
				Detail:  "field required",
			},
			expected: "VALIDATION_ERROR: invalid input (field required)",
		},
		{
			name: "without detail",
			err: &AppError{
				Type:    RemoteTransientError,
				Message: "network unavailable",
			},
			expected: "REMOTE_TRANSIENT: network unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}
