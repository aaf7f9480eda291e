package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Validation error",
			code:      ErrValidation,
			message:   "decision must be 'included' or 'excluded'",
			details:   "got 'maybe'",
			requestID: "req-123",
		},
		{
			name:      "Database error",
			code:      ErrDatabaseError,
			message:   "run store unavailable",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.details, err.Details)
			assert.Equal(t, tt.requestID, err.RequestID)
			assert.WithinDuration(t, time.Now().UTC(), err.Timestamp, time.Minute)
			assert.Equal(t, tt.code+": "+tt.message, err.Error())
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("reason", "required for excluded records", "")

	assert.Equal(t, "reason", err.Field)
	assert.Equal(t, "validation error for field 'reason': required for excluded records", err.Error())
}

func TestIsValidationError(t *testing.T) {
	wrapped := fmt.Errorf("add entry: %w", NewValidationError("decision", "invalid", "maybe"))

	require.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(fmt.Errorf("plain failure")))
	assert.False(t, IsValidationError(nil))
}
