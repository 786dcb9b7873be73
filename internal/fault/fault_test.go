package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusErrorUnwrap(t *testing.T) {
	err := NewStatusError(400, "400 Bad Request", "bad solution", ErrBackendRejected)

	assert.ErrorIs(t, err, ErrBackendRejected)
	assert.NotErrorIs(t, err, ErrBackendBusy)
	assert.Equal(t, "http status 400 Bad Request: bad solution", err.Error())

	var se *StatusError
	wrapped := fmt.Errorf("deliver: %w", err)
	if assert.True(t, errors.As(wrapped, &se)) {
		assert.Equal(t, 400, se.StatusCode)
		assert.Equal(t, "bad solution", se.Body)
	}
}

func TestStatusErrorWithoutBody(t *testing.T) {
	err := NewStatusError(503, "503 Service Unavailable", "", ErrBackendBusy)
	assert.Equal(t, "http status 503 Service Unavailable", err.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"transport", fmt.Errorf("post: %w", ErrTransport), true},
		{"busy", NewStatusError(503, "503", "", ErrBackendBusy), true},
		{"queue", fmt.Errorf("rpop: %w", ErrQueueConnection), true},
		{"rejected", NewStatusError(400, "400", "", ErrBackendRejected), false},
		{"exhausted", ErrSearchExhausted, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}
