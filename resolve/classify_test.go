package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loreweave/loreweave/errors"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"ok", 200, nil},
		{"no content", 204, nil},
		{"throttled", 429, errors.ErrThrottled},
		{"server error", 500, errors.ErrServiceUnavailable},
		{"gateway timeout", 504, errors.ErrServiceUnavailable},
		{"not found", 404, errors.ErrNotFound},
		{"bad request", 400, errors.ErrInvalidRequest},
		{"forbidden", 403, errors.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyStatus(tt.status, "https://example.org/api")
			if tt.sentinel == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestClassifyStatus_UnexpectedStatus(t *testing.T) {
	err := ClassifyStatus(301, "https://example.org/api")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrInvalidRequest))
}
