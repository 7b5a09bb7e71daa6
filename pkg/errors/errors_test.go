package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("enqueue: %w", Conflict("an operation is already pending for this entity"))

	assert.True(t, Is(err, CodeConflict))
	assert.False(t, Is(err, CodeValidation))
	assert.Equal(t, CodeConflict, Code(err))
}

func TestCodeFallsBackToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, Code(fmt.Errorf("plain")))
}

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   string
		status int
	}{
		{Validation("data is required", nil), CodeValidation, http.StatusBadRequest},
		{NotFound("Message", nil), CodeNotFound, http.StatusNotFound},
		{Conflict("x"), CodeConflict, http.StatusConflict},
		{Processing("replay failed", nil), CodeProcessing, http.StatusInternalServerError},
		{Unauthorized("no token", nil), CodeUnauthorized, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.Status)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Processing("replay failed", fmt.Errorf("db closed"))
	assert.Equal(t, "PROCESSING_ERROR: replay failed: db closed", err.Error())
	assert.EqualError(t, err.Unwrap(), "db closed")
}
