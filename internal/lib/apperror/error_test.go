package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAs(t *testing.T) {
	sentinel := BadRequest("Failed to create user")
	wrapped := fmt.Errorf("services.CreateUser: %w", sentinel)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, got.Code)
	assert.Equal(t, "Failed to create user", got.Message)
	assert.True(t, errors.Is(wrapped, sentinel))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestInternal_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	assert.Equal(t, http.StatusInternalServerError, err.Code)
	assert.Equal(t, "Internal server error", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *AppError
		code int
	}{
		{Unauthorized("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{TooManyRequests("x"), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, "x", tt.err.Error())
	}
}
