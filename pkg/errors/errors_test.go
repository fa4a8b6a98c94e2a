package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WithDetailDoesNotMutateBase(t *testing.T) {
	e := ErrValidation.WithDetail(DetailErrors, []string{"from"})

	assert.Empty(t, ErrValidation.Details)
	assert.Equal(t, []string{"from"}, e.Details[DetailErrors])
}

func TestError_Classification(t *testing.T) {
	wrapped := fmt.Errorf("store: %w", ErrServiceUnavailable.WithCause(errors.New("disk full")))

	assert.True(t, IsUnavailable(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))
	assert.True(t, IsUnauthorized(ErrUnauthorized))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(ErrUnauthorized)
	assert.Equal(t, map[string]interface{}{
		"detail":     "invalid signature",
		"error_code": "INVALID_SIGNATURE",
	}, resp)

	resp = ToErrorResponse(ErrValidation.WithDetail(DetailErrors, []string{"ts"}).WithDetail("internal", "hidden"))
	assert.Equal(t, []string{"ts"}, resp[DetailErrors])
	assert.NotContains(t, resp, "internal")

	resp = ToErrorResponse(errors.New("secret cause"))
	assert.Equal(t, "internal server error", resp["detail"])
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(err))
	assert.Contains(t, err.Error(), "boom")
}
