package errors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
)

func TestFromSentinel_KeepsCause(t *testing.T) {
	// Arrange
	err := fmt.Errorf("stop s-1: %w", domainerrors.ErrSessionNotFound)

	// Act
	got := domainerrors.FromSentinel(err, "s-1")

	// Assert
	require.NotNil(t, got)
	assert.Equal(t, domainerrors.ErrCodeNotFound, got.Code)
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
	assert.Equal(t, "s-1", got.Details)
	assert.ErrorIs(t, got, domainerrors.ErrSessionNotFound)
}

func TestFromSentinel_SessionExistsIsConflict(t *testing.T) {
	got := domainerrors.FromSentinel(fmt.Errorf("%w: s-1", domainerrors.ErrSessionExists), "s-1")

	require.NotNil(t, got)
	assert.Equal(t, domainerrors.ErrCodeConflict, got.Code)
	assert.Equal(t, http.StatusConflict, got.HTTPStatus)
}

func TestFromSentinel_Nil(t *testing.T) {
	assert.Nil(t, domainerrors.FromSentinel(nil, "x"))
}

func TestNewInternalError_HidesCause(t *testing.T) {
	cause := errors.New("mongo: connection refused")

	got := domainerrors.NewInternalError("failed to save", cause)

	assert.Empty(t, got.Details)
	assert.NotContains(t, got.Error(), "mongo")
	assert.ErrorIs(t, got, cause)
}

func TestIsValidationError(t *testing.T) {
	wrapped := fmt.Errorf("read ping.yaml: %w", domainerrors.NewValidationError("invalid handler", "reply is required"))

	assert.True(t, domainerrors.IsValidationError(wrapped))
	assert.False(t, domainerrors.IsValidationError(errors.New("plain")))
	assert.Equal(t, "read ping.yaml: VALIDATION_ERROR: invalid handler (reply is required)", wrapped.Error())
}
