package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputShapes(t *testing.T) {
	err := InvalidInput("usernames_to_add", "99 users limit reached")
	assert.Equal(t, CodeInvalidEntry, CodeOf(err))
	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "99 users limit reached", appErr.Fields["usernames_to_add"])

	err = InvalidInput("", "Invalid 'focus' value")
	assert.Equal(t, CodeInvalidValue, CodeOf(err))
	assert.True(t, IsInvalidInput(err))
}

func TestSentinelsMatchByCode(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NotFound("User has no chat with that ID"))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrForbidden)
	assert.ErrorIs(t, Conflict("x"), ErrConflict)
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeServerError, CodeOf(errors.New("boom")))
	internal := Internal(errors.New("db down"))
	assert.Equal(t, CodeServerError, CodeOf(internal))
	assert.Contains(t, internal.Error(), "db down")
}
