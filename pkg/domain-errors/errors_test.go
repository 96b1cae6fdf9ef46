package dErrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(cause, CodeNotFound, "budget does not exist")

	require.Error(t, err)
	assert.True(t, HasCode(err, CodeNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "not_found: budget does not exist: row not found", err.Error())
}

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		assert.True(t, HasCode(New(CodeConflict, "duplicate"), CodeConflict))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := Wrap(errors.New("db down"), CodeInternal, "store failed")
		assert.True(t, HasCode(inner, CodeInternal))
		assert.False(t, HasCode(inner, CodeConflict))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeBudgetExhausted, CodeOf(New(CodeBudgetExhausted, "drained")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}
