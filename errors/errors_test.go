package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		err := Wrap(ErrInvalidInput, "lambda sequence not monotonic")
		assert.True(t, IsInvalidInput(err))
		assert.False(t, IsConvergence(err))
	})

	t.Run("wrap preserves stack trace", func(t *testing.T) {
		err := Wrap(ErrInsufficientData, "series too short")
		assert.NotNil(t, GetStack(err))
	})
}

func TestInsufficientDataError(t *testing.T) {
	err := NewInsufficientData(4, 2)
	assert.True(t, IsInsufficientData(err))

	var ide *InsufficientDataError
	require.True(t, As(err, &ide))
	assert.Equal(t, 4, ide.Required)
	assert.Equal(t, 2, ide.Actual)
	assert.Contains(t, err.Error(), "at least 4")
}

func TestConvergenceError(t *testing.T) {
	err := NewConvergence("BAR", 1.234, 1e-3, 500, 0.5)
	assert.True(t, IsConvergence(err))

	var ce *ConvergenceError
	require.True(t, As(err, &ce))
	assert.Equal(t, "BAR", ce.Method)
	assert.Equal(t, 500, ce.Iterations)
	assert.InDelta(t, 1.234, ce.Estimate, 1e-12)

	// Context added by callers must not hide the payload.
	wrapped := Wrap(err, "pair 3-4")
	require.True(t, As(wrapped, &ce))
	assert.True(t, IsConvergence(wrapped))
}

func TestSingularSystemError(t *testing.T) {
	err := NewSingularSystem([]int{2, 3})
	assert.True(t, IsSingularSystem(err))

	var se *SingularSystemError
	require.True(t, As(err, &se))
	assert.Equal(t, []int{2, 3}, se.States)

	assert.Contains(t, NewSingularSystem(nil).Error(), "numerically singular")
}
