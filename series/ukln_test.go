package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemgo/alchemgo/errors"
)

func twoStates() []LambdaState {
	return []LambdaState{
		{Index: 0, Components: []float64{0.0}},
		{Index: 1, Components: []float64{1.0}},
	}
}

func TestReducedPotentialsRaggedStorage(t *testing.T) {
	u, err := NewReducedPotentials(twoStates(), 2)
	require.NoError(t, err)

	// State 0 has three samples, state 1 has two: N_k is ragged.
	require.NoError(t, u.AppendState([][]float64{{0.1, 1.1}, {0.2, 1.2}, {0.3, 1.3}}))
	require.NoError(t, u.AppendState([][]float64{{2.1, 3.1}, {2.2, 3.2}}))
	require.NoError(t, u.Validate())

	assert.Equal(t, 2, u.K())
	assert.Equal(t, 2, u.L())
	assert.Equal(t, 3, u.N(0))
	assert.Equal(t, 2, u.N(1))
	assert.Equal(t, 5, u.TotalSamples())

	assert.Equal(t, 0.2, u.U(0, 1, 0))
	assert.Equal(t, 1.3, u.U(0, 2, 1))
	assert.Equal(t, 2.2, u.U(1, 1, 0))
	assert.Equal(t, []float64{2.1, 3.1}, u.Row(1, 0))
}

func TestReducedPotentialsTargets(t *testing.T) {
	states := append(twoStates(), LambdaState{Index: 2, Components: []float64{0.5}})
	u, err := NewReducedPotentials(states, 2) // third state is an unsampled target
	require.NoError(t, err)

	require.NoError(t, u.AppendState([][]float64{{0, 1, 0.5}}))
	require.NoError(t, u.AppendState([][]float64{{1, 0, 0.5}}))
	require.NoError(t, u.Validate())

	assert.Equal(t, 2, u.K())
	assert.Equal(t, 3, u.L())
	assert.Equal(t, 0.5, u.U(1, 0, 2))
}

func TestReducedPotentialsErrors(t *testing.T) {
	t.Run("sampled count out of range", func(t *testing.T) {
		_, err := NewReducedPotentials(twoStates(), 3)
		assert.True(t, errors.IsInvalidInput(err))
		_, err = NewReducedPotentials(twoStates(), 0)
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("wrong row width", func(t *testing.T) {
		u, _ := NewReducedPotentials(twoStates(), 2)
		err := u.AppendState([][]float64{{0.1}})
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("non-finite entry", func(t *testing.T) {
		u, _ := NewReducedPotentials(twoStates(), 2)
		err := u.AppendState([][]float64{{0.1, math.NaN()}})
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("empty state block", func(t *testing.T) {
		u, _ := NewReducedPotentials(twoStates(), 2)
		err := u.AppendState(nil)
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("too many state blocks", func(t *testing.T) {
		u, _ := NewReducedPotentials(twoStates(), 2)
		require.NoError(t, u.AppendState([][]float64{{0, 1}}))
		require.NoError(t, u.AppendState([][]float64{{1, 0}}))
		err := u.AppendState([][]float64{{2, 2}})
		assert.True(t, errors.IsInvalidInput(err))
	})

	t.Run("unpopulated states fail validation", func(t *testing.T) {
		u, _ := NewReducedPotentials(twoStates(), 2)
		require.NoError(t, u.AppendState([][]float64{{0, 1}}))
		assert.True(t, errors.IsInvalidInput(u.Validate()))
	})
}
