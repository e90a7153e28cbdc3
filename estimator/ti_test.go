package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/series"
)

func scalarState(idx int, lambda float64) series.LambdaState {
	return series.LambdaState{Index: idx, Components: []float64{lambda}}
}

func constantGradientStates(lambdas []float64, c float64) []GradientStats {
	out := make([]GradientStats, len(lambdas))
	for i, l := range lambdas {
		out[i] = GradientStats{
			State:  scalarState(i, l),
			Mean:   []float64{c},
			StdErr: []float64{0},
		}
	}
	return out
}

func TestTI_ConstantGradientIsExact(t *testing.T) {
	lambdas := []float64{0.0, 0.25, 0.5, 0.75, 1.0}
	const c = 2.5

	for _, quad := range []string{QuadTrapezoid, QuadCubic} {
		t.Run(quad, func(t *testing.T) {
			res, err := TI(constantGradientStates(lambdas, c), TIOptions{Quadrature: quad})
			require.NoError(t, err)
			assert.InDelta(t, c, res.DeltaF.At(0, 4), 1e-12,
				"constant dH/dl over [0,1] must integrate to exactly c")
			assertAntisymmetric(t, res, 1e-12)
		})
	}
}

func TestTI_LinearGradient(t *testing.T) {
	// dH/dl = l integrates to 1/2 over [0,1]; both rules are exact for
	// a linear integrand.
	lambdas := []float64{0.0, 0.25, 0.5, 0.75, 1.0}
	states := make([]GradientStats, len(lambdas))
	for i, l := range lambdas {
		states[i] = GradientStats{
			State:  scalarState(i, l),
			Mean:   []float64{l},
			StdErr: []float64{0},
		}
	}

	for _, quad := range []string{QuadTrapezoid, QuadCubic} {
		res, err := TI(states, TIOptions{Quadrature: quad})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, res.DeltaF.At(0, 4), 1e-10, "quadrature %s", quad)
	}
}

func TestTI_CubicBeatsTrapezoidOnCurvature(t *testing.T) {
	// dH/dl = l^2 integrates to 1/3; the trapezoid overestimates a
	// convex integrand, the spline should land closer.
	lambdas := []float64{0.0, 0.25, 0.5, 0.75, 1.0}
	states := make([]GradientStats, len(lambdas))
	for i, l := range lambdas {
		states[i] = GradientStats{
			State:  scalarState(i, l),
			Mean:   []float64{l * l},
			StdErr: []float64{0},
		}
	}

	trap, err := TI(states, TIOptions{Quadrature: QuadTrapezoid})
	require.NoError(t, err)
	cubic, err := TI(states, TIOptions{Quadrature: QuadCubic})
	require.NoError(t, err)

	errTrap := math.Abs(trap.DeltaF.At(0, 4) - 1.0/3)
	errCubic := math.Abs(cubic.DeltaF.At(0, 4) - 1.0/3)
	assert.Less(t, errCubic, errTrap)
}

func TestTI_ErrorPropagation(t *testing.T) {
	// Two states, known standard errors: the segment variance is
	// (dl/2)^2*(s0^2+s1^2).
	states := []GradientStats{
		{State: scalarState(0, 0), Mean: []float64{1}, StdErr: []float64{0.3}},
		{State: scalarState(1, 1), Mean: []float64{2}, StdErr: []float64{0.4}},
	}

	res, err := TI(states, DefaultTIOptions())
	require.NoError(t, err)
	want := math.Sqrt(0.25 * (0.09 + 0.16))
	assert.InDelta(t, want, res.DDeltaF.At(0, 1), 1e-12)
	assert.InDelta(t, 1.5, res.DeltaF.At(0, 1), 1e-12)
}

func TestTI_SegmentErrorsCombineInQuadrature(t *testing.T) {
	states := []GradientStats{
		{State: scalarState(0, 0.0), Mean: []float64{1}, StdErr: []float64{0.2}},
		{State: scalarState(1, 0.5), Mean: []float64{1}, StdErr: []float64{0.2}},
		{State: scalarState(2, 1.0), Mean: []float64{1}, StdErr: []float64{0.2}},
	}

	res, err := TI(states, DefaultTIOptions())
	require.NoError(t, err)

	segVar := 0.0625 * (0.04 + 0.04) // (0.25/2... dl=0.5 -> (0.25)^2*(s^2+s^2)
	want := math.Sqrt(2 * segVar)
	assert.InDelta(t, want, res.DDeltaF.At(0, 2), 1e-12)
}

func TestTI_VectorLambda(t *testing.T) {
	// Two coupling components switched one after the other, constant
	// per-component gradients: the path integral is c0 + c1.
	c0, c1 := 3.0, -1.0
	states := []GradientStats{
		{State: series.LambdaState{Index: 0, Components: []float64{0, 0}}, Mean: []float64{c0, c1}, StdErr: []float64{0, 0}},
		{State: series.LambdaState{Index: 1, Components: []float64{1, 0}}, Mean: []float64{c0, c1}, StdErr: []float64{0, 0}},
		{State: series.LambdaState{Index: 2, Components: []float64{1, 1}}, Mean: []float64{c0, c1}, StdErr: []float64{0, 0}},
	}

	res, err := TI(states, DefaultTIOptions())
	require.NoError(t, err)
	assert.InDelta(t, c0+c1, res.DeltaF.At(0, 2), 1e-12)
	assertAntisymmetric(t, res, 1e-12)
}

func TestTI_VectorLambdaCubicFallsBackToTrapezoid(t *testing.T) {
	// Two components varying at once have no scalar spline coordinate;
	// the cubic rule must silently produce the trapezoid answer.
	states := []GradientStats{
		{State: series.LambdaState{Index: 0, Components: []float64{0, 0}}, Mean: []float64{1, 2}, StdErr: []float64{0, 0}},
		{State: series.LambdaState{Index: 1, Components: []float64{0.5, 0.5}}, Mean: []float64{1, 2}, StdErr: []float64{0, 0}},
		{State: series.LambdaState{Index: 2, Components: []float64{1, 1}}, Mean: []float64{1, 2}, StdErr: []float64{0, 0}},
	}

	trap, err := TI(states, TIOptions{Quadrature: QuadTrapezoid})
	require.NoError(t, err)
	cubic, err := TI(states, TIOptions{Quadrature: QuadCubic})
	require.NoError(t, err)
	assert.Equal(t, trap.DeltaF.At(0, 2), cubic.DeltaF.At(0, 2))
}

func TestTI_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		states []GradientStats
	}{
		{
			name:   "single state",
			states: constantGradientStates([]float64{0}, 1),
		},
		{
			name:   "decreasing lambda",
			states: constantGradientStates([]float64{0, 0.5, 0.25}, 1),
		},
		{
			name:   "duplicate lambda",
			states: constantGradientStates([]float64{0, 0.5, 0.5}, 1),
		},
		{
			name: "component count mismatch",
			states: []GradientStats{
				{State: scalarState(0, 0), Mean: []float64{1}, StdErr: []float64{0}},
				{State: series.LambdaState{Index: 1, Components: []float64{1, 1}}, Mean: []float64{1, 1}, StdErr: []float64{0, 0}},
			},
		},
		{
			name: "non-finite mean",
			states: []GradientStats{
				{State: scalarState(0, 0), Mean: []float64{math.NaN()}, StdErr: []float64{0}},
				{State: scalarState(1, 1), Mean: []float64{1}, StdErr: []float64{0}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TI(tt.states, DefaultTIOptions())
			require.Error(t, err)
			assert.True(t, errors.IsInvalidInput(err))
		})
	}
}

func TestNewGradientStats(t *testing.T) {
	g := series.Gradients{
		State:   scalarState(0, 0),
		Time:    []float64{0, 1, 2, 3},
		Samples: [][]float64{{1}, {2}, {3}, {4}},
	}

	gs, err := NewGradientStats(g, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, gs.Mean[0], 1e-12)
	// Sample variance 5/3, standard error sqrt(var/neff).
	assert.InDelta(t, math.Sqrt(5.0/3.0/4.0), gs.StdErr[0], 1e-12)

	// A smaller effective sample count widens the error bar.
	gs2, err := NewGradientStats(g, 2)
	require.NoError(t, err)
	assert.Greater(t, gs2.StdErr[0], gs.StdErr[0])
}

func TestNewGradientStats_Insufficient(t *testing.T) {
	g := series.Gradients{State: scalarState(0, 0), Time: []float64{0}, Samples: [][]float64{{1}}}
	_, err := NewGradientStats(g, 1)
	assert.True(t, errors.IsInsufficientData(err))
}
