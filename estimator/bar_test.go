package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemgo/alchemgo/errors"
)

func TestBARPair_RecoversCrooksDeltaF(t *testing.T) {
	// Gaussian work distributions satisfying the Crooks relation have
	// a known free-energy difference; BAR must recover it within a
	// small multiple of its own reported standard error.
	const df = 1.0
	wf, wr := crooksWork(df, 1.0, 20000, 20000, 101)

	pair, err := BARPair(wf, wr, DefaultBAROptions())
	require.NoError(t, err)
	assert.Greater(t, pair.StdErr, 0.0)
	assert.InDelta(t, df, pair.DeltaF, 4*pair.StdErr+1e-3)
	assert.Less(t, pair.StdErr, 0.05, "20k samples of unit-width work must resolve df tightly")
}

func TestBARPair_HarmonicAnalytic(t *testing.T) {
	// Two harmonic oscillators with known analytic delta_f. The
	// reverse work enters the Bennett equation as-is: negating it
	// biases the root far outside the reported error, so this pins the
	// sign convention of both solver sides.
	u := harmonicUKLN(t, []float64{1, 4}, nil, 5000, 13)
	wf := make([]float64, u.N(0))
	for n := range wf {
		wf[n] = u.U(0, n, 1) - u.U(0, n, 0)
	}
	wr := make([]float64, u.N(1))
	for n := range wr {
		wr[n] = u.U(1, n, 0) - u.U(1, n, 1)
	}

	pair, err := BARPair(wf, wr, DefaultBAROptions())
	require.NoError(t, err)

	want := harmonicAnalyticDeltaF(1, 4)
	assert.InDelta(t, want, pair.DeltaF, 3*pair.StdErr+0.005)
}

func TestBARPair_AsymmetricSampleCounts(t *testing.T) {
	const df = -0.7
	wf, wr := crooksWork(df, 0.8, 30000, 5000, 7)

	pair, err := BARPair(wf, wr, DefaultBAROptions())
	require.NoError(t, err)
	assert.InDelta(t, df, pair.DeltaF, 4*pair.StdErr+1e-3)
}

func TestBARPair_ZeroWork(t *testing.T) {
	// Identical states: all work samples zero, df must be exactly the
	// root of the symmetric equation, 0.
	wf := make([]float64, 100)
	wr := make([]float64, 100)

	pair, err := BARPair(wf, wr, DefaultBAROptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, pair.DeltaF, 1e-9)
}

func TestBARPair_LargeWorkValuesStayFinite(t *testing.T) {
	// Work values of +-1000 overflow exp() unless both sides of the
	// Bennett equation are evaluated in log space.
	wf := []float64{999, 1000, 1001, 998}
	wr := []float64{-999, -1000, -1001, -998}

	pair, err := BARPair(wf, wr, DefaultBAROptions())
	require.NoError(t, err)
	assert.False(t, math.IsNaN(pair.DeltaF))
	assert.False(t, math.IsInf(pair.DeltaF, 0))
	// The distributions barely overlap; the estimate lands between the
	// two one-sided exponential estimates.
	assert.Greater(t, pair.DeltaF, 900.0)
	assert.Less(t, pair.DeltaF, 1100.0)
}

func TestBARPair_InvalidInput(t *testing.T) {
	opts := DefaultBAROptions()

	_, err := BARPair(nil, []float64{1}, opts)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = BARPair([]float64{1}, nil, opts)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = BARPair([]float64{1, math.NaN()}, []float64{1}, opts)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestBARPair_ConvergenceError(t *testing.T) {
	wf, wr := crooksWork(1.0, 1.0, 1000, 1000, 3)
	opts := DefaultBAROptions()
	opts.MaxIterations = 1

	_, err := BARPair(wf, wr, opts)
	require.Error(t, err)
	assert.True(t, errors.IsConvergence(err))

	var ce *errors.ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "BAR", ce.Method)
	assert.Equal(t, 1, ce.Iterations)
	assert.Greater(t, ce.BracketWidth, 0.0)
	// The best estimate is still in the right neighborhood.
	assert.InDelta(t, 1.0, ce.Estimate, 2.0)
}

func TestBAR_HarmonicChain(t *testing.T) {
	springs := []float64{1, 2, 4, 8, 16}
	u := harmonicUKLN(t, springs, nil, 1000, 42)

	res, err := BAR(u, DefaultBAROptions())
	require.NoError(t, err)
	assertAntisymmetric(t, res, 1e-12)
	assert.True(t, res.Diagnostics.Converged)
	assert.Equal(t, "BAR", res.Diagnostics.Method)
	assert.Positive(t, res.Diagnostics.Iterations)

	want := harmonicAnalyticDeltaF(springs[0], springs[4])
	got := res.DeltaF.At(0, 4)
	se := res.DDeltaF.At(0, 4)
	assert.Greater(t, se, 0.0)
	assert.InDelta(t, want, got, 3*se+0.01)

	// Chained variances accumulate along the path.
	assert.Greater(t, res.DDeltaF.At(0, 4), res.DDeltaF.At(0, 1))
}

func TestBAR_TooFewStates(t *testing.T) {
	u := harmonicUKLN(t, []float64{1, 4}, nil, 50, 9)
	res, err := BAR(u, DefaultBAROptions())
	require.NoError(t, err)
	require.NotNil(t, res)

	single := harmonicUKLN(t, []float64{1}, nil, 50, 9)
	_, err = BAR(single, DefaultBAROptions())
	assert.True(t, errors.IsInvalidInput(err))
}

func TestBAR_ConvergenceErrorNamesPair(t *testing.T) {
	u := harmonicUKLN(t, []float64{1, 4, 16}, nil, 200, 5)
	opts := DefaultBAROptions()
	opts.MaxIterations = 1

	_, err := BAR(u, opts)
	require.Error(t, err)
	assert.True(t, errors.IsConvergence(err))
	assert.Contains(t, err.Error(), "state pair 0-1")
}
