package estimator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alchemgo/alchemgo/series"
)

// Harmonic oscillator fixtures: a particle in u_k(x) = K_k x^2 / 2 has
// analytic reduced free energy f_k = -0.5*ln(2*pi/K_k), so any pair of
// spring constants gives a closed-form free-energy difference to test
// against: delta_f = 0.5*ln(K_j/K_i).

func harmonicAnalyticDeltaF(ki, kj float64) float64 {
	return 0.5 * math.Log(kj/ki)
}

// harmonicUKLN samples n configurations from each oscillator and
// evaluates every sample's reduced potential under all springs. Extra
// target springs are evaluated but not sampled.
func harmonicUKLN(t *testing.T, springs []float64, targets []float64, n int, seed uint64) *series.ReducedPotentials {
	t.Helper()

	all := append(append([]float64{}, springs...), targets...)
	den := float64(len(all) - 1)
	if den < 1 {
		den = 1
	}
	states := make([]series.LambdaState, len(all))
	for i := range all {
		states[i] = series.LambdaState{Index: i, Components: []float64{float64(i) / den}}
	}

	u, err := series.NewReducedPotentials(states, len(springs))
	require.NoError(t, err)

	for k, spring := range springs {
		normal := distuv.Normal{
			Mu:    0,
			Sigma: 1 / math.Sqrt(spring),
			Src:   rand.NewPCG(seed, uint64(k)),
		}
		rows := make([][]float64, n)
		for i := 0; i < n; i++ {
			x := normal.Rand()
			row := make([]float64, len(all))
			for l, kl := range all {
				row[l] = kl * x * x / 2
			}
			rows[i] = row
		}
		require.NoError(t, u.AppendState(rows))
	}
	require.NoError(t, u.Validate())
	return u
}

// crooksWork generates forward/reverse Gaussian work distributions
// satisfying the Crooks fluctuation relation for a known delta_f:
// W_f ~ N(df + s^2/2, s^2) and W_r ~ N(-df + s^2/2, s^2).
func crooksWork(df, sigma float64, nf, nr int, seed uint64) (wf, wr []float64) {
	fwd := distuv.Normal{Mu: df + sigma*sigma/2, Sigma: sigma, Src: rand.NewPCG(seed, 0)}
	rev := distuv.Normal{Mu: -df + sigma*sigma/2, Sigma: sigma, Src: rand.NewPCG(seed, 1)}
	wf = make([]float64, nf)
	for i := range wf {
		wf[i] = fwd.Rand()
	}
	wr = make([]float64, nr)
	for i := range wr {
		wr[i] = rev.Rand()
	}
	return wf, wr
}

// assertAntisymmetric checks delta_f[i][j] == -delta_f[j][i] with zero
// diagonal, the structural invariant of every estimator result.
func assertAntisymmetric(t *testing.T, res *Result, tol float64) {
	t.Helper()
	r, c := res.DeltaF.Dims()
	require.Equal(t, r, c)
	for i := 0; i < r; i++ {
		require.InDelta(t, 0, res.DeltaF.At(i, i), tol, "diagonal (%d,%d)", i, i)
		require.InDelta(t, 0, res.DDeltaF.At(i, i), tol)
		for j := 0; j < c; j++ {
			require.InDelta(t, -res.DeltaF.At(j, i), res.DeltaF.At(i, j), tol,
				"antisymmetry at (%d,%d)", i, j)
			require.GreaterOrEqual(t, res.DDeltaF.At(i, j), 0.0)
		}
	}
}
