// Package estimator implements the three free-energy estimators: TI
// (thermodynamic integration), BAR (Bennett acceptance ratio), and MBAR
// (multistate BAR). All inputs are decorrelated series in reduced (kT)
// units; all outputs are dimensionless free-energy matrices with
// standard errors. Each estimator invocation is a pure function of its
// inputs and produces a fresh Result.
package estimator

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/alchemgo/alchemgo/series"
)

// Diagnostics carries solver metadata attached to a Result. It is
// reporting information only and never appears inside the matrices.
type Diagnostics struct {
	RunID         uuid.UUID
	Method        string
	Iterations    int
	FinalResidual float64
	Converged     bool
}

// Result is the terminal output of one estimator invocation.
//
// DeltaF[i][j] = f_j - f_i is antisymmetric with zero diagonal;
// DDeltaF is the symmetric matrix of standard errors. Overlap is the
// row-stochastic phase-space overlap matrix over sampled states,
// populated by MBAR only. Indexing follows States.
type Result struct {
	States      []series.LambdaState
	DeltaF      *mat.Dense
	DDeltaF     *mat.SymDense
	Overlap     *mat.Dense
	Diagnostics Diagnostics
}

// resultFromCumulative assembles Delta_f and dDelta_f matrices from
// per-state cumulative free energies and cumulative segment variances,
// as produced by the pairwise estimators (TI, chained BAR). Segment
// errors are independent, so the variance between states i and j is
// the difference of the cumulative variances.
func resultFromCumulative(states []series.LambdaState, f, cumVar []float64, d Diagnostics) *Result {
	n := len(f)
	deltaF := mat.NewDense(n, n, nil)
	dDeltaF := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			deltaF.Set(i, j, f[j]-f[i])
			deltaF.Set(j, i, f[i]-f[j])
			dDeltaF.SetSym(i, j, math.Sqrt(cumVar[j]-cumVar[i]))
		}
	}
	return &Result{
		States:      states,
		DeltaF:      deltaF,
		DDeltaF:     dDeltaF,
		Diagnostics: d,
	}
}

// resultFromCovariance assembles Delta_f and dDelta_f from per-state
// free energies and a full covariance matrix theta, as produced by
// MBAR: var(f_j - f_i) = theta_ii + theta_jj - 2*theta_ij.
func resultFromCovariance(states []series.LambdaState, f []float64, theta *mat.SymDense, d Diagnostics) *Result {
	n := len(f)
	deltaF := mat.NewDense(n, n, nil)
	dDeltaF := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			deltaF.Set(i, j, f[j]-f[i])
			deltaF.Set(j, i, f[i]-f[j])
			v := theta.At(i, i) + theta.At(j, j) - 2*theta.At(i, j)
			if v < 0 {
				// Round-off on nearly identical states.
				v = 0
			}
			dDeltaF.SetSym(i, j, math.Sqrt(v))
		}
	}
	return &Result{
		States:      states,
		DeltaF:      deltaF,
		DDeltaF:     dDeltaF,
		Diagnostics: d,
	}
}

func newDiagnostics(method string, iterations int, residual float64, converged bool) Diagnostics {
	return Diagnostics{
		RunID:         uuid.New(),
		Method:        method,
		Iterations:    iterations,
		FinalResidual: residual,
		Converged:     converged,
	}
}
