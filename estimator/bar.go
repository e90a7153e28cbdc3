package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/alchemgo/alchemgo/config"
	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/logger"
	"github.com/alchemgo/alchemgo/series"
)

// BAROptions configures the Bennett acceptance ratio solver.
type BAROptions struct {
	Tolerance     float64
	MaxIterations int
}

// DefaultBAROptions mirrors the config package defaults.
func DefaultBAROptions() BAROptions {
	return BAROptionsFromConfig(config.Default())
}

// BAROptionsFromConfig extracts BAR options from an alchemgo configuration.
func BAROptionsFromConfig(c *config.Config) BAROptions {
	return BAROptions{
		Tolerance:     c.BAR.Tolerance,
		MaxIterations: c.BAR.MaxIterations,
	}
}

// PairResult is the free-energy difference between one adjacent state
// pair, in reduced units.
type PairResult struct {
	DeltaF     float64
	StdErr     float64
	Iterations int
}

// BARPair solves the implicit Bennett equation for the free-energy
// difference between two states from forward and reverse work samples:
//
//	sum_F 1/(1+exp(M + Wf - df)) = sum_R 1/(1+exp(-M + Wr + df))
//
// with M = ln(Nf/Nr), Wf the forward work on forward samples and Wr
// the reverse work on reverse samples. Both sides are evaluated in log
// space. The root
// is bracketed from the forward/reverse exponential-averaging
// estimates, then refined by Newton steps with an analytic derivative;
// a Newton step that leaves the bracket or meets a vanishing derivative
// falls back to a bisection step for that iteration. The bracket always
// contains the root because the residual is strictly increasing in df.
//
// The uncertainty is the Bennett asymptotic variance, the inverse
// curvature of the log-likelihood at the root.
func BARPair(wf, wr []float64, opts BAROptions) (PairResult, error) {
	if err := validateWork(wf, "forward"); err != nil {
		return PairResult{}, err
	}
	if err := validateWork(wr, "reverse"); err != nil {
		return PairResult{}, err
	}

	nf, nr := len(wf), len(wr)
	m := math.Log(float64(nf) / float64(nr))

	// phi(x) = log(forward side) - log(reverse side); increasing in x.
	phi := func(x float64) float64 {
		return logSumFermi(wf, m-x, 1) - logSumFermi(wr, x-m, 1)
	}
	// dphi(x) > 0 everywhere: each side moves monotonically with x.
	dphi := func(x float64) float64 {
		return fermiWeightedSlope(wf, m-x) + fermiWeightedSlope(wr, x-m)
	}

	// Seed the bracket with the two exponential-averaging estimates.
	guessF := math.Log(float64(nf)) - logSumExpNeg(wf)
	guessR := logSumExpNeg(wr) - math.Log(float64(nr))
	lo := math.Min(guessF, guessR) - 1
	hi := math.Max(guessF, guessR) + 1
	for width := 1.0; phi(lo) > 0; width *= 2 {
		lo -= width
	}
	for width := 1.0; phi(hi) < 0; width *= 2 {
		hi += width
	}

	x := 0.5 * (lo + hi)
	var converged bool
	var step float64
	iter := 0
	for ; iter < opts.MaxIterations; iter++ {
		fx := phi(x)
		if fx > 0 {
			hi = x
		} else {
			lo = x
		}

		// Explicit strategy selection per iteration: Newton when the
		// step stays inside the bracket, bisection otherwise.
		next := 0.0
		if d := dphi(x); d > 0 {
			next = x - fx/d
		}
		if next <= lo || next >= hi || math.IsNaN(next) {
			next = 0.5 * (lo + hi)
		}

		step = math.Abs(next - x)
		x = next
		if step < opts.Tolerance {
			converged = true
			break
		}
	}

	if !converged {
		return PairResult{}, errors.NewConvergence("BAR", x, step, iter, hi-lo)
	}

	return PairResult{
		DeltaF:     x,
		StdErr:     math.Sqrt(barVariance(wf, wr, m, x)),
		Iterations: iter + 1,
	}, nil
}

// BAR chains pairwise Bennett solutions across all adjacent sampled
// state pairs of u, producing free-energy and uncertainty matrices
// between every pair of states. Pair variances combine in quadrature
// under the independence of samples across state pairs.
func BAR(u *series.ReducedPotentials, opts BAROptions) (*Result, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	k := u.K()
	if k < 2 {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"BAR needs at least 2 sampled states, got %d", k)
	}

	f := make([]float64, k)
	cumVar := make([]float64, k)
	totalIter := 0
	for s := 0; s < k-1; s++ {
		wf := make([]float64, u.N(s))
		for n := range wf {
			wf[n] = u.U(s, n, s+1) - u.U(s, n, s)
		}
		wr := make([]float64, u.N(s+1))
		for n := range wr {
			wr[n] = u.U(s+1, n, s) - u.U(s+1, n, s+1)
		}

		pair, err := BARPair(wf, wr, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "state pair %d-%d", s, s+1)
		}
		f[s+1] = f[s] + pair.DeltaF
		cumVar[s+1] = cumVar[s] + pair.StdErr*pair.StdErr
		totalIter += pair.Iterations
	}

	states := u.States()[:k]
	logger.Logger.Debugw("BAR chain complete",
		"states", k,
		"delta_f_total", f[k-1],
		"iterations", totalIter,
	)
	return resultFromCumulative(states, f, cumVar,
		newDiagnostics("BAR", totalIter, 0, true)), nil
}

func validateWork(w []float64, direction string) error {
	if len(w) == 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "no %s work samples", direction)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(errors.ErrInvalidInput,
				"non-finite %s work at sample %d", direction, i)
		}
	}
	return nil
}

// log1pexp returns log(1+exp(x)) without overflow.
func log1pexp(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// logSumFermi returns log sum_i [1/(1+exp(shift + w_i))]^power.
func logSumFermi(w []float64, shift float64, power float64) float64 {
	terms := make([]float64, len(w))
	for i, v := range w {
		terms[i] = -power * log1pexp(shift+v)
	}
	return floats.LogSumExp(terms)
}

// fermiWeightedSlope returns the derivative contribution
// sum_i p_i * sigma(-(shift+w_i)) where p_i is the softmax of the Fermi
// log-terms; always in (0, 1).
func fermiWeightedSlope(w []float64, shift float64) float64 {
	terms := make([]float64, len(w))
	for i, v := range w {
		terms[i] = -log1pexp(shift + v)
	}
	logZ := floats.LogSumExp(terms)
	var slope float64
	for i, v := range w {
		// sigma(shift+w_i) = 1 - fermi term; the pair sums to 1.
		slope += math.Exp(terms[i]-logZ) * sigmoid(shift+v)
	}
	return slope
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// logSumExpNeg returns log sum_i exp(-w_i).
func logSumExpNeg(w []float64) float64 {
	terms := make([]float64, len(w))
	for i, v := range w {
		terms[i] = -v
	}
	return floats.LogSumExp(terms)
}

// barVariance is the Bennett asymptotic variance at the root:
//
//	var = (<f^2>/<f>^2 - 1)/Nf + (<g^2>/<g>^2 - 1)/Nr
//
// with Fermi weights f_i = 1/(1+exp(M+Wf_i-df)) over forward samples
// and g_j = 1/(1+exp(-M+Wr_j+df)) over reverse samples, evaluated in
// log space.
func barVariance(wf, wr []float64, m, df float64) float64 {
	return fermiRelVar(wf, m-df)/float64(len(wf)) + fermiRelVar(wr, df-m)/float64(len(wr))
}

// fermiRelVar returns <f^2>/<f>^2 - 1 for f_i = 1/(1+exp(shift+w_i)).
func fermiRelVar(w []float64, shift float64) float64 {
	logMean := logSumFermi(w, shift, 1) - math.Log(float64(len(w)))
	logMeanSq := logSumFermi(w, shift, 2) - math.Log(float64(len(w)))
	return math.Exp(logMeanSq-2*logMean) - 1
}
