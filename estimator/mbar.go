package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/alchemgo/alchemgo/config"
	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/logger"
	"github.com/alchemgo/alchemgo/series"
)

// MBAROptions configures the multistate Bennett acceptance ratio solver.
type MBAROptions struct {
	SCTolerance          float64
	Tolerance            float64
	MaxIterations        int
	OverlapWarnThreshold float64
}

// DefaultMBAROptions mirrors the config package defaults.
func DefaultMBAROptions() MBAROptions {
	return MBAROptionsFromConfig(config.Default())
}

// MBAROptionsFromConfig extracts MBAR options from an alchemgo configuration.
func MBAROptionsFromConfig(c *config.Config) MBAROptions {
	return MBAROptions{
		SCTolerance:          c.MBAR.SCTolerance,
		Tolerance:            c.MBAR.Tolerance,
		MaxIterations:        c.MBAR.MaxIterations,
		OverlapWarnThreshold: c.MBAR.OverlapWarnThreshold,
	}
}

// mbarState holds the solver working set: the flattened reduced
// potential rows and the per-state sample counts. Free energies are
// kept unconstrained during the solve; the f_0 = 0 gauge is applied
// only at the reporting boundary.
type mbarState struct {
	u    [][]float64 // u[r][l], all samples flattened in state order
	nk   []float64   // N_k per sampled state
	logN []float64   // ln N_k
	k    int         // sampled states
	l    int         // evaluation states
	logD []float64   // per-sample log denominator at the current f
}

// MBAR jointly estimates the dimensionless free energies of all
// sampled states from the full reduced potential matrix, then reports
// pairwise differences for every evaluation state (including unsampled
// targets) with uncertainties from the asymptotic covariance.
//
// Solution strategy: self-consistent iteration until the update norm
// falls below the loose SCTolerance, then Newton steps on the
// log-likelihood gradient. Each Newton iteration is explicitly guarded:
// a step whose linear solve fails or that does not decrease the
// objective is replaced by one self-consistent sweep. The combined
// iteration budget exhausting yields a ConvergenceError carrying the
// best estimate. Sampled states with numerically zero overlap to the
// rest, and a Hessian that is singular even at convergence, yield a
// SingularSystemError naming the offending states when identifiable.
func MBAR(u *series.ReducedPotentials, opts MBAROptions) (*Result, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.K() < 2 {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"MBAR needs at least 2 sampled states, got %d", u.K())
	}
	if u.TotalSamples() < u.L() {
		return nil, errors.NewInsufficientData(u.L(), u.TotalSamples())
	}

	st := newMBARState(u)
	f, iterations, residual, err := st.solve(opts)
	if err != nil {
		return nil, err
	}

	// Free energies of every evaluation state, then the f_0 = 0 gauge.
	st.computeLogD(f)
	fAll := make([]float64, st.l)
	copy(fAll, f)
	for l := st.k; l < st.l; l++ {
		fAll[l] = st.perturbedF(l)
	}

	// Weights must be formed before pinning: they pair fAll with the
	// log denominators of the unconstrained solution.
	w := st.weights(fAll)
	pin := fAll[0]
	for l := range fAll {
		fAll[l] -= pin
	}

	// Degenerate states are detected on the overlap graph: a sampled
	// state with numerically zero overlap to the rest has converged to
	// a self-consistent but meaningless free energy, and the covariance
	// eigenvalue cutoff alone cannot see it (the extra null mode sits
	// at the sampling-noise scale, not machine epsilon).
	overlap := st.overlap(w)
	if disc := disconnectedStates(overlap); len(disc) > 0 {
		return nil, errors.NewSingularSystem(disc)
	}

	theta, err := st.covariance(w)
	if err != nil {
		return nil, err
	}

	warnPoorOverlap(overlap, opts.OverlapWarnThreshold)

	res := resultFromCovariance(u.States(), fAll, theta,
		newDiagnostics("MBAR", iterations, residual, true))
	res.Overlap = overlap
	return res, nil
}

func newMBARState(u *series.ReducedPotentials) *mbarState {
	st := &mbarState{
		k:    u.K(),
		l:    u.L(),
		nk:   make([]float64, u.K()),
		logN: make([]float64, u.K()),
	}
	for k := 0; k < u.K(); k++ {
		st.nk[k] = float64(u.N(k))
		st.logN[k] = math.Log(st.nk[k])
		for n := 0; n < u.N(k); n++ {
			st.u = append(st.u, u.Row(k, n))
		}
	}
	st.logD = make([]float64, len(st.u))
	return st
}

// computeLogD refreshes the per-sample log denominators
// log sum_k N_k exp(f_k - u_rk) for the given free energies.
func (st *mbarState) computeLogD(f []float64) {
	terms := make([]float64, st.k)
	for r, row := range st.u {
		for k := 0; k < st.k; k++ {
			terms[k] = st.logN[k] + f[k] - row[k]
		}
		st.logD[r] = floats.LogSumExp(terms)
	}
}

// perturbedF returns -log sum_r exp(-u_rl - logD_r), the free energy
// of evaluation state l under the current denominators.
func (st *mbarState) perturbedF(l int) float64 {
	terms := make([]float64, len(st.u))
	for r, row := range st.u {
		terms[r] = -row[l] - st.logD[r]
	}
	return -floats.LogSumExp(terms)
}

// scSweep returns the self-consistent update of the sampled-state free
// energies under the current denominators.
func (st *mbarState) scSweep() []float64 {
	fNew := make([]float64, st.k)
	for k := 0; k < st.k; k++ {
		fNew[k] = st.perturbedF(k)
	}
	return fNew
}

// objective is the MBAR negative log-likelihood (up to constants),
// invariant under a uniform shift of f.
func (st *mbarState) objective(f []float64) float64 {
	st.computeLogD(f)
	var obj float64
	for _, d := range st.logD {
		obj += d
	}
	for k := 0; k < st.k; k++ {
		obj -= st.nk[k] * f[k]
	}
	return obj
}

// solve runs the two-phase iteration and returns the unconstrained
// free energies of the sampled states.
func (st *mbarState) solve(opts MBAROptions) (f []float64, iterations int, residual float64, err error) {
	f = make([]float64, st.k)
	newtonPhase := false
	residual = math.Inf(1)

	for iterations = 0; iterations < opts.MaxIterations; iterations++ {
		st.computeLogD(f)
		fNew := st.scSweep()

		// residual: max |c_k - 1| where c_k = sum_r W_rk must reach 1
		// at self-consistency.
		residual = 0
		for k := 0; k < st.k; k++ {
			if r := math.Abs(math.Exp(f[k]-fNew[k]) - 1); r > residual {
				residual = r
			}
		}
		if residual < opts.Tolerance {
			return f, iterations, residual, nil
		}

		if !newtonPhase {
			delta := 0.0
			for k := 0; k < st.k; k++ {
				if d := math.Abs(fNew[k] - f[k]); d > delta {
					delta = d
				}
			}
			f = fNew
			if delta < opts.SCTolerance {
				logger.Logger.Debugw("MBAR switching to Newton phase",
					"iteration", iterations, "sc_delta", delta)
				newtonPhase = true
			}
			continue
		}

		// Newton phase. A failed solve or a non-decreasing objective
		// falls back to the self-consistent sweep for this iteration.
		fTrial, ok := st.newtonStep(f, fNew)
		if !ok {
			f = fNew
			continue
		}
		if st.objective(fTrial) >= st.objective(f) {
			logger.Logger.Debugw("MBAR Newton step rejected", "iteration", iterations)
			f = fNew
			continue
		}
		f = fTrial
	}

	best := f[st.k-1] - f[0]
	return nil, iterations, residual,
		errors.NewConvergence("MBAR", best, residual, iterations, 0)
}

// newtonStep solves H[1:,1:] dx = grad[1:] in the f_0-pinned subspace
// and returns f - dx. ok is false when the Hessian solve fails.
func (st *mbarState) newtonStep(f, fNew []float64) ([]float64, bool) {
	k := st.k

	grad := make([]float64, k)
	for i := 0; i < k; i++ {
		grad[i] = st.nk[i] * (math.Exp(f[i]-fNew[i]) - 1)
	}

	// W restricted to sampled states, under the current denominators.
	w := make([][]float64, len(st.u))
	colSum := make([]float64, k)
	for r, row := range st.u {
		wr := make([]float64, k)
		for i := 0; i < k; i++ {
			wr[i] = math.Exp(f[i] - row[i] - st.logD[r])
			colSum[i] += wr[i]
		}
		w[r] = wr
	}

	h := mat.NewDense(k-1, k-1, nil)
	for i := 1; i < k; i++ {
		for j := 1; j < k; j++ {
			var s float64
			for r := range w {
				s += w[r][i] * w[r][j]
			}
			v := -st.nk[i] * st.nk[j] * s
			if i == j {
				v += st.nk[i] * colSum[i]
			}
			h.Set(i-1, j-1, v)
		}
	}

	g := mat.NewVecDense(k-1, grad[1:])
	var dx mat.VecDense
	var lu mat.LU
	lu.Factorize(h)
	if err := lu.SolveVecTo(&dx, false, g); err != nil {
		return nil, false
	}

	fTrial := make([]float64, k)
	copy(fTrial, f)
	for i := 1; i < k; i++ {
		step := dx.AtVec(i - 1)
		if math.IsNaN(step) || math.IsInf(step, 0) {
			return nil, false
		}
		fTrial[i] -= step
	}
	return fTrial, true
}

// weights forms the full N x L weight matrix W_rl =
// exp(f_l - u_rl - logD_r) over every evaluation state.
func (st *mbarState) weights(fAll []float64) *mat.Dense {
	w := mat.NewDense(len(st.u), st.l, nil)
	for r, row := range st.u {
		for l := 0; l < st.l; l++ {
			w.Set(r, l, math.Exp(fAll[l]-row[l]-st.logD[r]))
		}
	}
	return w
}

// overlap computes the row-stochastic phase-space overlap matrix over
// sampled states: O_ij = N_j sum_r W_ri W_rj.
func (st *mbarState) overlap(w *mat.Dense) *mat.Dense {
	o := mat.NewDense(st.k, st.k, nil)
	for i := 0; i < st.k; i++ {
		for j := 0; j < st.k; j++ {
			var s float64
			for r := 0; r < len(st.u); r++ {
				s += w.At(r, i) * w.At(r, j)
			}
			o.Set(i, j, st.nk[j]*s)
		}
	}
	return o
}

// overlapDisconnected is the overlap below which two sampled states are
// treated as sharing no configuration space at all. It marks numerical
// zero, not poor sampling; merely thin overlap is a warning, not an
// error.
const overlapDisconnected = 1e-12

// disconnectedStates returns the sampled states unreachable from state
// 0 through nonzero phase-space overlap, nil when the overlap graph is
// connected. Unreachable states make the joint estimate singular: their
// free energies are defined only up to a per-component additive
// constant.
func disconnectedStates(o *mat.Dense) []int {
	k, _ := o.Dims()
	seen := make([]bool, k)
	seen[0] = true
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := 0; j < k; j++ {
			if seen[j] {
				continue
			}
			if o.At(i, j) > overlapDisconnected || o.At(j, i) > overlapDisconnected {
				seen[j] = true
				stack = append(stack, j)
			}
		}
	}
	var out []int
	for i, reached := range seen {
		if !reached {
			out = append(out, i)
		}
	}
	return out
}

func warnPoorOverlap(o *mat.Dense, threshold float64) {
	k, _ := o.Dims()
	for i := 0; i < k-1; i++ {
		if v := o.At(i, i+1); v < threshold {
			logger.Logger.Warnw("poor phase-space overlap between adjacent states",
				"state", i,
				"neighbor", i+1,
				"overlap", v,
				"threshold", threshold,
			)
		}
	}
}

// covariance computes the asymptotic covariance of the free energies
// via the SVD identity Theta = V S (I - S V^T N V S)^+ S V^T on the
// weight matrix, equivalent to inverting the likelihood Hessian on the
// estimated-state subspace and extending naturally to unsampled target
// states. The pseudo-inverse drops the single gauge null mode; any
// further numerically null mode means degenerate states.
func (st *mbarState) covariance(w *mat.Dense) (*mat.SymDense, error) {
	var svd mat.SVD
	if !svd.Factorize(w, mat.SVDThin) {
		return nil, errors.NewSingularSystem(nil)
	}
	s := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	// A = I - S V^T N V S, symmetric L x L. Unsampled target states
	// carry zero sample weight.
	l := st.l
	a := mat.NewSymDense(l, nil)
	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			var m float64
			for k := 0; k < st.k; k++ {
				m += v.At(k, i) * st.nk[k] * v.At(k, j)
			}
			val := -s[i] * m * s[j]
			if i == j {
				val += 1
			}
			a.SetSym(i, j, val)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		return nil, errors.NewSingularSystem(nil)
	}
	vals := eig.Values(nil)
	var q mat.Dense
	eig.VectorsTo(&q)

	maxAbs := 0.0
	for _, ev := range vals {
		if a := math.Abs(ev); a > maxAbs {
			maxAbs = a
		}
	}
	cutoff := 1e-10 * maxAbs

	// Pseudo-inverse; one dropped mode is the gauge freedom, more
	// signal degenerate (zero-overlap duplicate) states.
	dropped := 0
	var degenerate []int
	inv := make([]float64, l)
	for m, ev := range vals {
		if math.Abs(ev) <= cutoff {
			dropped++
			if dropped > 1 {
				degenerate = append(degenerate, dominantStates(&v, &q, s, m)...)
			}
			inv[m] = 0
			continue
		}
		inv[m] = 1 / ev
	}
	if dropped > 1 {
		return nil, errors.NewSingularSystem(dedupInts(degenerate))
	}

	// Theta = (V S Q) diag(inv) (V S Q)^T.
	b := mat.NewDense(l, l, nil) // b = V S Q
	for i := 0; i < l; i++ {
		for m := 0; m < l; m++ {
			var sum float64
			for p := 0; p < l; p++ {
				sum += v.At(i, p) * s[p] * q.At(p, m)
			}
			b.Set(i, m, sum)
		}
	}
	theta := mat.NewSymDense(l, nil)
	for i := 0; i < l; i++ {
		for j := i; j < l; j++ {
			var sum float64
			for m := 0; m < l; m++ {
				sum += b.At(i, m) * inv[m] * b.At(j, m)
			}
			theta.SetSym(i, j, sum)
		}
	}
	return theta, nil
}

// dominantStates maps a null eigenmode back to the evaluation states
// that dominate it, identifying the offending degenerate states.
func dominantStates(v, q *mat.Dense, s []float64, mode int) []int {
	l, _ := v.Dims()
	proj := make([]float64, l)
	maxAbs := 0.0
	for i := 0; i < l; i++ {
		var sum float64
		for p := 0; p < l; p++ {
			sum += v.At(i, p) * s[p] * q.At(p, mode)
		}
		proj[i] = math.Abs(sum)
		if proj[i] > maxAbs {
			maxAbs = proj[i]
		}
	}
	var states []int
	for i, p := range proj {
		if p > 0.5*maxAbs && maxAbs > 0 {
			states = append(states, i)
		}
	}
	return states
}

func dedupInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	var out []int
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
