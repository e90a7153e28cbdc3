package timeseries

import (
	"github.com/alchemgo/alchemgo/errors"
)

// DetectEquilibration locates the start of the production region of a
// series: the index t0 whose suffix [t0, N) maximizes the effective
// number of uncorrelated samples. Discarding the initial transient
// raises N_eff even though fewer raw samples remain; scanning candidate
// start points and maximizing balances the two.
//
// Ties are broken toward the earliest candidate, preferring more data
// when effective counts are equal. For long series the candidate grid
// is evenly coarsened to at most opts.MaxCandidates points.
//
// Returns the equilibration index, the statistical inefficiency of the
// production suffix, and its effective sample count. Fails with an
// InsufficientDataError when no candidate yields N_eff >= 1.
func DetectEquilibration(values []float64, opts Options) (t0 int, g float64, neff int, err error) {
	n := len(values)
	if n < opts.MinSamples {
		return 0, 0, 0, errors.NewInsufficientData(opts.MinSamples, n)
	}

	// Latest start point that still leaves an analyzable suffix.
	last := n - opts.MinSamples
	stride := 1
	if opts.MaxCandidates > 0 && last/opts.MaxCandidates >= 1 {
		stride = last/opts.MaxCandidates + 1
	}

	bestNeff := -1.0
	bestT, bestG := 0, 1.0
	for t := 0; t <= last; t += stride {
		gt, gerr := StatisticalInefficiency(values[t:], opts)
		if gerr != nil {
			break // suffixes only get shorter
		}
		ne := float64(n-t) / gt
		// Strict improvement keeps the earliest candidate on ties.
		if ne > bestNeff {
			bestNeff = ne
			bestT = t
			bestG = gt
		}
	}

	if bestNeff < 1.0 {
		return 0, 0, 0, errors.NewInsufficientData(opts.MinSamples, n)
	}
	return bestT, bestG, EffectiveSampleSize(n-bestT, bestG), nil
}
