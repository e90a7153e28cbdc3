package timeseries

import (
	"gonum.org/v1/gonum/stat"

	"github.com/alchemgo/alchemgo/errors"
)

// StatisticalInefficiency estimates the statistical inefficiency g >= 1
// of a scalar time series: the factor by which correlated samples
// overcount independent information.
//
// The estimator accumulates g = 1 + 2*sum C(t)*(1 - t/N) over the
// normalized autocorrelation function C(t) of the mean-subtracted
// series. Termination is a running-sum heuristic, not a fixed window:
// the sum stops at the first lag beyond opts.MinLag where C(t) falls to
// or below opts.NoiseCutoff, i.e. where the remaining correlation is
// indistinguishable from noise.
//
// A zero-variance series returns g = 1.0 by convention. A series
// shorter than opts.MinSamples fails with an InsufficientDataError.
func StatisticalInefficiency(values []float64, opts Options) (float64, error) {
	n := len(values)
	if n < opts.MinSamples {
		return 0, errors.NewInsufficientData(opts.MinSamples, n)
	}

	mean := stat.Mean(values, nil)
	delta := make([]float64, n)
	var variance float64
	for i, v := range values {
		delta[i] = v - mean
		variance += delta[i] * delta[i]
	}
	variance /= float64(n)

	if variance <= 0 {
		// Constant series carries no correlation information.
		return 1.0, nil
	}

	g := 1.0
	step := 1
	for t := 1; t < n-1; t += step {
		c := autocorrelation(delta, t, variance)
		if t > opts.MinLag && c <= opts.NoiseCutoff {
			break
		}
		// The step width weights each accumulated lag when the grid is
		// coarsened, approximating the skipped terms.
		g += 2.0 * c * (1.0 - float64(t)/float64(n)) * float64(step)
		if opts.StepFactor > 1 {
			step *= opts.StepFactor
		}
	}

	if g < 1.0 {
		g = 1.0
	}
	return g, nil
}

// StatisticalInefficiencyMultiple estimates a single shared g from
// several series of the same observable (e.g. the lambda components of
// a gradient series). Correlation functions are pooled across series,
// weighted by the number of sample pairs each contributes at a lag.
func StatisticalInefficiencyMultiple(seriesList [][]float64, opts Options) (float64, error) {
	if len(seriesList) == 0 {
		return 0, errors.Wrap(errors.ErrInvalidInput, "no series supplied")
	}
	if len(seriesList) == 1 {
		return StatisticalInefficiency(seriesList[0], opts)
	}

	maxLen := 0
	var pooledVar float64
	var total int
	deltas := make([][]float64, len(seriesList))
	for i, s := range seriesList {
		if len(s) < opts.MinSamples {
			return 0, errors.NewInsufficientData(opts.MinSamples, len(s))
		}
		if len(s) > maxLen {
			maxLen = len(s)
		}
		mean := stat.Mean(s, nil)
		deltas[i] = make([]float64, len(s))
		for j, v := range s {
			deltas[i][j] = v - mean
			pooledVar += deltas[i][j] * deltas[i][j]
		}
		total += len(s)
	}
	pooledVar /= float64(total)
	if pooledVar <= 0 {
		return 1.0, nil
	}

	g := 1.0
	step := 1
	for t := 1; t < maxLen-1; t += step {
		var num float64
		var pairs int
		for _, d := range deltas {
			for i := 0; i+t < len(d); i++ {
				num += d[i] * d[i+t]
			}
			if len(d) > t {
				pairs += len(d) - t
			}
		}
		if pairs == 0 {
			break
		}
		c := num / (float64(pairs) * pooledVar)
		if t > opts.MinLag && c <= opts.NoiseCutoff {
			break
		}
		g += 2.0 * c * (1.0 - float64(t)/float64(maxLen)) * float64(step)
		if opts.StepFactor > 1 {
			step *= opts.StepFactor
		}
	}

	if g < 1.0 {
		g = 1.0
	}
	return g, nil
}

// autocorrelation returns the normalized autocorrelation of the
// mean-subtracted series delta at the given lag.
func autocorrelation(delta []float64, lag int, variance float64) float64 {
	var sum float64
	for i := 0; i+lag < len(delta); i++ {
		sum += delta[i] * delta[i+lag]
	}
	return sum / (float64(len(delta)-lag) * variance)
}

// EffectiveSampleSize converts a raw sample count and statistical
// inefficiency into the effective number of uncorrelated samples:
// floor(n/g), floored at 1.
func EffectiveSampleSize(n int, g float64) int {
	if g < 1.0 {
		g = 1.0
	}
	neff := int(float64(n) / g)
	if neff < 1 {
		neff = 1
	}
	return neff
}
