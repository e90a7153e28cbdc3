// Package timeseries implements decorrelation analysis of simulation
// output: statistical inefficiency estimation, equilibration detection,
// and subsampling to effectively-uncorrelated samples. The subsampled
// series, not the raw series, is what the estimators consume; their
// error estimates assume IID inputs.
package timeseries

import "github.com/alchemgo/alchemgo/config"

// Options holds the tunable parameters of the decorrelation analysis.
// The zero value is not usable; start from DefaultOptions or FromConfig.
type Options struct {
	// MinLag lags are always accumulated into the running sum before
	// NoiseCutoff may terminate it.
	MinLag int

	// NoiseCutoff terminates the autocorrelation running sum at the
	// first lag beyond MinLag whose normalized autocorrelation is at or
	// below this value. 0 is the first-non-positive convention.
	NoiseCutoff float64

	// StepFactor multiplies the lag step after every accumulated lag.
	// 1 visits every lag; larger values coarsen the grid for long series.
	StepFactor int

	// MinSamples is the shortest series accepted by the analyzer.
	MinSamples int

	// MaxCandidates bounds the equilibration start-point grid.
	MaxCandidates int
}

// DefaultOptions mirrors the config package defaults.
func DefaultOptions() Options {
	return FromConfig(config.Default())
}

// FromConfig extracts analysis options from an alchemgo configuration.
func FromConfig(c *config.Config) Options {
	return Options{
		MinLag:        c.Timeseries.MinLag,
		NoiseCutoff:   c.Timeseries.NoiseCutoff,
		StepFactor:    c.Timeseries.StepFactor,
		MinSamples:    c.Timeseries.MinSamples,
		MaxCandidates: c.Timeseries.MaxCandidates,
	}
}
