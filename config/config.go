// Package config holds the analysis configuration for alchemgo.
//
// Every numerical heuristic the core exposes as tunable lives here so
// that no solver constant is hidden: most importantly the termination
// heuristic of the autocorrelation running sum, which admits several
// reasonable conventions and therefore must be explicit.
package config

// Config represents the core alchemgo configuration
type Config struct {
	Timeseries TimeseriesConfig `mapstructure:"timeseries"`
	TI         TIConfig         `mapstructure:"ti"`
	BAR        BARConfig        `mapstructure:"bar"`
	MBAR       MBARConfig       `mapstructure:"mbar"`
}

// TimeseriesConfig configures decorrelation and equilibration analysis
type TimeseriesConfig struct {
	// MinLag is the number of initial lags always accumulated into the
	// statistical inefficiency before the noise cutoff may terminate
	// the running sum (default: 3)
	MinLag int `mapstructure:"min_lag"`

	// NoiseCutoff terminates the autocorrelation running sum at the
	// first lag beyond MinLag whose normalized autocorrelation falls to
	// or below this value (default: 0.0, the first-negative convention)
	NoiseCutoff float64 `mapstructure:"noise_cutoff"`

	// StepFactor coarsens the lag grid for long series: after each
	// accumulated lag the step is multiplied by this factor. 1 visits
	// every lag (default: 1)
	StepFactor int `mapstructure:"step_factor"`

	// MinSamples is the shortest series the analyzer accepts (default: 4)
	MinSamples int `mapstructure:"min_samples"`

	// MaxCandidates bounds the equilibration start-point grid; longer
	// series are scanned on an evenly coarsened grid (default: 100)
	MaxCandidates int `mapstructure:"max_candidates"`
}

// TIConfig configures thermodynamic integration
type TIConfig struct {
	// Quadrature selects the integration rule: "trapezoid" or "cubic"
	// (natural cubic spline; scalar lambda paths only) (default: "trapezoid")
	Quadrature string `mapstructure:"quadrature"`
}

// BARConfig configures the Bennett acceptance ratio solver
type BARConfig struct {
	// Tolerance on successive free-energy estimates (default: 1e-10)
	Tolerance float64 `mapstructure:"tolerance"`

	// MaxIterations bounds the Newton/bisection loop (default: 500)
	MaxIterations int `mapstructure:"max_iterations"`
}

// MBARConfig configures the multistate Bennett acceptance ratio solver
type MBARConfig struct {
	// SCTolerance is the loose tolerance at which the self-consistent
	// phase hands over to Newton (default: 1e-2)
	SCTolerance float64 `mapstructure:"sc_tolerance"`

	// Tolerance is the gradient-norm tolerance for final convergence
	// (default: 1e-12)
	Tolerance float64 `mapstructure:"tolerance"`

	// MaxIterations bounds both phases combined (default: 1000)
	MaxIterations int `mapstructure:"max_iterations"`

	// OverlapWarnThreshold triggers a diagnostic warning when adjacent
	// sampled states overlap below this fraction (default: 0.03)
	OverlapWarnThreshold float64 `mapstructure:"overlap_warn_threshold"`
}
