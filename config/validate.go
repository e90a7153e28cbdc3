package config

import "github.com/alchemgo/alchemgo/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Timeseries.MinLag < 1 {
		return errors.Newf("timeseries.min_lag must be >= 1, got %d", c.Timeseries.MinLag)
	}
	if c.Timeseries.StepFactor < 1 {
		return errors.Newf("timeseries.step_factor must be >= 1, got %d", c.Timeseries.StepFactor)
	}
	if c.Timeseries.MinSamples < 4 {
		return errors.Newf("timeseries.min_samples must be >= 4, got %d", c.Timeseries.MinSamples)
	}
	if c.Timeseries.MaxCandidates < 1 {
		return errors.Newf("timeseries.max_candidates must be >= 1, got %d", c.Timeseries.MaxCandidates)
	}

	switch c.TI.Quadrature {
	case "trapezoid", "cubic":
	default:
		return errors.Newf("ti.quadrature must be \"trapezoid\" or \"cubic\", got %q", c.TI.Quadrature)
	}

	if c.BAR.Tolerance <= 0 {
		return errors.Newf("bar.tolerance must be > 0, got %g", c.BAR.Tolerance)
	}
	if c.BAR.MaxIterations < 1 {
		return errors.Newf("bar.max_iterations must be >= 1, got %d", c.BAR.MaxIterations)
	}

	if c.MBAR.SCTolerance <= 0 {
		return errors.Newf("mbar.sc_tolerance must be > 0, got %g", c.MBAR.SCTolerance)
	}
	if c.MBAR.Tolerance <= 0 {
		return errors.Newf("mbar.tolerance must be > 0, got %g", c.MBAR.Tolerance)
	}
	if c.MBAR.MaxIterations < 1 {
		return errors.Newf("mbar.max_iterations must be >= 1, got %d", c.MBAR.MaxIterations)
	}
	if c.MBAR.OverlapWarnThreshold < 0 || c.MBAR.OverlapWarnThreshold > 1 {
		return errors.Newf("mbar.overlap_warn_threshold must be in [0, 1], got %g", c.MBAR.OverlapWarnThreshold)
	}

	return nil
}
