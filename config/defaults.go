package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Decorrelation / equilibration defaults
	v.SetDefault("timeseries.min_lag", 3)
	v.SetDefault("timeseries.noise_cutoff", 0.0) // stop at first non-positive C(t)
	v.SetDefault("timeseries.step_factor", 1)    // visit every lag
	v.SetDefault("timeseries.min_samples", 4)
	v.SetDefault("timeseries.max_candidates", 100)

	// TI defaults
	v.SetDefault("ti.quadrature", "trapezoid")

	// BAR defaults
	v.SetDefault("bar.tolerance", 1e-10)
	v.SetDefault("bar.max_iterations", 500)

	// MBAR defaults
	v.SetDefault("mbar.sc_tolerance", 1e-2)
	v.SetDefault("mbar.tolerance", 1e-12)
	v.SetDefault("mbar.max_iterations", 1000)
	v.SetDefault("mbar.overlap_warn_threshold", 0.03)
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults always unmarshal; reaching here is a programming error.
		panic(err)
	}
	return cfg
}
