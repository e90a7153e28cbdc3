// Package parsing extracts gradient series and reduced potential
// tables from molecular dynamics output files: GROMACS dhdl XVG files
// and GOMC free-energy tables, optionally gzip- or bzip2-compressed.
//
// All extractors convert energies to reduced (dimensionless) units
// with beta = 1/(k_B*T), so their outputs feed the timeseries and
// estimator packages directly.
package parsing

import (
	"math"
	"strconv"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/series"
)

// KB is the Boltzmann constant in kJ/(mol*K), matching the energy
// units of both supported file formats.
const KB = 8.3144621e-3

// Beta returns 1/(k_B*T) for a temperature in Kelvin.
func Beta(temperature float64) (float64, error) {
	if temperature <= 0 || math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return 0, errors.Wrapf(errors.ErrInvalidInput,
			"temperature must be positive and finite, got %v", temperature)
	}
	return 1 / (KB * temperature), nil
}

// PotentialTable holds one sampling window's frames of reduced
// potentials evaluated under a set of target lambda vectors. Rows[n][j]
// is frame n under Targets[j], already multiplied by beta. Tables from
// every window of a campaign are assembled into a
// series.ReducedPotentials by the caller.
type PotentialTable struct {
	State   series.LambdaState
	Time    []float64
	Targets [][]float64
	Rows    [][]float64
}

// Validate checks internal consistency of the table.
func (p *PotentialTable) Validate() error {
	if len(p.Rows) != len(p.Time) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"potential table has %d rows but %d times", len(p.Rows), len(p.Time))
	}
	if len(p.Targets) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "potential table has no target states")
	}
	for n, row := range p.Rows {
		if len(row) != len(p.Targets) {
			return errors.Wrapf(errors.ErrInvalidInput,
				"row %d has %d entries, want %d", n, len(row), len(p.Targets))
		}
	}
	for i := 1; i < len(p.Time); i++ {
		if p.Time[i] <= p.Time[i-1] {
			return errors.Wrapf(errors.ErrInvalidInput,
				"time not strictly increasing at frame %d", i)
		}
	}
	return nil
}

// parseFields converts one whitespace-split data line to floats,
// enforcing the column count fixed by the header or first data row.
func parseFields(fields []string, want, lineno int) ([]float64, error) {
	if want > 0 && len(fields) != want {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"line %d has %d columns, want %d", lineno, len(fields), want)
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput,
				"line %d column %d: %q is not numeric", lineno, i, f)
		}
		vals[i] = v
	}
	return vals, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("non-finite value %q", s)
	}
	return v, nil
}
