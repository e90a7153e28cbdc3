// Package series holds the data model for alchemical simulation output:
// per-state sample series, gradient series, and the ragged reduced
// potential matrix consumed by the estimators. Values are immutable
// inputs in consistent reduced (kT) units; unit conversion is the
// parser's responsibility.
package series

import (
	"math"

	"github.com/alchemgo/alchemgo/errors"
)

// LambdaState identifies one point on the alchemical interpolation
// path. Components holds the coupling parameters; a scalar lambda is a
// one-component vector.
type LambdaState struct {
	Index      int
	Components []float64
}

// Equal reports whether two states have identical coupling parameters.
func (s LambdaState) Equal(o LambdaState) bool {
	if len(s.Components) != len(o.Components) {
		return false
	}
	for i, c := range s.Components {
		if c != o.Components[i] {
			return false
		}
	}
	return true
}

// Series is an ordered scalar time series sampled at one lambda state.
type Series struct {
	State  LambdaState
	Time   []float64
	Values []float64
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Values) }

// Validate enforces the series invariants: equal time/value lengths,
// strictly increasing time index, and finite values. Gaps cannot be
// represented in a dense slice, so a strictly increasing index is the
// whole ordering contract.
func (s *Series) Validate() error {
	if len(s.Time) != len(s.Values) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"series for state %d: %d time points but %d values",
			s.State.Index, len(s.Time), len(s.Values))
	}
	for i := 1; i < len(s.Time); i++ {
		if s.Time[i] <= s.Time[i-1] {
			return errors.Wrapf(errors.ErrInvalidInput,
				"series for state %d: time index not strictly increasing at sample %d (%g after %g)",
				s.State.Index, i, s.Time[i], s.Time[i-1])
		}
	}
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(errors.ErrInvalidInput,
				"series for state %d: non-finite value at sample %d", s.State.Index, i)
		}
	}
	return nil
}

// Slice returns a view of the samples in [from, to).
func (s *Series) Slice(from, to int) Series {
	return Series{State: s.State, Time: s.Time[from:to], Values: s.Values[from:to]}
}

// Gradients is an ordered series of potential-energy derivatives with
// respect to lambda, one column per lambda component.
type Gradients struct {
	State   LambdaState
	Time    []float64
	Samples [][]float64 // Samples[n][c] = dH/dlambda_c at frame n
}

// Len returns the number of frames.
func (g *Gradients) Len() int { return len(g.Samples) }

// Components returns the number of lambda components, 0 when empty.
func (g *Gradients) Components() int {
	if len(g.Samples) == 0 {
		return 0
	}
	return len(g.Samples[0])
}

// Component extracts one gradient component as a scalar Series,
// suitable for decorrelation analysis.
func (g *Gradients) Component(c int) Series {
	values := make([]float64, len(g.Samples))
	for n, row := range g.Samples {
		values[n] = row[c]
	}
	return Series{State: g.State, Time: g.Time, Values: values}
}

// Validate enforces the gradient invariants: strictly increasing time,
// rectangular sample rows, finite entries.
func (g *Gradients) Validate() error {
	if len(g.Time) != len(g.Samples) {
		return errors.Wrapf(errors.ErrInvalidInput,
			"gradients for state %d: %d time points but %d frames",
			g.State.Index, len(g.Time), len(g.Samples))
	}
	for i := 1; i < len(g.Time); i++ {
		if g.Time[i] <= g.Time[i-1] {
			return errors.Wrapf(errors.ErrInvalidInput,
				"gradients for state %d: time index not strictly increasing at frame %d",
				g.State.Index, i)
		}
	}
	nc := g.Components()
	if nc == 0 && len(g.Samples) > 0 {
		return errors.Wrapf(errors.ErrInvalidInput,
			"gradients for state %d: zero lambda components", g.State.Index)
	}
	for n, row := range g.Samples {
		if len(row) != nc {
			return errors.Wrapf(errors.ErrInvalidInput,
				"gradients for state %d: frame %d has %d components, want %d",
				g.State.Index, n, len(row), nc)
		}
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(errors.ErrInvalidInput,
					"gradients for state %d: non-finite dH/dl[%d] at frame %d",
					g.State.Index, c, n)
			}
		}
	}
	return nil
}

// Select returns a new Gradients holding only the given frame indices.
// Indices must be increasing; used by the subsampler.
func (g *Gradients) Select(indices []int) Gradients {
	out := Gradients{
		State:   g.State,
		Time:    make([]float64, len(indices)),
		Samples: make([][]float64, len(indices)),
	}
	for i, idx := range indices {
		out.Time[i] = g.Time[idx]
		out.Samples[i] = g.Samples[idx]
	}
	return out
}
