package estimator

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/alchemgo/alchemgo/config"
	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/series"
)

// Quadrature rules for thermodynamic integration.
const (
	QuadTrapezoid = "trapezoid"
	QuadCubic     = "cubic" // natural cubic spline, scalar lambda paths
)

// TIOptions configures the TI estimator.
type TIOptions struct {
	Quadrature string
}

// DefaultTIOptions mirrors the config package defaults.
func DefaultTIOptions() TIOptions {
	return TIOptionsFromConfig(config.Default())
}

// TIOptionsFromConfig extracts TI options from an alchemgo configuration.
func TIOptionsFromConfig(c *config.Config) TIOptions {
	return TIOptions{Quadrature: c.TI.Quadrature}
}

// GradientStats summarizes the decorrelated gradient series of one
// lambda state: the mean dH/dlambda per component and its standard
// error over the effective sample count.
type GradientStats struct {
	State  series.LambdaState
	Mean   []float64
	StdErr []float64
}

// NewGradientStats computes per-component means and standard errors
// from a decorrelated gradient series. neff is the effective sample
// count from the decorrelation analysis; pass g.Len() for IID input.
func NewGradientStats(g series.Gradients, neff int) (GradientStats, error) {
	if err := g.Validate(); err != nil {
		return GradientStats{}, err
	}
	if g.Len() < 2 {
		return GradientStats{}, errors.NewInsufficientData(2, g.Len())
	}
	if neff < 1 {
		neff = 1
	}

	nc := g.Components()
	gs := GradientStats{
		State:  g.State,
		Mean:   make([]float64, nc),
		StdErr: make([]float64, nc),
	}
	column := make([]float64, g.Len())
	for c := 0; c < nc; c++ {
		for n, row := range g.Samples {
			column[n] = row[c]
		}
		mean, variance := stat.MeanVariance(column, nil)
		gs.Mean[c] = mean
		gs.StdErr[c] = math.Sqrt(variance / float64(neff))
	}
	return gs, nil
}

// TI integrates mean potential-energy gradients over the lambda path,
// yielding the free-energy difference between every pair of states.
// States must be supplied in strictly monotonic lambda order. Errors of
// adjacent-segment contributions are independent and combine in
// quadrature.
func TI(states []GradientStats, opts TIOptions) (*Result, error) {
	if err := validateTIInput(states); err != nil {
		return nil, err
	}

	k := len(states)
	segMean := make([]float64, k-1)
	segVar := make([]float64, k-1)

	// Trapezoid handles any lambda dimensionality and always provides
	// the error propagation weights.
	for s := 0; s < k-1; s++ {
		lo, hi := states[s], states[s+1]
		for c := range lo.Mean {
			dl := hi.State.Components[c] - lo.State.Components[c]
			segMean[s] += dl * (lo.Mean[c] + hi.Mean[c]) / 2
			segVar[s] += (dl / 2) * (dl / 2) * (lo.StdErr[c]*lo.StdErr[c] + hi.StdErr[c]*hi.StdErr[c])
		}
	}

	if opts.Quadrature == QuadCubic {
		if c, ok := scalarPathComponent(states); ok {
			if err := cubicSegmentMeans(states, c, segMean); err != nil {
				return nil, err
			}
		}
		// Multi-component paths keep the trapezoid means; a spline in
		// one coordinate is undefined when several vary at once.
	}

	lambdas := make([]series.LambdaState, k)
	f := make([]float64, k)
	cumVar := make([]float64, k)
	lambdas[0] = states[0].State
	for s := 0; s < k-1; s++ {
		f[s+1] = f[s] + segMean[s]
		cumVar[s+1] = cumVar[s] + segVar[s]
		lambdas[s+1] = states[s+1].State
	}

	return resultFromCumulative(lambdas, f, cumVar,
		newDiagnostics("TI", 0, 0, true)), nil
}

func validateTIInput(states []GradientStats) error {
	if len(states) < 2 {
		return errors.Wrapf(errors.ErrInvalidInput,
			"TI needs at least 2 lambda states, got %d", len(states))
	}
	nc := len(states[0].Mean)
	for i, s := range states {
		if len(s.State.Components) != nc || len(s.Mean) != nc || len(s.StdErr) != nc {
			return errors.Wrapf(errors.ErrInvalidInput,
				"state %d: lambda/gradient component counts disagree", i)
		}
		for c := 0; c < nc; c++ {
			if math.IsNaN(s.Mean[c]) || math.IsInf(s.Mean[c], 0) {
				return errors.Wrapf(errors.ErrInvalidInput,
					"state %d: non-finite mean gradient", i)
			}
		}
	}
	// Strictly monotonic path: no component may decrease, and each
	// consecutive pair must differ.
	for i := 1; i < len(states); i++ {
		moved := false
		for c := 0; c < nc; c++ {
			d := states[i].State.Components[c] - states[i-1].State.Components[c]
			if d < 0 {
				return errors.Wrapf(errors.ErrInvalidInput,
					"lambda component %d decreases between states %d and %d", c, i-1, i)
			}
			if d > 0 {
				moved = true
			}
		}
		if !moved {
			return errors.Wrapf(errors.ErrInvalidInput,
				"duplicate lambda states at %d and %d", i-1, i)
		}
	}
	return nil
}

// scalarPathComponent reports the single lambda component that varies
// along the path, if exactly one does.
func scalarPathComponent(states []GradientStats) (int, bool) {
	varying := -1
	nc := len(states[0].State.Components)
	for c := 0; c < nc; c++ {
		for i := 1; i < len(states); i++ {
			if states[i].State.Components[c] != states[0].State.Components[c] {
				if varying >= 0 && varying != c {
					return -1, false
				}
				varying = c
				break
			}
		}
	}
	return varying, varying >= 0
}

// cubicSegmentMeans replaces the trapezoid segment means with natural
// cubic spline quadrature along the varying lambda component. The
// spline is integrated on a dense grid per segment; error weights stay
// trapezoidal.
func cubicSegmentMeans(states []GradientStats, comp int, segMean []float64) error {
	xs := make([]float64, len(states))
	ys := make([]float64, len(states))
	for i, s := range states {
		xs[i] = s.State.Components[comp]
		ys[i] = s.Mean[comp]
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(xs, ys); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}

	const gridPoints = 65
	grid := make([]float64, gridPoints)
	vals := make([]float64, gridPoints)
	for s := 0; s < len(states)-1; s++ {
		lo, hi := xs[s], xs[s+1]
		for i := 0; i < gridPoints; i++ {
			grid[i] = lo + (hi-lo)*float64(i)/float64(gridPoints-1)
			vals[i] = spline.Predict(grid[i])
		}
		segMean[s] = integrate.Trapezoidal(grid, vals)
	}
	return nil
}
