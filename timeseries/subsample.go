package timeseries

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/alchemgo/alchemgo/errors"
	"github.com/alchemgo/alchemgo/logger"
	"github.com/alchemgo/alchemgo/series"
)

// SubsampleIndices returns the indices of approximately independent
// samples: t0, then indices spaced g apart with nearest-index rounding.
// The first selected index is always t0. The result length equals the
// effective sample count to within one from rounding.
func SubsampleIndices(n, t0 int, g float64) []int {
	if g < 1.0 {
		g = 1.0
	}
	var indices []int
	for i := 0; ; i++ {
		idx := t0 + int(math.Round(float64(i)*g))
		if idx >= n {
			break
		}
		indices = append(indices, idx)
	}
	return indices
}

// Subsample extracts the decorrelated subsequence of s starting at t0
// with stride g. With g = 1 and t0 = 0 the series is returned unchanged.
func Subsample(s series.Series, t0 int, g float64) series.Series {
	indices := SubsampleIndices(s.Len(), t0, g)
	out := series.Series{
		State:  s.State,
		Time:   make([]float64, len(indices)),
		Values: make([]float64, len(indices)),
	}
	for i, idx := range indices {
		out.Time[i] = s.Time[idx]
		out.Values[i] = s.Values[idx]
	}
	return out
}

// SubsampleGradients extracts the decorrelated frames of a gradient
// series using a shared equilibration point and inefficiency.
func SubsampleGradients(g series.Gradients, t0 int, ineff float64) series.Gradients {
	return g.Select(SubsampleIndices(g.Len(), t0, ineff))
}

// Analysis records how a series was decorrelated. It is a pure function
// of (series, options): recompute rather than mutate when either changes.
type Analysis struct {
	T0   int     // equilibration index
	G    float64 // statistical inefficiency of the production region
	Neff int     // effective sample count of the subsampled series
}

// Decorrelate runs the full preprocessing pipeline on one series:
// validation, equilibration detection, inefficiency estimation over the
// production region, and subsampling.
func Decorrelate(s series.Series, opts Options) (series.Series, Analysis, error) {
	if err := s.Validate(); err != nil {
		return series.Series{}, Analysis{}, err
	}
	t0, g, neff, err := DetectEquilibration(s.Values, opts)
	if err != nil {
		return series.Series{}, Analysis{}, errors.Wrapf(err, "state %d", s.State.Index)
	}
	sub := Subsample(s, t0, g)
	logger.Logger.Debugw("decorrelated series",
		"state", s.State.Index,
		"t0", t0,
		"g", g,
		"n_eff", neff,
		"n_raw", s.Len(),
	)
	return sub, Analysis{T0: t0, G: g, Neff: neff}, nil
}

// DecorrelateAll decorrelates the series of every lambda state
// concurrently. States are independent inputs, so the per-state
// analyses need no coordination; results keep input order.
func DecorrelateAll(ctx context.Context, in []series.Series, opts Options) ([]series.Series, []Analysis, error) {
	out := make([]series.Series, len(in))
	analyses := make([]Analysis, len(in))

	eg, _ := errgroup.WithContext(ctx)
	for i := range in {
		eg.Go(func() error {
			sub, a, err := Decorrelate(in[i], opts)
			if err != nil {
				return err
			}
			out[i] = sub
			analyses[i] = a
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return out, analyses, nil
}
