package series

import (
	"math"

	"github.com/alchemgo/alchemgo/errors"
)

// ReducedPotentials is the u_kln matrix: for each sample n drawn from
// sampled state k, the reduced potential of that configuration
// evaluated under every evaluation state l. Sample counts differ
// across k, so rows are stored flat with an explicit offset/length
// table per sampled state rather than a uniform 3-D array.
//
// Evaluation states are ordered with the K sampled states first,
// followed by any unsampled target states.
type ReducedPotentials struct {
	states  []LambdaState // evaluation states, sampled first
	sampled int           // number of sampled states K
	offsets []int         // row offset of each sampled state's block
	counts  []int         // N_k per sampled state
	data    []float64     // row-major: data[row*L() + l]
}

// NewReducedPotentials creates an empty matrix over the given
// evaluation states, of which the first `sampled` were sampled.
func NewReducedPotentials(states []LambdaState, sampled int) (*ReducedPotentials, error) {
	if sampled < 1 || sampled > len(states) {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"sampled state count %d out of range for %d evaluation states", sampled, len(states))
	}
	return &ReducedPotentials{
		states:  states,
		sampled: sampled,
	}, nil
}

// K returns the number of sampled states.
func (u *ReducedPotentials) K() int { return u.sampled }

// L returns the number of evaluation states (K sampled + targets).
func (u *ReducedPotentials) L() int { return len(u.states) }

// States returns the evaluation states in matrix order.
func (u *ReducedPotentials) States() []LambdaState { return u.states }

// N returns the sample count of sampled state k.
func (u *ReducedPotentials) N(k int) int { return u.counts[k] }

// TotalSamples returns the sum of N_k over all sampled states.
func (u *ReducedPotentials) TotalSamples() int {
	total := 0
	for _, n := range u.counts {
		total += n
	}
	return total
}

// U returns the reduced potential of sample n from sampled state k,
// evaluated under evaluation state l.
func (u *ReducedPotentials) U(k, n, l int) float64 {
	return u.data[(u.offsets[k]+n)*u.L()+l]
}

// Row returns the reduced potentials of sample n from state k under
// every evaluation state, as a slice of length L. The slice aliases
// internal storage and must not be modified.
func (u *ReducedPotentials) Row(k, n int) []float64 {
	start := (u.offsets[k] + n) * u.L()
	return u.data[start : start+u.L()]
}

// AppendState appends the sample block of the next sampled state, in
// state order. rows[n][l] is the reduced potential of sample n under
// evaluation state l; every row must have exactly L entries.
func (u *ReducedPotentials) AppendState(rows [][]float64) error {
	if len(u.counts) >= u.sampled {
		return errors.Wrapf(errors.ErrInvalidInput,
			"all %d sampled states already populated", u.sampled)
	}
	if len(rows) == 0 {
		return errors.Wrapf(errors.ErrInvalidInput,
			"sampled state %d has no samples", len(u.counts))
	}
	k := len(u.counts)
	for n, row := range rows {
		if len(row) != u.L() {
			return errors.Wrapf(errors.ErrInvalidInput,
				"state %d sample %d has %d evaluation entries, want %d",
				k, n, len(row), u.L())
		}
		for l, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(errors.ErrInvalidInput,
					"state %d sample %d: non-finite reduced potential under state %d", k, n, l)
			}
		}
		u.data = append(u.data, row...)
	}
	u.offsets = append(u.offsets, u.rowCount()-len(rows))
	u.counts = append(u.counts, len(rows))
	return nil
}

func (u *ReducedPotentials) rowCount() int { return len(u.data) / u.L() }

// Validate checks that every sampled state has been populated.
func (u *ReducedPotentials) Validate() error {
	if len(u.counts) != u.sampled {
		return errors.Wrapf(errors.ErrInvalidInput,
			"only %d of %d sampled states populated", len(u.counts), u.sampled)
	}
	return nil
}
