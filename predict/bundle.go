// Package predict holds multi-modal trajectory predictions and the models
// that produce them.
package predict

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrMismatchedBundle is returned when a bundle's trajectories and
// probabilities do not pair up.
var ErrMismatchedBundle = errors.New("trajectories and probabilities differ in length")

// Bundle is the output of a prediction model for one target: candidate
// future trajectories in the target's local frame and the probability of
// each. Trajectories[k] goes with Probabilities[k].
type Bundle struct {
	Trajectories  [][]r2.Vec
	Probabilities []float64
}

// Len returns the number of modes.
func (b Bundle) Len() int {
	return len(b.Probabilities)
}

// Validate checks that every trajectory has a probability.
func (b Bundle) Validate() error {
	if len(b.Trajectories) != len(b.Probabilities) {
		return errors.Wrapf(ErrMismatchedBundle, "%d trajectories, %d probabilities",
			len(b.Trajectories), len(b.Probabilities))
	}
	return nil
}

// Rank orders modes by descending probability. Equal probabilities keep
// their input order. The full ranked set is returned; the inputs are not
// modified.
func Rank(trajectories [][]r2.Vec, probabilities []float64) ([][]r2.Vec, []float64, error) {
	if len(trajectories) != len(probabilities) {
		return nil, nil, errors.Wrapf(ErrMismatchedBundle, "%d trajectories, %d probabilities",
			len(trajectories), len(probabilities))
	}
	order := make([]int, len(probabilities))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return probabilities[order[i]] > probabilities[order[j]]
	})

	trajs := make([][]r2.Vec, len(order))
	probs := make([]float64, len(order))
	for k, i := range order {
		trajs[k] = append([]r2.Vec(nil), trajectories[i]...)
		probs[k] = probabilities[i]
	}
	return trajs, probs, nil
}

// Ranked returns a copy of b with its modes ordered by Rank.
func (b Bundle) Ranked() (Bundle, error) {
	trajs, probs, err := Rank(b.Trajectories, b.Probabilities)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Trajectories: trajs, Probabilities: probs}, nil
}

// Top returns the first k modes of b, or all of them when b has fewer.
func (b Bundle) Top(k int) Bundle {
	if k < 0 {
		k = 0
	}
	if k > b.Len() {
		k = b.Len()
	}
	return Bundle{Trajectories: b.Trajectories[:k], Probabilities: b.Probabilities[:k]}
}

// Truncate limits every trajectory to its first n points.
func (b Bundle) Truncate(n int) Bundle {
	out := Bundle{
		Trajectories:  make([][]r2.Vec, len(b.Trajectories)),
		Probabilities: b.Probabilities,
	}
	for i, t := range b.Trajectories {
		if n >= 0 && len(t) > n {
			t = t[:n]
		}
		out.Trajectories[i] = t
	}
	return out
}
