package predict

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func line(x float64) []r2.Vec {
	return []r2.Vec{{X: x, Y: 1}, {X: x, Y: 2}}
}

func TestRank_DescendingStable(t *testing.T) {
	t.Parallel()
	trajs := [][]r2.Vec{line(0), line(1), line(2)}
	probs := []float64{0.2, 0.6, 0.2}

	gotT, gotP, err := Rank(trajs, probs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.2, 0.2}, gotP)
	if diff := cmp.Diff([][]r2.Vec{line(1), line(0), line(2)}, gotT); diff != "" {
		t.Errorf("ranked trajectories mismatch (-want +got):\n%s", diff)
	}

	// Inputs untouched.
	assert.Equal(t, []float64{0.2, 0.6, 0.2}, probs)
	assert.Equal(t, line(0), trajs[0])
}

func TestRank_PairsStayTogether(t *testing.T) {
	t.Parallel()
	probs := []float64{0.05, 0.3, 0.1, 0.3, 0.25}
	trajs := make([][]r2.Vec, len(probs))
	for i, p := range probs {
		trajs[i] = []r2.Vec{{X: p}}
	}

	gotT, gotP, err := Rank(trajs, probs)
	require.NoError(t, err)
	require.Len(t, gotP, len(probs))
	for k := range gotP {
		if k > 0 {
			assert.LessOrEqual(t, gotP[k], gotP[k-1])
		}
		assert.Equal(t, gotP[k], gotT[k][0].X, "trajectory %d lost its probability", k)
	}
}

func TestRank_Mismatch(t *testing.T) {
	t.Parallel()
	_, _, err := Rank([][]r2.Vec{line(0)}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrMismatchedBundle)

	_, err = Bundle{Probabilities: []float64{1}}.Ranked()
	assert.ErrorIs(t, err, ErrMismatchedBundle)
}

func TestBundle_TopAndTruncate(t *testing.T) {
	t.Parallel()
	b := Bundle{
		Trajectories:  [][]r2.Vec{line(0), line(1), line(2)},
		Probabilities: []float64{0.5, 0.3, 0.2},
	}
	assert.Equal(t, 2, b.Top(2).Len())
	assert.Equal(t, 3, b.Top(10).Len())
	assert.Equal(t, 0, b.Top(-1).Len())

	tr := b.Truncate(1)
	require.Len(t, tr.Trajectories, 3)
	assert.Len(t, tr.Trajectories[0], 1)
	assert.Len(t, b.Trajectories[0], 2)
}
