package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

const tol = 1e-9

func assertVecsInDelta(t *testing.T, want, got []r2.Vec) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].X, got[i].X, tol, "x at %d", i)
		assert.InDelta(t, want[i].Y, got[i].Y, tol, "y at %d", i)
	}
}

func TestYaw(t *testing.T) {
	t.Parallel()

	for _, yaw := range []float64{0, 0.3, math.Pi / 2, -2.1, math.Pi - 1e-6} {
		assert.InDelta(t, yaw, Yaw(QuatFromYaw(yaw)), 1e-9, "yaw %v", yaw)
	}
	assert.Equal(t, 0.0, Yaw(quat.Number{}))
}

func TestYawUnnormalisedQuaternion(t *testing.T) {
	t.Parallel()

	q := quat.Scale(3, QuatFromYaw(1.2))
	assert.InDelta(t, 1.2, Yaw(q), 1e-9)
}

func TestToGlobalFacingNorth(t *testing.T) {
	t.Parallel()

	// Facing +y the local frame is only shifted.
	got := ToGlobal([]r2.Vec{{X: 1, Y: 2}, {X: -3, Y: 0}}, r2.Vec{X: 10, Y: 20}, QuatFromYaw(math.Pi/2))
	assertVecsInDelta(t, []r2.Vec{{X: 11, Y: 22}, {X: 7, Y: 20}}, got)
}

func TestToGlobalFacingEast(t *testing.T) {
	t.Parallel()

	// Local "ahead" (+y) becomes global +x when the agent faces east.
	got := ToGlobal([]r2.Vec{{X: 0, Y: 5}, {X: 1, Y: 0}}, r2.Vec{X: 100, Y: -4}, QuatFromYaw(0))
	assertVecsInDelta(t, []r2.Vec{{X: 105, Y: -4}, {X: 100, Y: -5}}, got)
}

func TestToGlobalPreservesCountAndOrder(t *testing.T) {
	t.Parallel()

	local := make([]r2.Vec, 12)
	for i := range local {
		local[i] = r2.Vec{X: 0, Y: float64(i)}
	}
	got := ToGlobal(local, r2.Vec{}, QuatFromYaw(math.Pi/2))
	assertVecsInDelta(t, local, got)
	assert.Empty(t, ToGlobal(nil, r2.Vec{X: 1}, Identity))
}

func TestToGlobalRoundTrip(t *testing.T) {
	t.Parallel()

	local := []r2.Vec{{X: 0.5, Y: 1.5}, {X: -7, Y: 3.25}, {X: 0, Y: 0}, {X: 42, Y: -13}}
	for _, yaw := range []float64{0, 0.7, -1.9, math.Pi} {
		trans := r2.Vec{X: 412.3, Y: 1180.9}
		rot := QuatFromYaw(yaw)
		back := ToLocal(ToGlobal(local, trans, rot), trans, rot)
		assertVecsInDelta(t, local, back)
	}
}

func TestPoseHelpers(t *testing.T) {
	t.Parallel()

	ref := Pose{Translation: r2.Vec{X: 3, Y: 4}, Rotation: QuatFromYaw(1)}
	pts := []r2.Vec{{X: 1, Y: 1}}
	assertVecsInDelta(t, pts, PoseToLocal(PoseToGlobal(pts, ref), ref))
	assert.InDelta(t, 1.0, ref.Yaw(), tol)
}

func TestRepeat(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Repeat(r2.Vec{X: 1}, 0))
	assert.Equal(t, []r2.Vec{{X: 1, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 2}}, Repeat(r2.Vec{X: 1, Y: 2}, 3))
}
