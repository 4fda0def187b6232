package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func testInputs() Inputs {
	return Inputs{
		InstanceToken: "tgt",
		TargetHistory: []r2.Vec{{X: 0, Y: -1}, {X: 0, Y: 0}},
		Vehicles:      [][]r2.Vec{{{X: 1, Y: 1}, {X: 1, Y: 2}}, make([]r2.Vec, 2), make([]r2.Vec, 2)},
		VehicleMasks:  []bool{false, true, true},
	}
}

func TestInputs_WithVehicleLeavesOriginal(t *testing.T) {
	t.Parallel()
	in := testInputs()

	out, err := in.WithVehicle([]r2.Vec{{X: 5, Y: 5}})
	require.NoError(t, err)

	assert.Equal(t, 2, out.NumVehicles())
	assert.False(t, out.VehicleMasks[1])
	assert.Equal(t, []r2.Vec{{X: 5, Y: 5}, {X: 5, Y: 5}}, out.Vehicles[1])

	assert.Equal(t, 1, in.NumVehicles())
	assert.True(t, in.VehicleMasks[1])
	assert.Equal(t, make([]r2.Vec, 2), in.Vehicles[1])

	out.Vehicles[0][0] = r2.Vec{X: -1}
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, in.Vehicles[0][0])
}

func TestInputs_WithVehicleNoSlot(t *testing.T) {
	t.Parallel()
	in := testInputs()
	in.VehicleMasks = []bool{false, false, false}

	_, err := in.WithVehicle([]r2.Vec{{X: 1}})
	assert.ErrorIs(t, err, ErrNoFreeSlot)
	assert.Equal(t, -1, in.FreeVehicleSlot())

	_, err = testInputs().WithVehicle(nil)
	assert.Error(t, err)
}

func TestFitHistory(t *testing.T) {
	t.Parallel()
	h := []r2.Vec{{X: 1}, {X: 2}, {X: 3}}
	assert.Equal(t, []r2.Vec{{X: 2}, {X: 3}}, fitHistory(h, 2))
	assert.Equal(t, []r2.Vec{{X: 1}, {X: 1}, {X: 1}, {X: 2}, {X: 3}}, fitHistory(h, 5))
	assert.Equal(t, make([]r2.Vec, 2), fitHistory(nil, 2))
}

func TestCategoryParts(t *testing.T) {
	t.Parallel()
	top, sub := CategoryParts("vehicle.bicycle")
	assert.Equal(t, "vehicle", top)
	assert.Equal(t, "bicycle", sub)

	top, sub = CategoryParts("movable_object")
	assert.Equal(t, "movable_object", top)
	assert.Equal(t, "", sub)
}
