package datasets

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrNoFreeSlot is returned by Inputs.WithVehicle when every vehicle slot is
// already occupied.
var ErrNoFreeSlot = errors.New("no free vehicle slot")

// Inputs are the model-ready inputs of one dataset example. Every history
// is chronological, has the same length and is expressed in the local frame
// of the target (target at the origin facing +y at the current sample).
//
// Vehicles and Pedestrians always have a fixed number of slots; a slot whose
// mask is true is empty and its history is all zeros.
type Inputs struct {
	InstanceToken string
	SampleToken   string

	TargetHistory []r2.Vec

	Vehicles     [][]r2.Vec
	VehicleMasks []bool

	Pedestrians     [][]r2.Vec
	PedestrianMasks []bool
}

// Clone returns a deep copy of in.
func (in Inputs) Clone() Inputs {
	out := in
	out.TargetHistory = cloneVecs(in.TargetHistory)
	out.Vehicles = cloneHistories(in.Vehicles)
	out.VehicleMasks = append([]bool(nil), in.VehicleMasks...)
	out.Pedestrians = cloneHistories(in.Pedestrians)
	out.PedestrianMasks = append([]bool(nil), in.PedestrianMasks...)
	return out
}

// NumVehicles returns the number of occupied vehicle slots.
func (in Inputs) NumVehicles() int {
	n := 0
	for _, masked := range in.VehicleMasks {
		if !masked {
			n++
		}
	}
	return n
}

// FreeVehicleSlot returns the first empty vehicle slot, or -1.
func (in Inputs) FreeVehicleSlot() int {
	for i, masked := range in.VehicleMasks {
		if masked {
			return i
		}
	}
	return -1
}

// WithVehicle returns a copy of in with history placed in the first free
// vehicle slot. in itself is left untouched. The history is resampled to
// the input history length by keeping its most recent points and, when it
// is shorter, repeating its first point.
func (in Inputs) WithVehicle(history []r2.Vec) (Inputs, error) {
	if len(history) == 0 {
		return Inputs{}, errors.New("empty vehicle history")
	}
	slot := in.FreeVehicleSlot()
	if slot < 0 {
		return Inputs{}, ErrNoFreeSlot
	}
	out := in.Clone()
	out.Vehicles[slot] = fitHistory(history, len(in.TargetHistory))
	out.VehicleMasks[slot] = false
	return out, nil
}

// fitHistory returns a chronological history of exactly n points: the last
// n points of h, left-padded with h[0] when h is shorter.
func fitHistory(h []r2.Vec, n int) []r2.Vec {
	out := make([]r2.Vec, n)
	if len(h) == 0 {
		return out
	}
	if len(h) >= n {
		copy(out, h[len(h)-n:])
		return out
	}
	pad := n - len(h)
	for i := 0; i < pad; i++ {
		out[i] = h[0]
	}
	copy(out[pad:], h)
	return out
}

func cloneVecs(v []r2.Vec) []r2.Vec {
	if v == nil {
		return nil
	}
	return append([]r2.Vec(nil), v...)
}

func cloneHistories(h [][]r2.Vec) [][]r2.Vec {
	if h == nil {
		return nil
	}
	out := make([][]r2.Vec, len(h))
	for i := range h {
		out[i] = cloneVecs(h[i])
	}
	return out
}
