package datasets

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/geom"
)

// HistoryLen returns the number of points in every input history.
func (s *SceneDB) HistoryLen() int {
	return int(math.Round(s.opts.HistorySeconds*s.opts.SampleRate)) + 1
}

// Frame returns dataset example idx. The returned value is a fresh copy and
// may be modified by the caller.
func (s *SceneDB) Frame(idx int) (*Frame, error) {
	key := cacheKey{kind: "frame", index: idx}
	if v, ok := s.cache.get(key); ok {
		f := v.(*Frame)
		return f.clone(), nil
	}

	instanceToken, sampleToken, err := s.SplitEntry(idx)
	if err != nil {
		return nil, err
	}
	anns, err := s.AnnotationsForSample(sampleToken)
	if err != nil {
		return nil, err
	}
	var target *Annotation
	for i := range anns {
		if anns[i].InstanceToken == instanceToken {
			target = &anns[i]
			break
		}
	}
	if target == nil {
		return nil, errors.Wrapf(ErrNotFound, "instance %s not annotated at sample %s", instanceToken, sampleToken)
	}

	past, err := s.PastForSample(sampleToken, s.opts.HistorySeconds)
	if err != nil {
		return nil, err
	}
	future, err := s.FutureForSample(sampleToken, s.opts.FutureSeconds)
	if err != nil {
		return nil, err
	}

	ref := target.Pose()
	n := s.HistoryLen()
	localHistory := func(a Annotation) []r2.Vec {
		return geom.PoseToLocal(fitHistory(chronological(past[a.InstanceToken], a.Translation), n), ref)
	}

	in := Inputs{
		InstanceToken:   instanceToken,
		SampleToken:     sampleToken,
		TargetHistory:   localHistory(*target),
		Vehicles:        emptySlots(s.opts.MaxVehicles, n),
		VehicleMasks:    allTrue(s.opts.MaxVehicles),
		Pedestrians:     emptySlots(s.opts.MaxPedestrians, n),
		PedestrianMasks: allTrue(s.opts.MaxPedestrians),
	}

	var vehicles, humans []Annotation
	for _, a := range anns {
		switch {
		case a.InstanceToken == instanceToken:
		case a.IsVehicle():
			vehicles = append(vehicles, a)
		case a.IsHuman():
			humans = append(humans, a)
		}
	}
	sortByDistance(vehicles, target.Translation)
	sortByDistance(humans, target.Translation)
	for i := 0; i < len(vehicles) && i < s.opts.MaxVehicles; i++ {
		in.Vehicles[i] = localHistory(vehicles[i])
		in.VehicleMasks[i] = false
	}
	for i := 0; i < len(humans) && i < s.opts.MaxPedestrians; i++ {
		in.Pedestrians[i] = localHistory(humans[i])
		in.PedestrianMasks[i] = false
	}

	f := &Frame{
		Index:       idx,
		Inputs:      in,
		GroundTruth: GroundTruth{Traj: geom.PoseToLocal(future[instanceToken], ref)},
	}
	s.cache.set(key, f.clone())
	return f, nil
}

func (f *Frame) clone() *Frame {
	return &Frame{
		Index:       f.Index,
		Inputs:      f.Inputs.Clone(),
		GroundTruth: GroundTruth{Traj: cloneVecs(f.GroundTruth.Traj)},
	}
}

// chronological turns a most-recent-first past into a chronological history
// ending at current.
func chronological(past []r2.Vec, current r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, len(past)+1)
	for i := len(past) - 1; i >= 0; i-- {
		out = append(out, past[i])
	}
	return append(out, current)
}

// sortByDistance orders annotations by increasing distance to p, keeping the
// stored order between equidistant annotations.
func sortByDistance(anns []Annotation, p r2.Vec) {
	sort.SliceStable(anns, func(i, j int) bool {
		return r2.Norm(r2.Sub(anns[i].Translation, p)) < r2.Norm(r2.Sub(anns[j].Translation, p))
	})
}

func emptySlots(slots, n int) [][]r2.Vec {
	out := make([][]r2.Vec, slots)
	for i := range out {
		out[i] = make([]r2.Vec, n)
	}
	return out
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
