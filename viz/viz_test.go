package viz

import (
	"fmt"
	"image"
	"os"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/geom"
	"github.com/Noofbiz/trajviz/predict"
	"github.com/Noofbiz/trajviz/render"
)

const testHistoryLen = 5

func ann(sample, tok, category string, x, y float64, order int) datasets.Annotation {
	return datasets.Annotation{
		SampleToken:   sample,
		InstanceToken: tok,
		Category:      category,
		Translation:   r2.Vec{X: x, Y: y},
		Rotation:      quat.Number{Real: 1},
		Order:         order,
	}
}

// fakeDS holds one sample per index. The target "tgt" drives along +x.
type fakeDS struct {
	samples []string
	anns    map[string][]datasets.Annotation
	past    map[string]map[string][]r2.Vec
	future  map[string]map[string][]r2.Vec
	seqs    [][]int
}

func newFakeDS(n int) *fakeDS {
	ds := &fakeDS{
		anns:   make(map[string][]datasets.Annotation),
		past:   make(map[string]map[string][]r2.Vec),
		future: make(map[string]map[string][]r2.Vec),
	}
	for i := 0; i < n; i++ {
		s := fmt.Sprintf("s%d", i)
		ds.samples = append(ds.samples, s)
		x := 10 + float64(i)
		ds.anns[s] = []datasets.Annotation{
			ann(s, "tgt", "vehicle.car", x, 20, 0),
			ann(s, "ped", "human.pedestrian.adult", 12, 22, 1),
			ann(s, "bike", "vehicle.bicycle", 14, 18, 2),
			ann(s, "cone", "movable_object.trafficcone", 9, 19, 3),
			ann(s, "veh4", "vehicle.car", 30, 20, 4),
			ann(s, "veh5", "vehicle.truck", 35, 20, 5),
			ann(s, "veh6", "vehicle.bus.rigid", 40, 20, 6),
			ann(s, "veh7", "vehicle.car", 15, 20, 7),
		}
		past := make(map[string][]r2.Vec)
		future := make(map[string][]r2.Vec)
		for _, a := range ds.anns[s] {
			past[a.InstanceToken] = []r2.Vec{}
			future[a.InstanceToken] = []r2.Vec{}
		}
		for k := 1; k <= 4; k++ {
			past["tgt"] = append(past["tgt"], r2.Vec{X: x - float64(k), Y: 20})
		}
		for k := 1; k <= 12; k++ {
			future["tgt"] = append(future["tgt"], r2.Vec{X: x + float64(k), Y: 20})
		}
		past["ped"] = []r2.Vec{{X: 12, Y: 21}}
		ds.past[s], ds.future[s] = past, future
	}
	return ds
}

func (ds *fakeDS) sample(idx int) (string, error) {
	if idx < 0 || idx >= len(ds.samples) {
		return "", errors.Wrapf(datasets.ErrIndexOutOfRange, "index %d", idx)
	}
	return ds.samples[idx], nil
}

func (ds *fakeDS) Frame(idx int) (*datasets.Frame, error) {
	s, err := ds.sample(idx)
	if err != nil {
		return nil, err
	}
	hist := make([]r2.Vec, testHistoryLen)
	for i := range hist {
		hist[i] = r2.Vec{X: 0, Y: float64(i - testHistoryLen + 1)}
	}
	return &datasets.Frame{
		Index: idx,
		Inputs: datasets.Inputs{
			InstanceToken: "tgt",
			SampleToken:   s,
			TargetHistory: hist,
			Vehicles:      [][]r2.Vec{geom.Repeat(r2.Vec{X: -5, Y: 0}, testHistoryLen), geom.Repeat(r2.Vec{}, testHistoryLen)},
			VehicleMasks:  []bool{false, true},
		},
	}, nil
}

func (ds *fakeDS) AnnotationsForSample(s string) ([]datasets.Annotation, error) {
	return append([]datasets.Annotation(nil), ds.anns[s]...), nil
}

func (ds *fakeDS) PastForSample(s string, _ float64) (map[string][]r2.Vec, error) {
	return ds.past[s], nil
}

func (ds *fakeDS) FutureForSample(s string, _ float64) (map[string][]r2.Vec, error) {
	return ds.future[s], nil
}

func (ds *fakeDS) EgoPose(string) (geom.Pose, error) {
	return geom.Pose{Translation: r2.Vec{X: 100, Y: 200}, Rotation: quat.Number{Real: 1}}, nil
}

func (ds *fakeDS) SceneForSample(string) (datasets.Scene, error) {
	return datasets.Scene{Token: "sc", Name: "scene-0001", Location: "boston-seaport"}, nil
}

func (ds *fakeDS) VisIndices(picks []int) ([][]int, error) {
	return ds.seqs, nil
}

// fakeModel returns three straight modes along local +y with unsorted
// probabilities.
type fakeModel struct {
	inputs []datasets.Inputs
}

func (m *fakeModel) Predict(in datasets.Inputs) (predict.Bundle, error) {
	m.inputs = append(m.inputs, in)
	var b predict.Bundle
	for k, p := range []float64{0.1, 0.6, 0.3} {
		traj := make([]r2.Vec, 15)
		for t := range traj {
			traj[t] = r2.Vec{X: 0, Y: float64((k + 1) * (t + 1))}
		}
		b.Trajectories = append(b.Trajectories, traj)
		b.Probabilities = append(b.Probabilities, p)
	}
	return b, nil
}

type fakeRenderer struct {
	frames []render.Frame
}

func (r *fakeRenderer) Render(f render.Frame) (image.Image, error) {
	r.frames = append(r.frames, f)
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NumModes = 2
	return cfg
}

func newTestComposer(ds *fakeDS, cfg Config) (*Composer, *fakeModel, *fakeRenderer) {
	m := &fakeModel{}
	r := &fakeRenderer{}
	return NewComposer(ds, m, r, cfg), m, r
}

func agentByToken(f render.Frame, tok string) (render.Agent, bool) {
	for _, a := range f.Agents {
		if a.InstanceToken == tok {
			return a, true
		}
	}
	return render.Agent{}, false
}

func TestMain(m *testing.M) {
	SetLogger(nil)
	os.Exit(m.Run())
}
