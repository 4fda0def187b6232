package viz

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/geom"
	"github.com/Noofbiz/trajviz/predict"
	"github.com/Noofbiz/trajviz/render"
)

// Dataset is the part of the scene store the composer reads from.
type Dataset interface {
	Frame(idx int) (*datasets.Frame, error)
	AnnotationsForSample(sampleToken string) ([]datasets.Annotation, error)
	PastForSample(sampleToken string, seconds float64) (map[string][]r2.Vec, error)
	FutureForSample(sampleToken string, seconds float64) (map[string][]r2.Vec, error)
	EgoPose(sampleToken string) (geom.Pose, error)
	SceneForSample(sampleToken string) (datasets.Scene, error)
}

// FrameRenderer draws one composed frame.
type FrameRenderer interface {
	Render(f render.Frame) (image.Image, error)
}

const (
	counterfactualHistoryLen = 5
	counterfactualFutureLen  = 12
)

// Composer turns sequences of dataset indices into rendered frames.
type Composer struct {
	DS       Dataset
	Model    predict.Model
	Renderer FrameRenderer
	Config   Config
}

// Sequence is the output of one composed sequence.
type Sequence struct {
	Scene   datasets.Scene
	Indices []int
	Frames  []image.Image
	// Probabilities holds the ranked probabilities drawn in each frame. It
	// is empty for a frame drawn without predictions.
	Probabilities [][]float64
	// Masked is the set of instances hidden for the whole sequence.
	Masked InstanceSet
}

// NewComposer returns a composer with the given collaborators.
func NewComposer(ds Dataset, model predict.Model, r FrameRenderer, cfg Config) *Composer {
	return &Composer{DS: ds, Model: model, Renderer: r, Config: cfg}
}

// ComposeSequence renders one frame per dataset index. The masked-instance
// set is fixed on the first frame and reused for the rest. Any failure
// aborts the sequence and is returned as a *FrameError.
func (c *Composer) ComposeSequence(idcs []int) (*Sequence, error) {
	if len(idcs) == 0 {
		return nil, errors.New("empty sequence")
	}
	if c.Renderer == nil {
		return nil, errors.New("composer has no renderer")
	}
	selector, err := c.Config.Reference.Selector()
	if err != nil {
		return nil, err
	}

	seq := &Sequence{
		Indices:       append([]int(nil), idcs...),
		Frames:        make([]image.Image, 0, len(idcs)),
		Probabilities: make([][]float64, 0, len(idcs)),
	}
	for i, idx := range idcs {
		start := time.Now()
		st, err := c.state(idx)
		if err != nil {
			return nil, &FrameError{Index: idx, Err: err}
		}
		if i == 0 {
			seq.Masked, err = SelectMaskedInstances(st.anns, st.target.InstanceToken, selector)
			if err != nil {
				return nil, &FrameError{Index: idx, InstanceToken: st.target.InstanceToken, Err: err}
			}
			seq.Scene, err = c.DS.SceneForSample(st.target.SampleToken)
			if err != nil {
				return nil, &FrameError{Index: idx, InstanceToken: st.target.InstanceToken, Err: err}
			}
		}
		img, probs, err := c.composeFrame(st, seq.Scene, seq.Masked)
		if err != nil {
			return nil, &FrameError{Index: idx, InstanceToken: st.target.InstanceToken, Err: err}
		}
		seq.Frames = append(seq.Frames, img)
		seq.Probabilities = append(seq.Probabilities, probs)
		Logf("composed frame %d (index %d) in %s", i, idx, time.Since(start).Round(time.Millisecond))
	}
	return seq, nil
}

// frameState is everything read from the dataset for one index.
type frameState struct {
	index  int
	frame  *datasets.Frame
	target datasets.Annotation
	anns   []datasets.Annotation
	past   map[string][]r2.Vec
	future map[string][]r2.Vec
	ego    geom.Pose
}

func (c *Composer) state(idx int) (*frameState, error) {
	f, err := c.DS.Frame(idx)
	if err != nil {
		return nil, err
	}
	sampleToken := f.Inputs.SampleToken
	anns, err := c.DS.AnnotationsForSample(sampleToken)
	if err != nil {
		return nil, err
	}
	st := &frameState{index: idx, frame: f, anns: anns}
	found := false
	for _, a := range anns {
		if a.InstanceToken == f.Inputs.InstanceToken {
			st.target, found = a, true
			break
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrMissingTrajectoryData,
			"target %s not annotated at sample %s", f.Inputs.InstanceToken, sampleToken)
	}
	if st.past, err = c.DS.PastForSample(sampleToken, c.Config.HistorySeconds); err != nil {
		return nil, err
	}
	if st.future, err = c.DS.FutureForSample(sampleToken, c.Config.FutureSeconds()); err != nil {
		return nil, err
	}
	if st.ego, err = c.DS.EgoPose(sampleToken); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Composer) composeFrame(st *frameState, scene datasets.Scene, masked InstanceSet) (image.Image, []float64, error) {
	targetToken := st.target.InstanceToken
	hidden := ComputeVisibilityMask(st.anns, masked, targetToken)

	rf := render.Frame{
		Title:    fmt.Sprintf("%s, index %d", scene.Name, st.index),
		Location: scene.Location,
		Ego:      st.ego,
	}
	for _, a := range st.anns {
		if hidden[a.InstanceToken] {
			continue
		}
		past, ok := st.past[a.InstanceToken]
		if !ok {
			return nil, nil, errors.Wrapf(ErrMissingTrajectoryData, "no past for instance %s", a.InstanceToken)
		}
		future, ok := st.future[a.InstanceToken]
		if !ok {
			return nil, nil, errors.Wrapf(ErrMissingTrajectoryData, "no future for instance %s", a.InstanceToken)
		}
		rf.Agents = append(rf.Agents, render.Agent{
			InstanceToken: a.InstanceToken,
			Style:         Classify(a, targetToken),
			Position:      a.Translation,
			Yaw:           a.Pose().Yaw(),
			History:       ExtractHistory(past, a.Translation),
			Future:        truncate(ExtractFuture(future), c.Config.HorizonFrames),
		})
	}

	inputs := st.frame.Inputs
	if c.Config.Counterfactual {
		agent, in, err := c.counterfactual(st)
		if err != nil {
			return nil, nil, err
		}
		rf.Agents = append(rf.Agents, agent)
		inputs = in
	}

	var probs []float64
	if c.Config.ShowPredictions && c.Model != nil {
		modes, p, err := c.predict(inputs, st.target)
		if err != nil {
			return nil, nil, err
		}
		rf.Modes, probs = modes, p
	}

	img, err := c.Renderer.Render(rf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "render")
	}
	return img, probs, nil
}

// counterfactual builds a stationary vehicle on the target's recorded future
// and the model inputs that include it. The frame's own inputs are not
// modified.
func (c *Composer) counterfactual(st *frameState) (render.Agent, datasets.Inputs, error) {
	n := c.Config.CounterfactualIndex
	future := st.future[st.target.InstanceToken]
	if len(future) <= n {
		return render.Agent{}, datasets.Inputs{}, errors.Wrapf(ErrMissingTrajectoryData,
			"counterfactual needs %d future points for %s, have %d", n+1, st.target.InstanceToken, len(future))
	}
	p := future[n]
	pose := st.target.Pose()
	local := geom.PoseToLocal([]r2.Vec{p}, pose)[0]
	in, err := st.frame.Inputs.WithVehicle(geom.Repeat(local, len(st.frame.Inputs.TargetHistory)))
	if err != nil {
		return render.Agent{}, datasets.Inputs{}, errors.Wrap(err, "add counterfactual vehicle")
	}
	agent := render.Agent{
		InstanceToken: uuid.New().String(),
		Style:         render.StyleVehicle,
		Position:      p,
		Yaw:           pose.Yaw(),
		History:       geom.Repeat(p, counterfactualHistoryLen),
		Future:        truncate(geom.Repeat(p, counterfactualFutureLen), c.Config.HorizonFrames),
	}
	return agent, in, nil
}

// predict runs the model and returns the top ranked modes in map
// coordinates, each cut to the horizon.
func (c *Composer) predict(in datasets.Inputs, target datasets.Annotation) ([]render.Mode, []float64, error) {
	b, err := c.Model.Predict(in)
	if err != nil {
		return nil, nil, errors.Wrap(err, "predict")
	}
	ranked, err := b.Ranked()
	if err != nil {
		return nil, nil, errors.Wrap(err, "rank modes")
	}
	top := ranked.Top(c.Config.NumModes).Truncate(c.Config.HorizonFrames)
	modes := make([]render.Mode, top.Len())
	for i, traj := range top.Trajectories {
		modes[i] = render.Mode{
			Trajectory:  geom.ToGlobal(traj, target.Translation, target.Rotation),
			Probability: top.Probabilities[i],
		}
	}
	return modes, append([]float64(nil), top.Probabilities...), nil
}

func truncate(pts []r2.Vec, n int) []r2.Vec {
	if n >= 0 && len(pts) > n {
		return pts[:n]
	}
	return pts
}
