package predict

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
)

// Config holds the shape of the MLP.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// HistoryLen and VehicleSlots fix the input dimension (see FeatureDim).
	HistoryLen   int
	VehicleSlots int

	// Modes is the number of predicted trajectories, Horizon the number of
	// points in each.
	Modes   int
	Horizon int

	// Seed controls RNG for weight init. If zero, time-based seed is used.
	Seed int64
}

// MLP is a feed-forward network with ReLU hidden layers. Its output layer
// holds Modes*Horizon*2 trajectory coordinates followed by Modes logits;
// mode probabilities are the softmax of the logits.
type MLP struct {
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32
}

// NewMLP creates an MLP with small random weights.
func NewMLP(cfg Config) (*MLP, error) {
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.HistoryLen <= 0 || cfg.Modes <= 0 || cfg.Horizon <= 0 || cfg.VehicleSlots < 0 {
		return nil, fmt.Errorf("invalid MLP config: history=%d modes=%d horizon=%d vehicles=%d",
			cfg.HistoryLen, cfg.Modes, cfg.Horizon, cfg.VehicleSlots)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &MLP{Config: cfg}
	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, FeatureDim(cfg.HistoryLen, cfg.VehicleSlots))
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, m.outputDim())
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

func (m *MLP) outputDim() int {
	return m.Config.Modes*m.Config.Horizon*2 + m.Config.Modes
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// forwardSingle runs one input vector through the network and returns the
// output layer.
func (m *MLP) forwardSingle(input []float32) ([]float32, error) {
	if len(input) != m.layerSizes[0] {
		return nil, fmt.Errorf("input has dimension %d, model expects %d", len(input), m.layerSizes[0])
	}
	act := append([]float32(nil), input...)
	L := len(m.weights)
	for l := 0; l < L; l++ {
		W := m.weights[l]
		b := m.biases[l]
		next := make([]float32, len(b))
		for j := range next {
			sum := b[j]
			for i, w := range W[j] {
				sum += w * act[i]
			}
			next[j] = sum
		}
		// Activation: ReLU for hidden, linear for last layer
		if l < L-1 {
			activationReLU(next)
		}
		act = next
	}
	return act, nil
}

// PredictTensors runs the network over a batch of inputs and returns the
// trajectories as a [batch, modes, horizon*2] tensor and the mode
// probabilities as a [batch, modes] tensor.
func (m *MLP) PredictTensors(batch []datasets.Inputs) (trajectories, probabilities *tensors.Tensor, err error) {
	if len(batch) == 0 {
		return nil, nil, errors.New("empty batch")
	}
	K, T := m.Config.Modes, m.Config.Horizon
	trajs := make([][][]float32, len(batch))
	probs := make([][]float32, len(batch))
	for b, in := range batch {
		out, err := m.forwardSingle(Features(in))
		if err != nil {
			return nil, nil, fmt.Errorf("example %d: %w", b, err)
		}
		trajs[b] = make([][]float32, K)
		for k := 0; k < K; k++ {
			trajs[b][k] = out[k*T*2 : (k+1)*T*2]
		}
		logits := make([]float64, K)
		for k := range logits {
			logits[k] = float64(out[K*T*2+k])
		}
		p := softmax(logits)
		probs[b] = make([]float32, K)
		for k := range p {
			probs[b][k] = float32(p[k])
		}
	}
	return tensors.FromAnyValue(trajs), tensors.FromAnyValue(probs), nil
}

// Predict implements Model.
func (m *MLP) Predict(in datasets.Inputs) (Bundle, error) {
	trajT, probT, err := m.PredictTensors([]datasets.Inputs{in})
	if err != nil {
		return Bundle{}, err
	}
	bundles, err := BundlesFromTensors(trajT, probT)
	if err != nil {
		return Bundle{}, err
	}
	return bundles[0], nil
}

// softmax returns the normalised exponentials of x.
func softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	maxv := floats.Max(x)
	for i, v := range x {
		out[i] = math.Exp(v - maxv)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// BundlesFromTensors converts the output of PredictTensors into one Bundle
// per batch example.
func BundlesFromTensors(trajectories, probabilities *tensors.Tensor) ([]Bundle, error) {
	trajs, ok := trajectories.Value().([][][]float32)
	if !ok {
		return nil, fmt.Errorf("trajectory tensor has unexpected value type %T", trajectories.Value())
	}
	probs, ok := probabilities.Value().([][]float32)
	if !ok {
		return nil, fmt.Errorf("probability tensor has unexpected value type %T", probabilities.Value())
	}
	if len(trajs) != len(probs) {
		return nil, fmt.Errorf("batch size mismatch: %d trajectories, %d probabilities", len(trajs), len(probs))
	}
	out := make([]Bundle, len(trajs))
	for b := range trajs {
		bundle := Bundle{
			Trajectories:  make([][]r2.Vec, len(trajs[b])),
			Probabilities: make([]float64, len(probs[b])),
		}
		for k, flat := range trajs[b] {
			if len(flat)%2 != 0 {
				return nil, fmt.Errorf("trajectory %d of example %d has odd length %d", k, b, len(flat))
			}
			t := make([]r2.Vec, len(flat)/2)
			for i := range t {
				t[i] = r2.Vec{X: float64(flat[2*i]), Y: float64(flat[2*i+1])}
			}
			bundle.Trajectories[k] = t
		}
		for k, p := range probs[b] {
			bundle.Probabilities[k] = float64(p)
		}
		if err := bundle.Validate(); err != nil {
			return nil, err
		}
		out[b] = bundle
	}
	return out, nil
}

// Tensors converts b into a batch of one in the layout of PredictTensors.
// All trajectories must have the same length.
func (b Bundle) Tensors() (trajectories, probabilities *tensors.Tensor, err error) {
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	trajs := make([][]float32, len(b.Trajectories))
	for k, t := range b.Trajectories {
		if k > 0 && len(t) != len(b.Trajectories[0]) {
			return nil, nil, fmt.Errorf("trajectory %d has %d points, expected %d", k, len(t), len(b.Trajectories[0]))
		}
		flat := make([]float32, 0, 2*len(t))
		for _, p := range t {
			flat = append(flat, float32(p.X), float32(p.Y))
		}
		trajs[k] = flat
	}
	probs := make([]float32, len(b.Probabilities))
	for k, p := range b.Probabilities {
		probs[k] = float32(p)
	}
	return tensors.FromAnyValue([][][]float32{trajs}), tensors.FromAnyValue([][]float32{probs}), nil
}
