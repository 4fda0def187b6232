package predict

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
)

func testConfig() Config {
	return Config{HiddenSizes: []int{16, 8}, HistoryLen: 3, VehicleSlots: 2, Modes: 4, Horizon: 5, Seed: 7}
}

func testInputs() datasets.Inputs {
	return datasets.Inputs{
		TargetHistory: []r2.Vec{{X: 0, Y: -2}, {X: 0, Y: -1}, {X: 0, Y: 0}},
		Vehicles:      [][]r2.Vec{{{X: 3, Y: 1}, {X: 3, Y: 2}, {X: 3, Y: 3}}, make([]r2.Vec, 3)},
		VehicleMasks:  []bool{false, true},
	}
}

func TestFeatures(t *testing.T) {
	t.Parallel()
	f := Features(testInputs())
	require.Len(t, f, FeatureDim(3, 2))
	assert.Equal(t, []float32{0, -2, 0, -1, 0, 0}, f[:6])
	assert.Equal(t, float32(1), f[6+6], "occupied slot flag")
	assert.Equal(t, float32(0), f[len(f)-1], "empty slot flag")
}

func TestMLP_Predict(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)

	b, err := m.Predict(testInputs())
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	require.Equal(t, 4, b.Len())
	sum := 0.0
	for k, traj := range b.Trajectories {
		assert.Len(t, traj, 5, "mode %d", k)
		assert.GreaterOrEqual(t, b.Probabilities[k], 0.0)
		sum += b.Probabilities[k]
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	again, err := m.Predict(testInputs())
	require.NoError(t, err)
	assert.Equal(t, b, again, "prediction must be deterministic")
}

func TestMLP_WrongInputDim(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)

	in := testInputs()
	in.Vehicles = in.Vehicles[:1]
	in.VehicleMasks = in.VehicleMasks[:1]
	_, err = m.Predict(in)
	assert.Error(t, err)

	_, err = NewMLP(Config{HistoryLen: 0, Modes: 1, Horizon: 1})
	assert.Error(t, err)
}

func TestMLP_PredictTensorsBatch(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)

	trajT, probT, err := m.PredictTensors([]datasets.Inputs{testInputs(), testInputs()})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 10}, trajT.Shape().Dimensions)
	assert.Equal(t, []int{2, 4}, probT.Shape().Dimensions)

	bundles, err := BundlesFromTensors(trajT, probT)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, bundles[0], bundles[1])
}

func TestBundle_TensorsRoundTrip(t *testing.T) {
	t.Parallel()
	b := Bundle{
		Trajectories:  [][]r2.Vec{{{X: 1, Y: 2}, {X: 3, Y: 4}}, {{X: -1, Y: 0.5}, {X: 0, Y: 0}}},
		Probabilities: []float64{0.75, 0.25},
	}
	trajT, probT, err := b.Tensors()
	require.NoError(t, err)
	got, err := BundlesFromTensors(trajT, probT)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])

	_, _, err = Bundle{Trajectories: [][]r2.Vec{{{X: 1}}, {}}, Probabilities: []float64{0.5, 0.5}}.Tensors()
	assert.Error(t, err)
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ckpt", "mlp.gob")
	require.NoError(t, m.SaveCheckpoint(path))

	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, m.Config, loaded.Config)

	want, err := m.Predict(testInputs())
	require.NoError(t, err)
	got, err := loaded.Predict(testInputs())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckpoint_Invalid(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.gob")
	require.NoError(t, os.WriteFile(bad, []byte("not a checkpoint"), 0o644))
	_, err := LoadCheckpoint(bad)
	assert.Error(t, err)

	_, err = LoadCheckpoint(filepath.Join(dir, "missing.gob"))
	assert.Error(t, err)

	assert.Error(t, (&MLP{}).SaveCheckpoint(""))
}

func TestMLP_PredictTensorsEmptyBatch(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)
	_, _, err = m.PredictTensors(nil)
	assert.EqualError(t, err, "empty batch")
}

func TestCheckpoint_SaveError(t *testing.T) {
	t.Parallel()
	m, err := NewMLP(testConfig())
	require.NoError(t, err)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err = m.SaveCheckpoint(filepath.Join(blocker, "mlp.gob"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(blocker, "mlp.gob"))
	assert.Error(t, err)
}
