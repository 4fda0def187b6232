package monte

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
)

// mockDS is a small in-memory dataset implementing the Dataset interface used by Monte.
type mockDS struct {
	frames []*datasets.Frame

	ttl        time.Duration
	maxEntries int
}

func (m *mockDS) Len() int { return len(m.frames) }

func (m *mockDS) Frame(i int) (*datasets.Frame, error) {
	if i < 0 || i >= len(m.frames) {
		return nil, fmt.Errorf("index %d out of range", i)
	}
	return m.frames[i], nil
}

func (m *mockDS) SetCacheTTL(d time.Duration) { m.ttl = d }
func (m *mockDS) SetCacheMaxEntries(n int)    { m.maxEntries = n }

// frameAt builds an example whose target history ends at speed v (metres per
// step along +y) and whose future continues at that speed.
func frameAt(idx int, v float64) *datasets.Frame {
	return &datasets.Frame{
		Index: idx,
		Inputs: datasets.Inputs{
			InstanceToken: fmt.Sprintf("inst%d", idx),
			SampleToken:   fmt.Sprintf("sample%d", idx),
			TargetHistory: []r2.Vec{{X: 0, Y: -2 * v}, {X: 0, Y: -v}, {X: 0, Y: 0}},
		},
		GroundTruth: datasets.GroundTruth{Traj: []r2.Vec{{X: 0, Y: v}, {X: 0, Y: 2 * v}}},
	}
}

func newMockDS() *mockDS {
	return &mockDS{frames: []*datasets.Frame{frameAt(0, 1), frameAt(1, 2), frameAt(2, 10), frameAt(3, 1.1)}}
}

func TestPredictReturnsRecordedFutures(t *testing.T) {
	ds := newMockDS()
	m, err := NewMonte(ds, 2)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.Seed(12345)
	m.Sims = 100

	query := frameAt(99, 1).Inputs
	b, err := m.Predict(query)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("invalid bundle: %v", err)
	}
	if b.Len() == 0 || b.Len() > 2 {
		t.Fatalf("expected 1 or 2 modes, got %d", b.Len())
	}

	sum := 0.0
	for k, traj := range b.Trajectories {
		sum += b.Probabilities[k]
		// The two nearest examples move at speed 1 and 1.1.
		if traj[0].Y != 1 && traj[0].Y != 1.1 {
			t.Fatalf("mode %d does not come from a nearest neighbour: %v", k, traj)
		}
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Fatalf("probabilities sum to %f, expected 1", sum)
	}
}

func TestPredictExcludesSelf(t *testing.T) {
	ds := newMockDS()
	m, err := NewMonte(ds, 1)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.Seed(1)

	b, err := m.Predict(ds.frames[0].Inputs)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if b.Len() != 1 || b.Probabilities[0] != 1 {
		t.Fatalf("expected a single certain mode, got %+v", b)
	}
	if b.Trajectories[0][0].Y != 1.1 {
		t.Fatalf("expected the future of example 3, got %v", b.Trajectories[0])
	}

	m.ExcludeSelf = false
	b, err = m.Predict(ds.frames[0].Inputs)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if b.Trajectories[0][0].Y != 1 {
		t.Fatalf("expected the example's own future, got %v", b.Trajectories[0])
	}
}

func TestPredictHorizon(t *testing.T) {
	m, err := NewMonte(newMockDS(), 1)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.Horizon = 4
	b, err := m.Predict(frameAt(99, 2).Inputs)
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	got := b.Trajectories[0]
	want := []r2.Vec{{X: 0, Y: 2}, {X: 0, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 4}}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestPredictDeterministicWithSeed(t *testing.T) {
	run := func() []float64 {
		m, err := NewMonte(newMockDS(), 3)
		if err != nil {
			t.Fatalf("NewMonte returned error: %v", err)
		}
		m.Seed(42)
		b, err := m.Predict(frameAt(99, 1.5).Inputs)
		if err != nil {
			t.Fatalf("Predict returned error: %v", err)
		}
		return b.Probabilities
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("mode counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("probability %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestNewMonteValidation(t *testing.T) {
	if _, err := NewMonte(nil, 1); err == nil {
		t.Fatalf("expected error for nil dataset")
	}
	if _, err := NewMonte(newMockDS(), 0); err == nil {
		t.Fatalf("expected error for k=0")
	}
	m, _ := NewMonte(&mockDS{}, 1)
	if _, err := m.Predict(frameAt(0, 1).Inputs); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
}

func TestLoadConfig(t *testing.T) {
	ds := newMockDS()
	m, err := NewMonte(ds, 1)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "monte.json")
	cfg := `{"k": 3, "sims": 50, "horizon": 6, "exclude_self": false, "seed": 9, "cache_ttl_seconds": 60, "cache_max_entries": 10}`
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := m.LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if m.K != 3 || m.Sims != 50 || m.Horizon != 6 || m.ExcludeSelf {
		t.Fatalf("tunables not applied: %+v", m)
	}
	if ds.ttl != time.Minute || ds.maxEntries != 10 {
		t.Fatalf("dataset cache not configured: ttl=%v max=%d", ds.ttl, ds.maxEntries)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"k": 0}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := m.LoadConfig(bad); err == nil {
		t.Fatalf("expected error for k=0")
	}
	if err := m.LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
