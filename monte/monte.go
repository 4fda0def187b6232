package monte

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/predict"
)

// Dataset is the minimal interface Monte needs from the scene database.
type Dataset interface {
	// Len returns the number of examples in the dataset.
	Len() int

	// Frame returns the inputs and ground truth of the example at idx.
	Frame(idx int) (*datasets.Frame, error)
}

// Monte predicts trajectories by Monte Carlo sampling of recorded futures.
// It finds the K dataset examples whose inputs are closest to the query in
// feature space and draws Sims of them with probability inversely
// proportional to their distance. Every distinct drawn example contributes
// its ground-truth future as one mode, with the share of draws as its
// probability.
type Monte struct {
	DS Dataset
	K  int

	// Sims is the number of draws per prediction.
	Sims int

	// Horizon, when positive, cuts or pads (repeating the last point) every
	// mode to this many points.
	Horizon int

	// DistanceEps avoids dividing by zero for exact matches.
	DistanceEps float64

	// ExcludeSelf skips dataset examples with the same instance and sample as
	// the query, so an example is never predicted from its own future.
	ExcludeSelf bool

	mu  sync.Mutex
	rng *rand.Rand

	indexOnce sync.Once
	index     []candidate
	indexErr  error
}

// NewMonte creates a new Monte object.
// ds must be non-nil. k must be >= 1.
func NewMonte(ds Dataset, k int) (*Monte, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	return &Monte{
		DS:          ds,
		K:           k,
		Sims:        200,
		DistanceEps: 1e-6,
		ExcludeSelf: true,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Seed resets the sampling RNG.
func (m *Monte) Seed(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// CacheConfigurer can be implemented by datasets that want to expose
// runtime configuration of their lookup cache (TTL and max entries).
type CacheConfigurer interface {
	SetCacheTTL(d time.Duration)
	SetCacheMaxEntries(n int)
}

// ConfigureDatasetCache configures the underlying dataset's lookup cache
// if it implements CacheConfigurer.
func (m *Monte) ConfigureDatasetCache(ttl time.Duration, maxEntries int) {
	if m == nil {
		return
	}
	if cfg, ok := m.DS.(CacheConfigurer); ok {
		cfg.SetCacheTTL(ttl)
		cfg.SetCacheMaxEntries(maxEntries)
	}
}

// LoadConfig reads a JSON file of tunables and applies the ones present:
//
//	{
//	  "k": 8,
//	  "sims": 500,
//	  "horizon": 12,
//	  "distance_eps": 1e-6,
//	  "exclude_self": true,
//	  "seed": 42,
//	  "cache_ttl_seconds": 300,
//	  "cache_max_entries": 4000
//	}
func (m *Monte) LoadConfig(path string) error {
	if m == nil {
		return fmt.Errorf("Monte is nil")
	}
	if path == "" {
		return fmt.Errorf("empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read monte config: %w", err)
	}
	var raw struct {
		K               *int     `json:"k"`
		Sims            *int     `json:"sims"`
		Horizon         *int     `json:"horizon"`
		DistanceEps     *float64 `json:"distance_eps"`
		ExcludeSelf     *bool    `json:"exclude_self"`
		Seed            *int64   `json:"seed"`
		CacheTTLSeconds *float64 `json:"cache_ttl_seconds"`
		CacheMaxEntries *int     `json:"cache_max_entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal monte config: %w", err)
	}
	if raw.K != nil {
		if *raw.K < 1 {
			return fmt.Errorf("k must be >= 1, got %d", *raw.K)
		}
		m.K = *raw.K
	}
	if raw.Sims != nil {
		if *raw.Sims < 1 {
			return fmt.Errorf("sims must be >= 1, got %d", *raw.Sims)
		}
		m.Sims = *raw.Sims
	}
	if raw.Horizon != nil {
		m.Horizon = *raw.Horizon
	}
	if raw.DistanceEps != nil {
		m.DistanceEps = *raw.DistanceEps
	}
	if raw.ExcludeSelf != nil {
		m.ExcludeSelf = *raw.ExcludeSelf
	}
	if raw.Seed != nil {
		m.Seed(*raw.Seed)
	}
	if raw.CacheTTLSeconds != nil || raw.CacheMaxEntries != nil {
		ttl := 5 * time.Minute
		if raw.CacheTTLSeconds != nil {
			ttl = time.Duration(*raw.CacheTTLSeconds * float64(time.Second))
		}
		maxEntries := 2000
		if raw.CacheMaxEntries != nil {
			maxEntries = *raw.CacheMaxEntries
		}
		m.ConfigureDatasetCache(ttl, maxEntries)
	}
	return nil
}

// Predict implements predict.Model.
func (m *Monte) Predict(in datasets.Inputs) (predict.Bundle, error) {
	if m == nil {
		return predict.Bundle{}, errors.New("Monte object is nil")
	}
	if m.Sims <= 0 {
		return predict.Bundle{}, fmt.Errorf("sims must be > 0")
	}

	query := predict.Features(in)
	neighbors, err := m.knnNeighbors(query, in, m.K)
	if err != nil {
		return predict.Bundle{}, err
	}

	eps := m.DistanceEps
	if eps <= 0 {
		eps = 1e-6
	}
	weights := make([]float64, len(neighbors))
	for i, nb := range neighbors {
		weights[i] = 1.0 / (nb.distance + eps)
	}
	cum := make([]float64, len(weights))
	floats.CumSum(cum, weights)
	total := cum[len(cum)-1]

	counts := make([]int, len(neighbors))
	m.mu.Lock()
	for s := 0; s < m.Sims; s++ {
		target := m.rng.Float64() * total
		choice := sort.SearchFloat64s(cum, target)
		if choice >= len(cum) {
			choice = len(cum) - 1
		}
		counts[choice]++
	}
	m.mu.Unlock()

	var b predict.Bundle
	for i, nb := range neighbors {
		if counts[i] == 0 {
			continue
		}
		b.Trajectories = append(b.Trajectories, fitFuture(nb.future, m.Horizon))
		b.Probabilities = append(b.Probabilities, float64(counts[i])/float64(m.Sims))
	}
	return b, nil
}

// candidate is one indexed dataset example.
type candidate struct {
	idx           int
	instanceToken string
	sampleToken   string
	features      []float32
	future        []r2.Vec
}

// neighbor holds a dataset neighbor candidate.
type neighbor struct {
	idx      int
	distance float64
	future   []r2.Vec
}

// buildIndex reads the features and futures of every dataset example once,
// using a worker pool. Examples that cannot be read or have no recorded
// future are skipped.
func (m *Monte) buildIndex() ([]candidate, error) {
	m.indexOnce.Do(func() {
		n := m.DS.Len()
		if n == 0 {
			m.indexErr = fmt.Errorf("prediction dataset is empty")
			return
		}

		jobs := make(chan int, n)
		resultsCh := make(chan candidate, n)

		workerCount := runtime.NumCPU()
		if workerCount > n {
			workerCount = n
		}

		var wg sync.WaitGroup
		wg.Add(workerCount)
		for w := 0; w < workerCount; w++ {
			go func() {
				defer wg.Done()
				for i := range jobs {
					f, err := m.DS.Frame(i)
					if err != nil || len(f.GroundTruth.Traj) == 0 {
						continue
					}
					resultsCh <- candidate{
						idx:           i,
						instanceToken: f.Inputs.InstanceToken,
						sampleToken:   f.Inputs.SampleToken,
						features:      predict.Features(f.Inputs),
						future:        f.GroundTruth.Traj,
					}
				}
			}()
		}

		for i := 0; i < n; i++ {
			jobs <- i
		}
		close(jobs)

		go func() {
			wg.Wait()
			close(resultsCh)
		}()

		index := make([]candidate, 0, n)
		for c := range resultsCh {
			index = append(index, c)
		}
		sort.Slice(index, func(i, j int) bool { return index[i].idx < index[j].idx })
		if len(index) == 0 {
			m.indexErr = fmt.Errorf("no readable examples in dataset")
			return
		}
		m.index = index
	})
	return m.index, m.indexErr
}

// knnNeighbors returns up to k indexed examples closest to query, sorted by
// increasing distance (dataset order between ties).
func (m *Monte) knnNeighbors(query []float32, in datasets.Inputs, k int) ([]neighbor, error) {
	index, err := m.buildIndex()
	if err != nil {
		return nil, err
	}
	candidates := make([]neighbor, 0, len(index))
	for _, c := range index {
		if m.ExcludeSelf && c.instanceToken == in.InstanceToken && c.sampleToken == in.SampleToken {
			continue
		}
		if len(c.features) != len(query) {
			continue
		}
		candidates = append(candidates, neighbor{
			idx:      c.idx,
			distance: math.Sqrt(euclideanDistanceSquared(query, c.features)),
			future:   c.future,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no comparable examples in dataset")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// fitFuture cuts f to n points or pads it by repeating its last point. n <= 0
// leaves f as is.
func fitFuture(f []r2.Vec, n int) []r2.Vec {
	if n <= 0 {
		return append([]r2.Vec(nil), f...)
	}
	out := make([]r2.Vec, n)
	copy(out, f)
	for i := len(f); i < n; i++ {
		out[i] = f[len(f)-1]
	}
	return out
}

// euclideanDistanceSquared computes squared Euclidean distance between two equal-length float32 slices.
func euclideanDistanceSquared(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
