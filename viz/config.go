package viz

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/render"
)

// Reference selection strategies.
const (
	StrategyPositional = "positional"
	StrategyNearest    = "nearest"
	StrategyFixed      = "fixed"
)

// ReferenceConfig chooses how the masked reference vehicle is picked on the
// first frame of a sequence.
type ReferenceConfig struct {
	Strategy string `json:"strategy"`
	// Index is the annotation position used by the positional strategy.
	Index int `json:"index"`
	// Rank is the 0-based distance rank used by the nearest strategy.
	Rank int `json:"rank"`
	// Tokens are the instances masked by the fixed strategy.
	Tokens []string `json:"tokens,omitempty"`
}

// Config holds the visualizer settings.
type Config struct {
	// HistorySeconds of past drawn for every agent.
	HistorySeconds float64 `json:"history_seconds"`
	// HorizonFrames is the number of 2 Hz future points drawn for every
	// agent and kept from every predicted mode.
	HorizonFrames int `json:"horizon_frames"`
	// NumModes is how many ranked modes are drawn.
	NumModes        int  `json:"num_modes"`
	ShowPredictions bool `json:"show_predictions"`

	// Counterfactual adds a stationary vehicle on the target's recorded
	// future at CounterfactualIndex, both in the drawing and in the model
	// inputs.
	Counterfactual      bool `json:"counterfactual"`
	CounterfactualIndex int  `json:"counterfactual_index"`

	// InstancePicks are positions in the split's unique instance list; the
	// n-th pick is example n.
	InstancePicks []int  `json:"instance_picks"`
	Split         string `json:"split"`

	Reference ReferenceConfig `json:"reference"`

	Layers       []string `json:"layers"`
	PatchMargin  float64  `json:"patch_margin"`
	MinDiffPatch float64  `json:"min_diff_patch"`
	FPS          float64  `json:"fps"`
	FrameInches  float64  `json:"frame_inches"`
	DPI          int      `json:"dpi"`
}

// sampleRate is the annotation rate of the dataset in Hz.
const sampleRate = 2

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		HistorySeconds:      2,
		HorizonFrames:       12,
		NumModes:            10,
		ShowPredictions:     true,
		CounterfactualIndex: 5,
		InstancePicks:       append([]int(nil), datasets.DefaultInstancePicks...),
		Split:               "val",
		Reference:           ReferenceConfig{Strategy: StrategyPositional, Index: 7},
		Layers:              []string{"lane", "road_segment", "road_block", "ped_crossing", "walkway"},
		PatchMargin:         50,
		MinDiffPatch:        50,
		FPS:                 2,
		FrameInches:         10,
		DPI:                 60,
	}
}

// FutureSeconds is the horizon in seconds.
func (c Config) FutureSeconds() float64 {
	return float64(c.HorizonFrames) / sampleRate
}

// HistoryPoints is the number of points in a full-length history.
func (c Config) HistoryPoints() int {
	return int(math.Round(c.HistorySeconds*sampleRate)) + 1
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.HistorySeconds <= 0 {
		return fmt.Errorf("history_seconds must be positive, got %v", c.HistorySeconds)
	}
	if c.HorizonFrames < 1 {
		return fmt.Errorf("horizon_frames must be >= 1, got %d", c.HorizonFrames)
	}
	if c.NumModes < 1 {
		return fmt.Errorf("num_modes must be >= 1, got %d", c.NumModes)
	}
	if c.CounterfactualIndex < 0 {
		return fmt.Errorf("counterfactual_index must be non-negative, got %d", c.CounterfactualIndex)
	}
	if c.Split == "" {
		return fmt.Errorf("split must not be empty")
	}
	for i, p := range c.InstancePicks {
		if p < 0 {
			return fmt.Errorf("instance_picks[%d] must be non-negative, got %d", i, p)
		}
	}
	if _, err := c.Reference.Selector(); err != nil {
		return err
	}
	if c.PatchMargin <= 0 || c.MinDiffPatch < 0 {
		return fmt.Errorf("invalid map patch: margin %v, min diff %v", c.PatchMargin, c.MinDiffPatch)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.FPS)
	}
	if c.FrameInches <= 0 || c.DPI <= 0 {
		return fmt.Errorf("invalid frame size: %v inches at %d dpi", c.FrameInches, c.DPI)
	}
	return nil
}

// Selector builds the ReferenceSelector described by the configuration.
func (r ReferenceConfig) Selector() (ReferenceSelector, error) {
	switch r.Strategy {
	case StrategyPositional, "":
		if r.Index < 0 {
			return nil, fmt.Errorf("reference index must be non-negative, got %d", r.Index)
		}
		return PositionalReference{Index: r.Index}, nil
	case StrategyNearest:
		if r.Rank < 0 {
			return nil, fmt.Errorf("reference rank must be non-negative, got %d", r.Rank)
		}
		return NearestVehicleReference{Rank: r.Rank}, nil
	case StrategyFixed:
		if len(r.Tokens) == 0 {
			return nil, fmt.Errorf("fixed reference strategy needs at least one token")
		}
		return FixedReference{Tokens: append([]string(nil), r.Tokens...)}, nil
	default:
		return nil, fmt.Errorf("unknown reference strategy %q", r.Strategy)
	}
}

// LoadConfig reads a JSON configuration file. Fields missing from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RenderOptions returns the frame layout for the configuration.
func (c Config) RenderOptions() render.Options {
	return render.Options{
		Layers:       append([]string(nil), c.Layers...),
		PatchMargin:  c.PatchMargin,
		MinDiffPatch: c.MinDiffPatch,
		FrameInches:  c.FrameInches,
		DPI:          c.DPI,
		HistoryLabel: fmt.Sprintf("%gs past trajectory", c.HistorySeconds),
		FutureLabel:  fmt.Sprintf("%gs future ground truth trajectory", c.FutureSeconds()),
	}
}
